// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler admits tasks to per-encoder slot pools under a global
// concurrency cap. A Lease grants exactly one in-flight slot; no task may
// spawn a subprocess without holding one.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
)

var (
	inFlightGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "transcode",
		Name:      "scheduler_in_flight",
		Help:      "Current number of in-flight attempts per encoder.",
	}, []string{"encoder"})

	completedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transcode",
		Name:      "scheduler_completed_total",
		Help:      "Total completed attempts per encoder.",
	}, []string{"encoder"})

	failedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "transcode",
		Name:      "scheduler_failed_total",
		Help:      "Total failed attempts per encoder.",
	}, []string{"encoder"})

	queueWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "transcode",
		Name:      "scheduler_queue_wait_seconds",
		Help:      "Time spent waiting for a slot to become available.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"encoder"})
)

// ErrCancelled is returned by Acquire when cancel fires before a slot
// becomes available.
var ErrCancelled = errors.New("scheduler: acquire cancelled")

// Slot tracks the concurrency budget and running counters for one encoder
// pool. Counters are mutated only by the Scheduler holding the slot, under
// its mutex; the channel semaphore (below) is what actually gates
// admission.
type Slot struct {
	MaxConcurrent int
	InFlight      int
	Completed     int
	Failed        int
	Enabled       bool
}

// Lease grants one in-flight slot on one encoder pool plus one unit of the
// global cap. Release is idempotent.
type Lease struct {
	s       *Scheduler
	encoder encoder.Name

	released bool
	mu       sync.Mutex
}

// Scheduler holds one Slot + channel semaphore per encoder plus a global
// capacity semaphore.
type Scheduler struct {
	mu    sync.Mutex
	slots map[encoder.Name]*Slot
	sems  map[encoder.Name]chan struct{}

	global chan struct{} // buffered to global_cap
}

// New constructs a Scheduler. slots must contain one entry per encoder this
// run will ever dispatch to; globalCap bounds the sum of all in-flight
// attempts across every pool.
func New(slots map[encoder.Name]Slot, globalCap int) *Scheduler {
	s := &Scheduler{
		slots:  make(map[encoder.Name]*Slot, len(slots)),
		sems:   make(map[encoder.Name]chan struct{}, len(slots)),
		global: make(chan struct{}, globalCap),
	}
	for name, slot := range slots {
		cp := slot
		s.slots[name] = &cp
		cap := slot.MaxConcurrent
		if cap < 1 {
			cap = 1
		}
		s.sems[name] = make(chan struct{}, cap)
	}
	return s
}

// Acquire blocks until both the global cap and the encoder's per-pool
// capacity admit one more task, or until ctx is done. The global cap is
// acquired first so a saturated small pool never starves behind a
// saturated large one.
func (s *Scheduler) Acquire(ctx context.Context, name encoder.Name) (*Lease, error) {
	s.mu.Lock()
	slot, ok := s.slots[name]
	sem, semOK := s.sems[name]
	s.mu.Unlock()
	if !ok || !semOK || !slot.Enabled {
		return nil, errors.New("scheduler: encoder not enabled: " + string(name))
	}

	start := time.Now()

	select {
	case s.global <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrCancelled
	}

	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		<-s.global
		return nil, ErrCancelled
	}

	queueWait.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

	s.mu.Lock()
	slot.InFlight++
	s.mu.Unlock()
	inFlightGauge.WithLabelValues(string(name)).Inc()

	return &Lease{s: s, encoder: name}, nil
}

// Release decrements both the per-pool and global counters. Safe to call
// more than once; subsequent calls are no-ops. success marks whether the
// attempt this lease guarded completed successfully, for stats purposes.
func (l *Lease) Release(success bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	l.mu.Unlock()

	l.s.mu.Lock()
	slot := l.s.slots[l.encoder]
	sem := l.s.sems[l.encoder]
	if slot != nil {
		slot.InFlight--
		if success {
			slot.Completed++
		} else {
			slot.Failed++
		}
	}
	l.s.mu.Unlock()

	if success {
		completedTotal.WithLabelValues(string(l.encoder)).Inc()
	} else {
		failedTotal.WithLabelValues(string(l.encoder)).Inc()
	}
	inFlightGauge.WithLabelValues(string(l.encoder)).Dec()

	if sem != nil {
		<-sem
	}
	<-l.s.global
}

// Snapshot is a read-only view of scheduler state for logging/reporting.
type Snapshot struct {
	Slots map[encoder.Name]Slot
}

// Stats returns a consistent point-in-time snapshot of every pool.
func (s *Scheduler) Stats() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[encoder.Name]Slot, len(s.slots))
	for name, slot := range s.slots {
		out[name] = *slot
	}
	return Snapshot{Slots: out}
}
