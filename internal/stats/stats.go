// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stats aggregates per-task outcomes across a run and emits the
// summary at shutdown.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/renameio/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nyxmedia/transcode-orchestrator/internal/log"
	"github.com/nyxmedia/transcode-orchestrator/internal/pipeline"
)

var outcomeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "transcode",
	Name:      "task_outcome_total",
	Help:      "Total tasks processed, labeled by terminal outcome.",
}, []string{"outcome"})

// Counters accumulates task outcomes across an entire run. Safe for
// concurrent use by multiple workers.
type Counters struct {
	success    atomic.Int64
	failure    atomic.Int64
	skipExists atomic.Int64
	skipSize   atomic.Int64
	cancelled  atomic.Int64
	pathEscape atomic.Int64
}

// New returns a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

// Record folds one task's terminal Result into the running totals.
func (c *Counters) Record(res pipeline.Result) {
	outcomeTotal.WithLabelValues(string(res.Outcome)).Inc()
	switch res.Outcome {
	case pipeline.Success:
		c.success.Add(1)
	case pipeline.Failure:
		c.failure.Add(1)
	case pipeline.SkipExists:
		c.skipExists.Add(1)
	case pipeline.SkipSize:
		c.skipSize.Add(1)
	case pipeline.Cancelled:
		c.cancelled.Add(1)
	case pipeline.PathEscape:
		c.pathEscape.Add(1)
		c.failure.Add(1) // a path-escape task still counts toward the failure exit code
	}
}

// Summary is a point-in-time, immutable snapshot of Counters.
type Summary struct {
	Success    int64 `json:"success"`
	Failure    int64 `json:"failure"`
	SkipExists int64 `json:"skip_exists"`
	SkipSize   int64 `json:"skip_size"`
	Cancelled  int64 `json:"cancelled"`
	PathEscape int64 `json:"path_escape"`
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Summary {
	return Summary{
		Success:    c.success.Load(),
		Failure:    c.failure.Load(),
		SkipExists: c.skipExists.Load(),
		SkipSize:   c.skipSize.Load(),
		Cancelled:  c.cancelled.Load(),
		PathEscape: c.pathEscape.Load(),
	}
}

// Total is the sum of every recorded task across all outcome kinds.
func (s Summary) Total() int64 {
	return s.Success + s.Failure + s.SkipExists + s.SkipSize + s.Cancelled
}

// Failed reports whether any task failed or was cancelled, the condition
// under which the process exits non-zero.
func (s Summary) Failed() bool {
	return s.Failure > 0 || s.Cancelled > 0
}

// WriteReport writes the summary as JSON to <logRoot>/run_summary.json.
// The write goes through a pending temp file and an atomic rename, so a
// crash mid-write never leaves a truncated report where a previous run's
// complete one used to be.
func (s Summary) WriteReport(logRoot string) error {
	if err := os.MkdirAll(logRoot, 0o755); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	path := filepath.Join(logRoot, "run_summary.json")
	if err := renameio.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	return nil
}

// Log emits the summary at the INFO level via the shared logger.
func (s Summary) Log() {
	logger := log.WithComponent("stats")
	logger.Info().
		Int64("success", s.Success).
		Int64("failure", s.Failure).
		Int64("skip_exists", s.SkipExists).
		Int64("skip_size", s.SkipSize).
		Int64("cancelled", s.Cancelled).
		Int64("total", s.Total()).
		Msg("run complete")
}
