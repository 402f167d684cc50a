// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runner spawns the transcoder subprocess for one attempt,
// enforces a dynamic timeout, captures stderr, and classifies the
// failure when the process exits non-zero or is killed on timeout.
package runner

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nyxmedia/transcode-orchestrator/internal/log"
	"github.com/nyxmedia/transcode-orchestrator/internal/procgroup"
)

var exitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "transcode",
	Name:      "encoder_exit_total",
	Help:      "Total transcoder subprocess exits, labeled by classified reason.",
}, []string{"reason"})

// Kind classifies why an attempt failed.
type Kind string

const (
	Success          Kind = "success"
	DecodeCorruption Kind = "decode_corruption"
	MissingEncoder   Kind = "missing_encoder"
	FormatMismatch   Kind = "format_mismatch"
	Timeout          Kind = "timeout"
	Other            Kind = "other"
)

var markers = map[Kind][]string{
	DecodeCorruption: {
		"Invalid data found when processing input",
		"error while decoding",
		"corrupt",
		"Non-monotonous DTS",
		"non monotonically increasing dts",
	},
	MissingEncoder: {
		"Unknown encoder",
		"No such filter",
		"Cannot load nvcuda",
		"No NVENC capable devices",
	},
	FormatMismatch: {
		"Impossible to convert between the formats",
	},
}

// classifyOrder fixes the precedence in which marker sets are checked so a
// stderr tail containing multiple markers resolves deterministically.
var classifyOrder = []Kind{DecodeCorruption, MissingEncoder, FormatMismatch}

// classify scans stderr lines for known failure markers.
func classify(stderrTail []string) Kind {
	joined := strings.Join(stderrTail, "\n")
	for _, kind := range classifyOrder {
		for _, marker := range markers[kind] {
			if strings.Contains(joined, marker) {
				return kind
			}
		}
	}
	return Other
}

// DynamicTimeout computes the per-attempt timeout from probed duration:
// max(300, min(duration_s*10, 7200)) seconds.
func DynamicTimeout(durationSeconds float64) time.Duration {
	secs := durationSeconds * 10
	if secs > 7200 {
		secs = 7200
	}
	if secs < 300 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

// Result is the outcome of one subprocess invocation.
type Result struct {
	Kind       Kind
	StderrTail []string
}

// Runner spawns and supervises transcoder subprocesses. It owns a process
// table so a caller (the signal handler) can terminate every in-flight
// child during shutdown, as an injected collaborator rather than a
// package-level global.
type Runner struct {
	BinPath string

	mu      sync.Mutex
	running map[int]*exec.Cmd
}

// New returns a Runner that invokes binPath (or "ffmpeg" if empty).
func New(binPath string) *Runner {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Runner{BinPath: binPath, running: make(map[int]*exec.Cmd)}
}

// Run spawns the transcoder with argv, waits up to timeout, and classifies
// the outcome. ctx cancellation kills the child immediately and is
// reported as Timeout (the caller distinguishes true cancellation via
// ctx.Err() if it needs to).
func (r *Runner) Run(ctx context.Context, argv []string, timeout time.Duration) Result {
	logger := log.WithComponent("runner")

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.BinPath, argv...) //nolint:gosec // argv is built by argv.Build from static tables, never from raw input
	procgroup.Set(cmd)

	ring := NewLineRing(256)
	cmd.Stdout = nil
	cmd.Stderr = ring
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		logger.Warn().Err(err).Msg("failed to start transcoder process")
		exitTotal.WithLabelValues(string(Other)).Inc()
		return Result{Kind: Other, StderrTail: ring.All()}
	}

	r.register(cmd)
	defer r.deregister(cmd)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		if err == nil {
			exitTotal.WithLabelValues(string(Success)).Inc()
			return Result{Kind: Success}
		}
		kind := classify(ring.LastN(40))
		exitTotal.WithLabelValues(string(kind)).Inc()
		return Result{Kind: kind, StderrTail: ring.LastN(40)}
	case <-runCtx.Done():
		_ = procgroup.Terminate(cmd, waitCh, 5*time.Second)
		exitTotal.WithLabelValues(string(Timeout)).Inc()
		return Result{Kind: Timeout, StderrTail: ring.LastN(40)}
	}
}

func (r *Runner) register(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	r.mu.Lock()
	r.running[cmd.Process.Pid] = cmd
	r.mu.Unlock()
}

func (r *Runner) deregister(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	r.mu.Lock()
	delete(r.running, cmd.Process.Pid)
	r.mu.Unlock()
}

// KillAll sends SIGTERM to every currently-running child's process group.
// It does not wait for exit: each child's own Run goroutine already owns
// its cmd.Wait() call (Wait must only be called once per process) and
// will observe the exit once the signal lands. This is the fallback path
// for children whose context cancellation hasn't yet propagated.
func (r *Runner) KillAll() {
	r.mu.Lock()
	cmds := make([]*exec.Cmd, 0, len(r.running))
	for _, cmd := range r.running {
		cmds = append(cmds, cmd)
	}
	r.mu.Unlock()

	for _, cmd := range cmds {
		_ = procgroup.Kill(cmd, syscall.SIGTERM)
	}
}
