// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package app is the composition root: it wires config, detector,
// scheduler, runner, probe and pipeline into a running worker pool that
// drains the input tree, and aggregates the run's statistics.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nyxmedia/transcode-orchestrator/internal/config"
	"github.com/nyxmedia/transcode-orchestrator/internal/detector"
	"github.com/nyxmedia/transcode-orchestrator/internal/log"
	"github.com/nyxmedia/transcode-orchestrator/internal/pipeline"
	"github.com/nyxmedia/transcode-orchestrator/internal/probe"
	"github.com/nyxmedia/transcode-orchestrator/internal/runner"
	"github.com/nyxmedia/transcode-orchestrator/internal/scheduler"
	"github.com/nyxmedia/transcode-orchestrator/internal/stats"
	"github.com/nyxmedia/transcode-orchestrator/internal/walk"
)

// App holds every collaborator constructed once at startup and reused for
// the lifetime of the run. Collaborators are injected, never ambient
// globals.
type App struct {
	cfg       config.Config
	available detector.Availability
	runner    *runner.Runner
	scheduler *scheduler.Scheduler
	pipeline  *pipeline.Pipeline
}

// New resolves cfg into a ready-to-run App: it constructs the runner and
// probe client, runs encoder detection, and builds the scheduler's
// per-encoder slots from the detector result.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	r := runner.New("")
	p := probe.NewClient("")

	enabled := cfg.EnabledMap()
	available := detector.Detect(ctx, r, enabled)

	slots := cfg.SchedulerSlots(available)
	sched := scheduler.New(slots, cfg.Scheduler.MaxTotalConcurrent)

	pl := pipeline.New(p, sched, r, available, cfg.PipelineOptions())

	return &App{
		cfg:       cfg,
		available: available,
		runner:    r,
		scheduler: sched,
		pipeline:  pl,
	}, nil
}

// Shutdown terminates every in-flight transcoder child. It is safe to call
// from a signal handler running concurrently with Run.
func (a *App) Shutdown() {
	a.runner.KillAll()
}

// Run walks the configured input tree and drains it through a fixed pool
// of scheduler.max_total_concurrent workers. Completion order is not input
// order. It blocks until every submitted file has a terminal Result or ctx
// is cancelled.
func (a *App) Run(ctx context.Context) (stats.Summary, error) {
	logger := log.WithComponent("app")

	files, err := walk.Files(ctx, a.cfg.Paths.Input)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before the tree was enumerated: nothing was
			// submitted, so the caller sees an empty run, not a failure.
			return stats.Summary{}, nil
		}
		return stats.Summary{}, fmt.Errorf("walk input tree: %w", err)
	}
	logger.Info().Int("files", len(files)).Str(log.FieldRoot, a.cfg.Paths.Input).Msg("enumerated input tree")

	counters := stats.New()

	if a.cfg.DryRun {
		for _, f := range files {
			logger.Info().Str(log.FieldInput, f).Msg("dry run: would process")
		}
		return stats.Summary{}, nil
	}

	workers := a.cfg.Scheduler.MaxTotalConcurrent
	if workers < 1 {
		workers = 1
	}

	work := make(chan string)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for input := range work {
				// Each task gets its own correlation ID threaded through
				// its logger, so every line from probe/runner/scheduler
				// for this attempt chain can be grepped together.
				taskCtx := log.ContextWithCorrelationID(gctx, uuid.NewString())
				res := a.pipeline.Process(taskCtx, input)
				counters.Record(res)
				taskLogger := log.WithComponentFromContext(taskCtx, "app")
				taskLogger.Info().
					Str(log.FieldInput, res.InputPath).
					Str(log.FieldOutcome, string(res.Outcome)).
					Int("attempts", len(res.RetryHistory)).
					Msg("task complete")
			}
			return nil
		})
	}

feed:
	for _, f := range files {
		select {
		case work <- f:
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	_ = g.Wait()

	summary := counters.Snapshot()
	summary.Log()
	if a.cfg.Paths.Log != "" {
		if err := summary.WriteReport(a.cfg.Paths.Log); err != nil {
			logger.Warn().Err(err).Str(log.FieldRoot, a.cfg.Paths.Log).Msg("could not write run report")
		}
	}
	return summary, nil
}
