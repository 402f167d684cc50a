// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline is the per-file fallback state machine: it drives one
// input through probe, plan, and a prioritized chain of (encoder,
// decode-mode) attempts, injecting corruption-tolerance flags and retrying
// audio downgrades along the way, until one attempt succeeds or the plan is
// exhausted.
package pipeline

import (
	"context"
	"os"

	"github.com/nyxmedia/transcode-orchestrator/internal/argv"
	"github.com/nyxmedia/transcode-orchestrator/internal/detector"
	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
	"github.com/nyxmedia/transcode-orchestrator/internal/fsutil"
	"github.com/nyxmedia/transcode-orchestrator/internal/log"
	"github.com/nyxmedia/transcode-orchestrator/internal/planner"
	"github.com/nyxmedia/transcode-orchestrator/internal/probe"
	"github.com/nyxmedia/transcode-orchestrator/internal/runner"
	"github.com/nyxmedia/transcode-orchestrator/internal/scheduler"
)

// Outcome is the terminal classification of one task.
type Outcome string

const (
	Success    Outcome = "success"
	Failure    Outcome = "failure"
	SkipExists Outcome = "skip_exists"
	SkipSize   Outcome = "skip_size"
	Cancelled  Outcome = "cancelled"
	PathEscape Outcome = "path_escape"
)

// Result is the structured outcome of one task. Errors never bubble out of
// the task worker; every failure mode lands here.
type Result struct {
	InputPath     string
	OutputPath    string
	Outcome       Outcome
	RetryHistory  []Attempt
	LastErrorKind runner.Kind
}

// Options carries the per-run configuration the pipeline needs beyond what
// Scheduler/Runner/ProbeClient already encapsulate.
type Options struct {
	InputRoot     string
	OutputRoot    string
	KeepStructure bool
	MinSizeMB     int64
	SkipExisting  bool

	OutputCodec encoder.Codec
	Bitrate     planner.Config

	AudioMode    argv.AudioMode
	AudioCodec   string
	AudioBitrate string

	FPSMax             float64
	LimitFPSOnSWDecode bool
	LimitFPSOnSWEncode bool
	CPUPreset          string

	RetryDecodeErrorsWithIgnore bool
	MaxIgnoreRetriesPerMethod   int
}

// Pipeline wires together the collaborators one task needs. It holds no
// per-task state; Process is safe to call concurrently from multiple
// workers sharing one Pipeline.
type Pipeline struct {
	probe     *probe.Client
	scheduler *scheduler.Scheduler
	runner    *runner.Runner
	available detector.Availability
	opts      Options
}

// New constructs a Pipeline. available is the read-only detector result
// published at startup; it does not change for the lifetime of a run.
func New(p *probe.Client, s *scheduler.Scheduler, r *runner.Runner, available detector.Availability, opts Options) *Pipeline {
	return &Pipeline{probe: p, scheduler: s, runner: r, available: available, opts: opts}
}

// Process runs one input file through preflight, planning, and the attempt
// loop to completion. It never returns an error: every outcome, including
// path-traversal rejection, is reported as a Result.
func (p *Pipeline) Process(ctx context.Context, inputPath string) Result {
	logger := log.WithComponentFromContext(ctx, "pipeline")
	machine := newTaskMachine()

	outputPath, err := resolveOutputPath(p.opts.InputRoot, p.opts.OutputRoot, inputPath, p.opts.KeepStructure)
	if err != nil {
		logger.Warn().Str(log.FieldInput, inputPath).Err(err).Msg("rejecting input: path escapes configured root")
		return Result{InputPath: inputPath, Outcome: PathEscape}
	}

	if _, err := machine.fire(eventPreflight); err != nil {
		logger.Error().Err(err).Msg("task state machine rejected preflight transition")
	}

	if p.opts.SkipExisting {
		if _, err := os.Stat(outputPath); err == nil {
			_, _ = machine.fire(eventSkip)
			return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: SkipExists}
		}
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		logger.Warn().Str(log.FieldInput, inputPath).Err(err).Msg("cannot stat input, failing task")
		return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: Failure}
	}
	if p.opts.MinSizeMB > 0 && info.Size() < p.opts.MinSizeMB*1_000_000 {
		_, _ = machine.fire(eventSkip)
		return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: SkipSize}
	}

	meta := p.probe.Probe(ctx, inputPath)
	targetBps := planner.Plan(meta, p.opts.Bitrate)

	plan := buildAttemptPlan(meta.SourceCodec, p.available, p.opts.OutputCodec)
	if _, err := machine.fire(eventPlan); err != nil {
		logger.Error().Err(err).Msg("task state machine rejected plan transition")
	}

	if len(plan) == 0 {
		logger.Warn().Str(log.FieldInput, inputPath).Msg("no usable encoder for this output codec, failing task")
		return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: Failure}
	}

	tempPath := fsutil.TempPathFor(outputPath)
	if _, err := machine.fire(eventAttempt); err != nil {
		logger.Error().Err(err).Msg("task state machine rejected attempt transition")
	}

	return p.runAttempts(ctx, machine, inputPath, outputPath, tempPath, meta, targetBps, plan)
}

func (p *Pipeline) runAttempts(
	ctx context.Context,
	machine *taskMachine,
	inputPath, outputPath, tempPath string,
	meta probe.Metadata,
	targetBps int64,
	plan []Attempt,
) Result {
	logger := log.WithComponentFromContext(ctx, "pipeline")
	history := make([]Attempt, 0, len(plan))
	var lastKind runner.Kind

	for _, attempt := range plan {
		if ctx.Err() != nil {
			fsutil.DiscardTemp(tempPath)
			_, _ = machine.fire(eventCancel)
			return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: Cancelled, RetryHistory: history}
		}

		lease, err := p.scheduler.Acquire(ctx, attempt.Encoder)
		if err != nil {
			fsutil.DiscardTemp(tempPath)
			_, _ = machine.fire(eventCancel)
			return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: Cancelled, RetryHistory: history}
		}

		outputCodec := p.opts.OutputCodec
		if attempt.ForceAVC {
			outputCodec = encoder.AVC
		}
		params := argv.Params{
			InputPath:       inputPath,
			OutputPath:      tempPath,
			OutputCodec:     outputCodec,
			TargetBps:       targetBps,
			MaxFPS:          p.opts.FPSMax,
			LimitFPSOnSW:    p.opts.LimitFPSOnSWDecode,
			LimitFPSOnSWEnc: p.opts.LimitFPSOnSWEncode,
			AudioMode:       p.opts.AudioMode,
			AudioCodec:      p.opts.AudioCodec,
			AudioBitrate:    p.opts.AudioBitrate,
			SourceAudioBps:  meta.AudioBitrateBps,
			CPUPreset:       p.opts.CPUPreset,
		}

		spec, ok := argv.Build(attempt.Encoder, attempt.Mode, params)
		if !ok {
			lease.Release(false)
			continue
		}

		timeout := runner.DynamicTimeout(meta.DurationSeconds)
		res := p.runner.Run(ctx, spec.Flatten(), timeout)

		tolerated := false
		if res.Kind == runner.DecodeCorruption && p.opts.RetryDecodeErrorsWithIgnore {
			max := p.opts.MaxIgnoreRetriesPerMethod
			for i := 0; i < max && res.Kind != runner.Success; i++ {
				spec.PreInput = argv.InjectTolerance(spec.PreInput)
				res = p.runner.Run(ctx, spec.Flatten(), timeout)
				tolerated = true
			}
		}

		if res.Kind != runner.Success && p.opts.AudioMode == argv.AudioAuto {
			retryParams := params
			retryParams.AudioMode = argv.AudioTranscode
			if retrySpec, ok := argv.Build(attempt.Encoder, attempt.Mode, retryParams); ok {
				retrySpec.PreInput = spec.PreInput // keep any tolerance flags already injected
				res = p.runner.Run(ctx, retrySpec.Flatten(), timeout)
			}
		}

		attempt.Tolerated = tolerated && res.Kind == runner.Success
		history = append(history, attempt)

		if res.Kind == runner.Success {
			lease.Release(true)
			if err := fsutil.CommitOutput(tempPath, outputPath, p.opts.SkipExisting); err != nil {
				logger.Error().Str(log.FieldInput, inputPath).Err(err).Msg("failed to commit output, treating attempt as failed")
				lastKind = runner.Other
				continue
			}
			_, _ = machine.fire(eventSucceed)
			logger.Info().
				Str(log.FieldInput, inputPath).
				Str(log.FieldOutput, outputPath).
				Str(log.FieldEncoder, string(attempt.Encoder)).
				Str(log.FieldMode, attempt.Method()).
				Msg("task succeeded")
			return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: Success, RetryHistory: history}
		}

		lease.Release(false)
		fsutil.DiscardTemp(tempPath)
		lastKind = res.Kind
		logger.Info().
			Str(log.FieldInput, inputPath).
			Str(log.FieldEncoder, string(attempt.Encoder)).
			Str(log.FieldMode, string(attempt.Mode)).
			Str(log.FieldReason, string(res.Kind)).
			Msg("attempt failed, advancing to next step in plan")
	}

	_, _ = machine.fire(eventFail)
	return Result{InputPath: inputPath, OutputPath: outputPath, Outcome: Failure, RetryHistory: history, LastErrorKind: lastKind}
}
