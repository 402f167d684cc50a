// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package detector probes, at startup, which transcoder encoders are
// actually usable on this host. Generalizes the two-tier "device exists,
// then real encode verified" pattern across the three hardware encoders:
// a hardware encoder is available only after a minimal null-output encode
// attempt succeeds, never from a device-file stat alone. cpu is not probed;
// it is available whenever it is enabled.
package detector

import (
	"context"
	"time"

	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
	"github.com/nyxmedia/transcode-orchestrator/internal/log"
	"github.com/nyxmedia/transcode-orchestrator/internal/runner"
)

// preflightArgv returns the minimal null-output encode argv used to verify
// that name actually works on this host, or nil if name has neither an hevc
// nor an avc tag. Detect only calls it for hardware encoders; cpu is not
// probed.
func preflightArgv(name encoder.Name) []string {
	tag, ok := encoder.Tag(name, encoder.HEVC)
	if !ok {
		tag, ok = encoder.Tag(name, encoder.AVC)
		if !ok {
			return nil
		}
	}

	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	switch name {
	case encoder.NVENC:
		args = append(args, "-hwaccel", "cuda")
	case encoder.QSV:
		args = append(args, "-hwaccel", "qsv")
	case encoder.VideoToolbox:
		args = append(args, "-hwaccel", "videotoolbox")
	}
	args = append(args,
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=0.1",
		"-c:v", tag, "-frames:v", "1",
		"-f", "null", "-",
	)
	return args
}

// Availability is the read-only result of a detection run, consumed by
// the scheduler and the task pipeline's AttemptPlan builder.
type Availability map[encoder.Name]bool

// Detect runs one preflight encode per hardware encoder plus a trivial
// check for cpu (always available), and returns which are usable. Any
// encoder whose preflight probe errors or times out is marked
// unavailable; detection is fail-closed.
func Detect(ctx context.Context, r *runner.Runner, enabled map[encoder.Name]bool) Availability {
	logger := log.WithComponent("detector")
	result := make(Availability, len(encoder.HWEncoders)+1)

	for _, name := range encoder.HWEncoders {
		if enabled != nil && !enabled[name] {
			result[name] = false
			continue
		}
		args := preflightArgv(name)
		if args == nil {
			result[name] = false
			continue
		}
		res := r.Run(ctx, args, 15*time.Second)
		ok := res.Kind == runner.Success
		result[name] = ok
		if !ok {
			logger.Warn().Str(log.FieldEncoder, string(name)).Str(log.FieldReason, string(res.Kind)).Msg("encoder preflight failed, disabling for this run")
		} else {
			logger.Info().Str(log.FieldEncoder, string(name)).Msg("encoder preflight succeeded")
		}
	}

	if enabled == nil || enabled[encoder.CPU] {
		result[encoder.CPU] = true
	} else {
		result[encoder.CPU] = false
	}

	return result
}
