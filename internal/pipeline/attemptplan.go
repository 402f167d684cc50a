// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"github.com/nyxmedia/transcode-orchestrator/internal/argv"
	"github.com/nyxmedia/transcode-orchestrator/internal/detector"
	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
)

// Attempt is one (encoder, decode mode) step in an AttemptPlan. ForceAVC
// marks the final CPU compatibility fallback, which ignores the
// configured output codec and always targets AVC. Tolerated is set on the
// history copy when the attempt only succeeded after corruption-tolerance
// flags were injected; the plan itself never carries it.
type Attempt struct {
	Encoder   encoder.Name
	Mode      argv.DecodeMode
	ForceAVC  bool
	Tolerated bool
}

// Method renders the attempt for logs and history, appending the
// corruption-tolerance marker when tolerance flags were needed.
func (a Attempt) Method() string {
	m := string(a.Encoder) + "/" + string(a.Mode)
	if a.Tolerated {
		m += " + 忽错容错"
	}
	return m
}

// buildAttemptPlan computes the ordered sequence of (encoder, decode_mode)
// pairs a task will try, from the set of available encoders, the source
// codec, and the configured output codec. The plan is computed once at
// task admission and iterated without mutation, so the attempts actually
// made are always a prefix of the plan.
func buildAttemptPlan(sourceCodec string, avail detector.Availability, outputCodec encoder.Codec) []Attempt {
	hasTag := func(e encoder.Name) bool {
		_, ok := encoder.Tag(e, outputCodec)
		return ok
	}

	var plan []Attempt
	for _, e := range encoder.HWEncoders {
		if !avail[e] || !hasTag(e) {
			continue
		}
		if encoder.HWDecodeSupported(e, sourceCodec) {
			plan = append(plan, Attempt{Encoder: e, Mode: argv.HWDecode})
		}
		plan = append(plan, Attempt{Encoder: e, Mode: argv.SWDecodeLimited})
		plan = append(plan, Attempt{Encoder: e, Mode: argv.SWDecode})
	}

	if avail[encoder.CPU] {
		if hasTag(encoder.CPU) {
			plan = append(plan, Attempt{Encoder: encoder.CPU, Mode: argv.SWDecodeLimited})
			plan = append(plan, Attempt{Encoder: encoder.CPU, Mode: argv.SWDecode})
		}
		if outputCodec != encoder.AVC {
			plan = append(plan, Attempt{Encoder: encoder.CPU, Mode: argv.SWDecode, ForceAVC: true})
		}
	}

	return plan
}
