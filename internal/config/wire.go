// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"sort"

	"github.com/nyxmedia/transcode-orchestrator/internal/argv"
	"github.com/nyxmedia/transcode-orchestrator/internal/encoder"
	"github.com/nyxmedia/transcode-orchestrator/internal/pipeline"
	"github.com/nyxmedia/transcode-orchestrator/internal/planner"
	"github.com/nyxmedia/transcode-orchestrator/internal/scheduler"
)

// EncoderNames lists every encoder the config's Encoders map may name.
var EncoderNames = []encoder.Name{encoder.NVENC, encoder.QSV, encoder.VideoToolbox, encoder.CPU}

// EnabledMap returns which encoders the operator has enabled, keyed by
// the encoder.Name the detector and pipeline expect. An encoder absent
// from cfg.Encoders is treated as disabled.
func (cfg Config) EnabledMap() map[encoder.Name]bool {
	out := make(map[encoder.Name]bool, len(EncoderNames))
	for _, name := range EncoderNames {
		enc, ok := cfg.Encoders[string(name)]
		out[name] = ok && enc.Enabled
	}
	return out
}

// SchedulerSlots builds the scheduler.Slot map from the per-encoder pool
// config and the detector's availability result: an encoder unavailable
// on this host contributes a disabled, zero-capacity slot regardless of
// what the config requested, so unavailable encoders contribute nothing to
// the global cap budget.
func (cfg Config) SchedulerSlots(available map[encoder.Name]bool) map[encoder.Name]scheduler.Slot {
	slots := make(map[encoder.Name]scheduler.Slot, len(EncoderNames))
	for _, name := range EncoderNames {
		enc := cfg.Encoders[string(name)]
		enabled := enc.Enabled && available[name]
		maxConcurrent := enc.MaxConcurrent
		if !enabled {
			maxConcurrent = 0
		}
		slots[name] = scheduler.Slot{
			MaxConcurrent: maxConcurrent,
			Enabled:       enabled,
		}
	}
	return slots
}

// PlannerConfig extracts the BitratePlanner knobs.
func (cfg Config) PlannerConfig() planner.Config {
	var tiers []planner.ResolutionTier
	for shortSide, cap := range cfg.Encoding.Bitrate.MaxByResolution {
		tiers = append(tiers, planner.ResolutionTier{MaxShortSide: shortSide, CapBps: cap})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MaxShortSide < tiers[j].MaxShortSide })
	return planner.Config{
		Forced: cfg.Encoding.Bitrate.Forced,
		Ratio:  cfg.Encoding.Bitrate.Ratio,
		Min:    cfg.Encoding.Bitrate.Min,
		Tiers:  tiers,
	}
}

// OutputCodec maps the configured codec name to encoder.Codec.
func (cfg Config) OutputCodec() encoder.Codec {
	return encoder.Codec(cfg.Encoding.Codec)
}

// AudioMode maps the configured audio mode name to argv.AudioMode.
func (cfg Config) AudioMode() argv.AudioMode {
	return argv.AudioMode(cfg.Encoding.Audio.Mode)
}

// CPUPreset returns the configured preset for the cpu encoder, if any.
func (cfg Config) CPUPreset() string {
	return cfg.Encoders[string(encoder.CPU)].Preset
}

// PipelineOptions assembles the pipeline.Options this config implies.
// Slot gating against detector availability happens in SchedulerSlots,
// not here.
func (cfg Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		InputRoot:                   cfg.Paths.Input,
		OutputRoot:                  cfg.Paths.Output,
		KeepStructure:               cfg.Files.KeepStructure,
		MinSizeMB:                   cfg.Files.MinSizeMB,
		SkipExisting:                cfg.Files.SkipExisting,
		OutputCodec:                 cfg.OutputCodec(),
		Bitrate:                     cfg.PlannerConfig(),
		AudioMode:                   cfg.AudioMode(),
		AudioCodec:                  cfg.Encoding.Audio.Codec,
		AudioBitrate:                cfg.Encoding.Audio.Bitrate,
		FPSMax:                      cfg.FPS.Max,
		LimitFPSOnSWDecode:          cfg.FPS.LimitOnSoftwareDecode,
		LimitFPSOnSWEncode:          cfg.FPS.LimitOnSoftwareEncode,
		CPUPreset:                   cfg.CPUPreset(),
		RetryDecodeErrorsWithIgnore: cfg.ErrorRecovery.RetryDecodeErrorsWithIgnore,
		MaxIgnoreRetriesPerMethod:   cfg.ErrorRecovery.MaxIgnoreRetriesPerMethod,
	}
}
