// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package planner derives a target video bitrate from source metadata,
// resolution tier, and configuration.
package planner

import "github.com/nyxmedia/transcode-orchestrator/internal/probe"

// ResolutionTier caps the target bitrate for sources whose shorter side is
// at most MaxShortSide pixels. Tiers must be sorted ascending by
// MaxShortSide; the last tier is the catch-all for anything larger.
type ResolutionTier struct {
	MaxShortSide int
	CapBps       int64
}

// DefaultTiers is the built-in resolution-tier cap table.
var DefaultTiers = []ResolutionTier{
	{MaxShortSide: 720, CapBps: 1_500_000},
	{MaxShortSide: 1080, CapBps: 3_000_000},
	{MaxShortSide: 1440, CapBps: 5_000_000},
	{MaxShortSide: 0, CapBps: 9_000_000}, // catch-all; MaxShortSide is ignored
}

// Config carries the bitrate-planning knobs from the orchestrator's
// configuration file.
type Config struct {
	Forced int64            // if > 0, used verbatim
	Ratio  float64          // multiplier on source bitrate; 0 means DefaultRatio
	Min    int64            // floor; 0 means DefaultMin
	Tiers  []ResolutionTier // nil means DefaultTiers
}

const (
	DefaultRatio = 0.5
	DefaultMin   = int64(500_000)
)

// Plan computes the target video bitrate for meta under cfg.
func Plan(meta probe.Metadata, cfg Config) int64 {
	if cfg.Forced > 0 {
		return cfg.Forced
	}

	ratio := cfg.Ratio
	if ratio <= 0 {
		ratio = DefaultRatio
	}
	min := cfg.Min
	if min <= 0 {
		min = DefaultMin
	}

	candidate := int64(float64(meta.VideoBitrateBps) * ratio)
	cap := tierCap(meta.Width, meta.Height, cfg.Tiers)

	return clamp(candidate, min, cap)
}

// tierCap resolves the bitrate ceiling for a resolution from the tier table.
func tierCap(width, height int, tiers []ResolutionTier) int64 {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	shortSide := width
	if height < shortSide {
		shortSide = height
	}
	for i, t := range tiers {
		last := i == len(tiers)-1
		if last || shortSide <= t.MaxShortSide {
			return t.CapBps
		}
	}
	return tiers[len(tiers)-1].CapBps
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
