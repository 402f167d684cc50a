// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package planner

import (
	"testing"

	"github.com/nyxmedia/transcode-orchestrator/internal/probe"
)

func TestPlanForcedOverridesEverything(t *testing.T) {
	meta := probe.Metadata{VideoBitrateBps: 10_000_000, Width: 1920, Height: 1080}
	got := Plan(meta, Config{Forced: 7_000_000, Ratio: 0.1})
	if got != 7_000_000 {
		t.Errorf("Plan() = %d, want forced 7000000", got)
	}
}

func TestPlanClampsToTierCap(t *testing.T) {
	// 1080p, 10 Mbps source, ratio=0.5 -> clamp to the 1080p cap of 3 Mbps.
	meta := probe.Metadata{VideoBitrateBps: 10_000_000, Width: 1920, Height: 1080}
	got := Plan(meta, Config{Ratio: 0.5})
	if got != 3_000_000 {
		t.Errorf("Plan() = %d, want 3000000 (1080p cap)", got)
	}
}

func TestPlanClampsToFloor(t *testing.T) {
	meta := probe.Metadata{VideoBitrateBps: 100_000, Width: 640, Height: 360}
	got := Plan(meta, Config{Ratio: 0.5})
	if got != DefaultMin {
		t.Errorf("Plan() = %d, want floor %d", got, DefaultMin)
	}
}

func TestPlanCustomTierOverride(t *testing.T) {
	meta := probe.Metadata{VideoBitrateBps: 20_000_000, Width: 3840, Height: 2160}
	custom := []ResolutionTier{{MaxShortSide: 2160, CapBps: 12_000_000}}
	got := Plan(meta, Config{Ratio: 1.0, Tiers: custom})
	if got != 12_000_000 {
		t.Errorf("Plan() with custom tiers = %d, want 12000000", got)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		shortSide int
		wantCap   int64
	}{
		{480, 1_500_000},
		{720, 1_500_000},
		{1080, 3_000_000},
		{1440, 5_000_000},
		{2160, 9_000_000},
	}
	for _, c := range cases {
		got := tierCap(c.shortSide, 99999, nil)
		if got != c.wantCap {
			t.Errorf("tierCap(%d) = %d, want %d", c.shortSide, got, c.wantCap)
		}
	}
}
