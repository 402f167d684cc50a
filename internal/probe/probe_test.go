// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package probe

import (
	"context"
	"testing"
)

func TestNormalizeHappyPath(t *testing.T) {
	raw := rawProbeOutput{
		Format: rawFormat{BitRate: "10000000", Duration: "120.5"},
		Streams: []rawStream{
			{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, RFrameRate: "30000/1001", BitRate: "10000000"},
			{CodecType: "audio", CodecName: "aac", BitRate: "192000"},
		},
	}

	meta, ok := normalize(raw)
	if !ok {
		t.Fatal("expected ok=true for stream with video")
	}
	if meta.SourceCodec != "h264" {
		t.Errorf("SourceCodec = %q, want h264", meta.SourceCodec)
	}
	if meta.Width != 1920 || meta.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", meta.Width, meta.Height)
	}
	if meta.AudioBitrateBps != 192000 {
		t.Errorf("AudioBitrateBps = %d, want 192000", meta.AudioBitrateBps)
	}
	if meta.FPS < 29.9 || meta.FPS > 30.0 {
		t.Errorf("FPS = %v, want ~29.97", meta.FPS)
	}
}

func TestNormalizeMissingVideoStream(t *testing.T) {
	raw := rawProbeOutput{Streams: []rawStream{{CodecType: "audio", CodecName: "aac"}}}
	if _, ok := normalize(raw); ok {
		t.Fatal("expected ok=false when no video stream is present")
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := parseFrameRate("30/1", 0); got != 30 {
		t.Errorf("parseFrameRate(30/1) = %v, want 30", got)
	}
	if got := parseFrameRate("garbage", 25); got != 25 {
		t.Errorf("parseFrameRate(garbage) should fall back to default, got %v", got)
	}
	if got := parseFrameRate("30/0", 25); got != 25 {
		t.Errorf("parseFrameRate with zero denominator should fall back, got %v", got)
	}
}

func TestProbeFailureReturnsSentinelDefaults(t *testing.T) {
	c := NewClient("/nonexistent/probe-binary-that-does-not-exist")
	meta := c.Probe(context.Background(), "/nonexistent/input.mp4")

	want := defaultMetadata()
	if meta != want {
		t.Errorf("Probe() on failure = %+v, want sentinel defaults %+v", meta, want)
	}
}
