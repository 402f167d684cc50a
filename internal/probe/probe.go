// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package probe invokes the external metadata probe binary and normalizes
// its JSON output into a closed Metadata struct. Probe failures never
// propagate as errors to callers: a probe that fails or times out yields
// sentinel defaults so the rest of the pipeline can proceed.
package probe

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nyxmedia/transcode-orchestrator/internal/log"
)

const defaultTimeout = 10 * time.Second

// Metadata is the normalized view of a source file the rest of the
// pipeline consumes. Field names deliberately do not mirror the raw probe
// JSON shape; raw decoded values never propagate past this package.
type Metadata struct {
	SourceCodec     string
	Width           int
	Height          int
	DurationSeconds float64
	FPS             float64
	VideoBitrateBps int64
	AudioBitrateBps int64 // 0 means unknown/absent
}

// defaultMetadata is the sentinel returned whenever probing fails.
func defaultMetadata() Metadata {
	return Metadata{
		SourceCodec:     "unknown",
		Width:           1920,
		Height:          1080,
		FPS:             30,
		VideoBitrateBps: 3_000_000,
	}
}

// rawFormat and rawStream mirror only the fields the probe binary's JSON
// output guarantees; everything else in the blob is ignored.
type rawProbeOutput struct {
	Format  rawFormat   `json:"format"`
	Streams []rawStream `json:"streams"`
}

type rawFormat struct {
	BitRate  string `json:"bit_rate"`
	Duration string `json:"duration"`
}

type rawStream struct {
	CodecType   string `json:"codec_type"`
	CodecName   string `json:"codec_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	RFrameRate  string `json:"r_frame_rate"`
	BitRate     string `json:"bit_rate"`
}

// Client invokes the external probe binary.
type Client struct {
	// BinPath is the probe executable name or path (defaults to "ffprobe").
	BinPath string
	// Timeout bounds each invocation; defaults to 10s.
	Timeout time.Duration
}

// NewClient returns a Client configured with the given probe binary path.
// An empty binPath defaults to "ffprobe".
func NewClient(binPath string) *Client {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &Client{BinPath: binPath, Timeout: defaultTimeout}
}

// Probe invokes the probe binary against path and returns normalized
// metadata. On any failure (spawn error, non-zero exit, malformed JSON,
// timeout) it logs at WARN and returns sentinel defaults; it never returns
// an error.
func (c *Client) Probe(ctx context.Context, path string) Metadata {
	logger := log.WithComponent("probe")

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	binPath := c.BinPath
	if binPath == "" {
		binPath = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, binPath, //nolint:gosec // path is confined by the pipeline package before Probe is ever called
		"-v", "error",
		"-show_entries", "format=bit_rate,duration:stream=codec_type,codec_name,width,height,r_frame_rate,bit_rate",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		logger.Warn().Err(err).Str(log.FieldPath, path).Msg("probe failed, using default metadata")
		return defaultMetadata()
	}

	var raw rawProbeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		logger.Warn().Err(err).Str(log.FieldPath, path).Msg("probe returned unparsable json, using default metadata")
		return defaultMetadata()
	}

	meta, ok := normalize(raw)
	if !ok {
		logger.Warn().Str(log.FieldPath, path).Msg("probe output missing video stream, using default metadata")
		return defaultMetadata()
	}
	return meta
}

func normalize(raw rawProbeOutput) (Metadata, bool) {
	var video *rawStream
	var audio *rawStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return Metadata{}, false
	}

	meta := defaultMetadata()
	meta.SourceCodec = nonEmpty(video.CodecName, meta.SourceCodec)
	meta.Width = positiveInt(video.Width, meta.Width)
	meta.Height = positiveInt(video.Height, meta.Height)
	meta.FPS = parseFrameRate(video.RFrameRate, meta.FPS)
	if bps, ok := parseInt64(video.BitRate); ok && bps > 0 {
		meta.VideoBitrateBps = bps
	} else if bps, ok := parseInt64(raw.Format.BitRate); ok && bps > 0 {
		meta.VideoBitrateBps = bps
	}
	if dur, ok := parseFloat64(raw.Format.Duration); ok {
		meta.DurationSeconds = dur
	}
	if audio != nil {
		if bps, ok := parseInt64(audio.BitRate); ok && bps > 0 {
			meta.AudioBitrateBps = bps
		}
	}
	return meta, true
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func positiveInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func parseInt64(s string) (int64, bool) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloat64(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFrameRate parses ffprobe's "num/den" r_frame_rate format.
func parseFrameRate(s string, fallback float64) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return fallback
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return fallback
	}
	return num / den
}
