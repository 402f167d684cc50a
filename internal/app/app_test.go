// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package app

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/nyxmedia/transcode-orchestrator/internal/config"
)

const fakeProbeBody = `#!/bin/sh
cat <<EOF
{
  "format": {"bit_rate": "10000000", "duration": "120.0"},
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30/1", "bit_rate": "10000000"},
    {"codec_type": "audio", "codec_name": "aac", "bit_rate": "128000"}
  ]
}
EOF
`

const fakeEncoderBody = `#!/bin/sh
last=""
for a in "$@"; do
  last="$a"
done
: > "$last"
exit 0
`

// slowEncoderBody never finishes on its own; a test using it must kill it.
const slowEncoderBody = `#!/bin/sh
sleep 60
`

// installFakeBinaries puts ffmpeg/ffprobe stand-ins on PATH ahead of
// anything already installed, so App.New's hardcoded "ffmpeg"/"ffprobe"
// lookups resolve to these fixtures; the transcoder and probe are always
// invoked as bare names found on PATH, never a configurable path.
func installFakeBinaries(t *testing.T) {
	t.Helper()
	installBinariesWithEncoder(t, fakeEncoderBody)
}

func installBinariesWithEncoder(t *testing.T, encoderBody string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fixture scripts are POSIX shell, not supported on windows")
	}
	dir := t.TempDir()
	for name, body := range map[string]string{"ffmpeg": encoderBody, "ffprobe": fakeProbeBody} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil { //nolint:gosec // test fixture, executable by design
			t.Fatalf("write fake %s: %v", name, err)
		}
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunDryRunEnumeratesWithoutSpawning(t *testing.T) {
	// No fake binaries installed. Dry run must not hand the file to the
	// pipeline: a processed file would record a task outcome, which
	// Total() counts.
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(inputRoot, "a.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.Default()
	cfg.Paths.Input = inputRoot
	cfg.Paths.Output = outputRoot
	cfg.DryRun = true

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total() != 0 {
		t.Errorf("dry run should not record task outcomes, got %+v", summary)
	}
}

func TestRunProcessesFilesEndToEnd(t *testing.T) {
	installFakeBinaries(t)

	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(inputRoot, "a.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.Default()
	cfg.Paths.Input = inputRoot
	cfg.Paths.Output = outputRoot
	cfg.Files.MinSizeMB = 0
	cfg.Scheduler.MaxTotalConcurrent = 2

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	summary, err := a.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total() != 1 {
		t.Fatalf("Total = %d, want 1", summary.Total())
	}
	if summary.Failed() {
		t.Fatalf("summary reports failure: %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "a.mp4")); err != nil {
		t.Errorf("expected output file, got: %v", err)
	}
}

// Cancellation mid-flight: the encoder child is already running when the
// signal lands. It must be killed promptly, the run must unwind, and no
// output or temp file may survive.
func TestRunKillsInFlightChildOnCancel(t *testing.T) {
	installBinariesWithEncoder(t, slowEncoderBody)

	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(inputRoot, "a.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.Default()
	cfg.Paths.Input = inputRoot
	cfg.Paths.Output = outputRoot
	// Only cpu enabled: detection skips the hardware preflight probes, so
	// the slow fake encoder is first spawned by the task attempt itself.
	cfg.Encoders = map[string]config.EncoderConfig{
		"cpu": {Enabled: true, MaxConcurrent: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := a.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()

	// Give the worker time to spawn the encoder child, then deliver the
	// shutdown the way main does: cancel the context and kill children.
	time.Sleep(300 * time.Millisecond)
	cancel()
	a.Shutdown()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation; in-flight child was not killed")
	}

	if _, err := os.Stat(filepath.Join(outputRoot, "a.mp4")); err == nil {
		t.Error("cancelled run must not produce committed output")
	}
	if _, err := os.Stat(filepath.Join(outputRoot, "tmp_a.mp4")); err == nil {
		t.Error("cancelled run must not leave a temp file behind")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	installFakeBinaries(t)

	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	if err := os.WriteFile(filepath.Join(inputRoot, "a.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg := config.Default()
	cfg.Paths.Input = inputRoot
	cfg.Paths.Output = outputRoot

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := a.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Either the file never got submitted (Total==0) or the submitted
	// task observed cancellation inside the pipeline; both leave no
	// successful output and nothing partially committed.
	if _, statErr := os.Stat(filepath.Join(outputRoot, "a.mp4")); statErr == nil {
		t.Error("cancelled run must not produce committed output")
	}
	_ = summary
}
