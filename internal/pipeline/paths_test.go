// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfineRelPath(t *testing.T) {
	tmpDir := t.TempDir()

	subDir := filepath.Join(tmpDir, "subdir")
	if err := os.Mkdir(subDir, 0o750); err != nil {
		t.Fatal(err)
	}
	safeFile := filepath.Join(tmpDir, "safe.mp4")
	if err := os.WriteFile(safeFile, []byte("safe"), 0o600); err != nil {
		t.Fatal(err)
	}
	linkOutside := filepath.Join(tmpDir, "link_outside")
	if err := os.Symlink("..", linkOutside); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		target   string
		wantErr  bool
		wantPath string
	}{
		{name: "valid simple file", target: "safe.mp4", wantPath: "safe.mp4"},
		{name: "valid subdir file, need not exist yet", target: "subdir/out.mp4", wantPath: "subdir/out.mp4"},
		{name: "traversal attempt ..", target: "../outside.mp4", wantErr: true},
		{name: "absolute path rejected", target: "/etc/passwd", wantErr: true},
		{name: "symlink escape", target: "link_outside/out.mp4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := confineRelPath(tmpDir, tt.target)
			if (err != nil) != tt.wantErr {
				t.Fatalf("confineRelPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !strings.HasSuffix(got, tt.wantPath) {
				t.Errorf("confineRelPath() got = %v, want suffix %v", got, tt.wantPath)
			}
		})
	}
}

func TestConfineAbsPath(t *testing.T) {
	tmpDir := t.TempDir()
	safePath := filepath.Join(tmpDir, "safe.mp4")
	if err := os.WriteFile(safePath, []byte("ok"), 0o600); err != nil {
		t.Fatal(err)
	}

	outsideDir := t.TempDir()
	outsidePath := filepath.Join(outsideDir, "secret.mp4")

	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{name: "valid absolute path", target: safePath},
		{name: "outside absolute path", target: outsidePath, wantErr: true},
		{name: "relative path input rejected", target: "safe.mp4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := confineAbsPath(tmpDir, tt.target); (err != nil) != tt.wantErr {
				t.Errorf("confineAbsPath() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveOutputPathKeepStructure(t *testing.T) {
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()
	sub := filepath.Join(inputRoot, "movies")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	inputPath := filepath.Join(sub, "a.mkv")
	if err := os.WriteFile(inputPath, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := resolveOutputPath(inputRoot, outputRoot, inputPath, true)
	if err != nil {
		t.Fatalf("resolveOutputPath: %v", err)
	}
	want := filepath.Join(outputRoot, "movies", "a.mp4")
	if got != want {
		t.Errorf("resolveOutputPath() = %q, want %q", got, want)
	}
}

func TestResolveOutputPathRejectsEscape(t *testing.T) {
	inputRoot := t.TempDir()
	outputRoot := t.TempDir()

	outsideDir := t.TempDir()
	inputPath := filepath.Join(outsideDir, "a.mkv")
	if err := os.WriteFile(inputPath, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := resolveOutputPath(inputRoot, outputRoot, inputPath, true); err == nil {
		t.Error("resolveOutputPath should reject an input outside inputRoot")
	}
}
