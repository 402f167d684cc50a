// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// TempPathFor returns the sibling temp path a task writes to while encoding,
// per the "tmp_" prefix convention: the encoder subprocess owns outputPath
// only after CommitOutput succeeds.
func TempPathFor(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	return filepath.Join(dir, "tmp_"+base)
}

// CommitOutput atomically renames tempPath into place at outputPath. The
// encoder subprocess already wrote tempPath directly (the transcoder needs
// a real path, not an io.Writer), so the file is fsynced and renamed in
// place rather than staged through a pending-file writer; the containing
// directory is fsynced afterwards so the rename itself is durable.
//
// If skipExisting is true and outputPath already exists, tempPath is
// discarded instead of overwriting it, honoring skip_existing at the last
// possible moment.
func CommitOutput(tempPath, outputPath string, skipExisting bool) error {
	if skipExisting {
		if _, err := os.Stat(outputPath); err == nil {
			_ = os.Remove(tempPath)
			return nil
		}
	}

	f, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("commit output %s: %w", outputPath, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("commit output %s: sync temp: %w", outputPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("commit output %s: %w", outputPath, err)
	}

	if err := os.Rename(tempPath, outputPath); err != nil {
		return fmt.Errorf("commit output %s: %w", outputPath, err)
	}

	return syncDir(filepath.Dir(outputPath))
}

// syncDir fsyncs a directory so a just-committed rename survives a crash.
// Windows cannot open directories for sync; the rename is still atomic
// there, just not durably ordered.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("sync dir %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir %s: %w", dir, err)
	}
	return nil
}

// DiscardTemp removes a temp file left behind by a failed or cancelled
// attempt. Missing files are not an error.
func DiscardTemp(tempPath string) {
	if tempPath == "" {
		return
	}
	_ = os.Remove(tempPath)
}
