// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package walk enumerates the input tree for files with a supported
// source extension. It is plumbing: directory traversal itself
// carries no task semantics, those live in the pipeline.
package walk

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nyxmedia/transcode-orchestrator/internal/log"
)

// SupportedExtensions lists the case-insensitive source extensions the
// orchestrator will pick up from the input tree.
var SupportedExtensions = []string{
	".mp4", ".mkv", ".ts", ".avi", ".rm", ".rmvb", ".wmv", ".m2ts",
	".mpeg", ".mpg", ".mov", ".flv", ".3gp", ".webm", ".m4v", ".vob",
	".ogv", ".f4v",
}

var supportedSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SupportedExtensions))
	for _, ext := range SupportedExtensions {
		m[ext] = struct{}{}
	}
	return m
}()

// IsSupported reports whether ext (as returned by filepath.Ext, including
// the leading dot) names a supported source extension. Comparison is
// case-insensitive.
func IsSupported(ext string) bool {
	_, ok := supportedSet[strings.ToLower(ext)]
	return ok
}

// Files walks root and returns every regular file with a supported
// extension, sorted for deterministic iteration order. Per-entry walk
// errors (permission denied, broken symlink) are logged at WARN and
// skipped rather than aborting the whole walk; the root itself failing to
// open is returned as an error.
func Files(ctx context.Context, root string) ([]string, error) {
	logger := log.WithComponent("walk")
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn().Str(log.FieldPath, path).Err(walkErr).Msg("skipping entry after walk error")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !IsSupported(filepath.Ext(d.Name())) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}
