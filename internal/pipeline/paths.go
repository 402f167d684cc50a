// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned by resolveOutputPath when the input or the
// computed output would resolve outside its configured root.
type ErrPathEscape struct {
	Path string
	Root string
}

func (e *ErrPathEscape) Error() string {
	return "path escapes root: " + e.Path + " (root " + e.Root + ")"
}

// resolveOutputPath computes the output path for an input file under
// inputRoot, per the keep_structure rule, and confirms neither
// the resolved input nor the computed output escapes its root via symlink
// or traversal tricks. No file needs to exist for this check to run.
func resolveOutputPath(inputRoot, outputRoot, inputPath string, keepStructure bool) (string, error) {
	realInput, err := confineAbsPath(inputRoot, inputPath)
	if err != nil {
		return "", &ErrPathEscape{Path: inputPath, Root: inputRoot}
	}

	var outputPath string
	if keepStructure {
		rel, err := filepath.Rel(inputRoot, realInput)
		if err != nil {
			return "", &ErrPathEscape{Path: inputPath, Root: inputRoot}
		}
		rel = replaceExt(rel, ".mp4")
		confined, err := confineRelPath(outputRoot, rel)
		if err != nil {
			return "", &ErrPathEscape{Path: inputPath, Root: outputRoot}
		}
		outputPath = confined
	} else {
		stem := replaceExt(filepath.Base(realInput), ".mp4")
		confined, err := confineRelPath(outputRoot, stem)
		if err != nil {
			return "", &ErrPathEscape{Path: inputPath, Root: outputRoot}
		}
		outputPath = confined
	}

	return outputPath, nil
}

func replaceExt(path, newExt string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}

// confineRelPath ensures that joining root and relTarget resolves to a path
// physically underneath root, guarding against symlink traversal and
// backslash bypass. relTarget must be relative — this is the guard on the
// computed output stem/relative-structure path in resolveOutputPath.
func confineRelPath(root, relTarget string) (string, error) {
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}

	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) || strings.HasPrefix(cleanRel, "/") {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	realRoot, err := resolveRoot(root)
	if err != nil {
		return "", err
	}

	return resolveAndConfine(realRoot, filepath.Join(realRoot, cleanRel))
}

// confineAbsPath ensures that targetAbs resolves to a path physically
// underneath root. targetAbs must be absolute — this is the guard on the
// raw input path handed to Process before anything else runs.
func confineAbsPath(rootAbs, targetAbs string) (string, error) {
	if strings.Contains(targetAbs, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", targetAbs)
	}
	if !filepath.IsAbs(targetAbs) {
		return "", fmt.Errorf("target path must be absolute: %s", targetAbs)
	}
	targetAbs = filepath.Clean(targetAbs)

	realRoot, err := resolveRoot(rootAbs)
	if err != nil {
		return "", err
	}

	return resolveAndConfine(realRoot, targetAbs)
}

func resolveRoot(root string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", err
		}
		return absRoot, nil
	}
	return realRoot, nil
}

// resolveAndConfine resolves fullPath's symlinks (walking up to the nearest
// existing parent when fullPath itself doesn't exist yet) and rejects it
// unless the resolved path is realRoot or physically underneath it.
func resolveAndConfine(realRoot, fullPath string) (string, error) {
	var realPath string
	if _, err := os.Lstat(fullPath); err == nil {
		rp, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		realPath = rp
	} else {
		dir := filepath.Dir(fullPath)
		if rp, err := filepath.EvalSymlinks(dir); err == nil {
			realPath = filepath.Join(rp, filepath.Base(fullPath))
		} else if _, statErr := os.Stat(dir); statErr == nil {
			return "", fmt.Errorf("failed to resolve parent path: %v", err)
		} else {
			realPath = fullPath
		}
	}

	rel, err := filepath.Rel(realRoot, realPath)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root via symlinks: %s", realPath)
	}

	return realPath, nil
}
