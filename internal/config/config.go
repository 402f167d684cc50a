// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and validates the orchestrator's run configuration:
// tree roots, skip thresholds, encoding policy, per-encoder pool sizing,
// and error-recovery knobs.
package config

import "fmt"

// PathsConfig names the three tree roots the run operates over.
type PathsConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Log    string `yaml:"log,omitempty"`
}

// FilesConfig controls which inputs are admitted and whether existing
// outputs are overwritten.
type FilesConfig struct {
	KeepStructure bool  `yaml:"keep_structure"`
	MinSizeMB     int64 `yaml:"min_size_mb"`
	SkipExisting  bool  `yaml:"skip_existing"`
}

// BitrateConfig mirrors BitratePlanner's knobs.
type BitrateConfig struct {
	Forced          int64         `yaml:"forced,omitempty"`
	Ratio           float64       `yaml:"ratio,omitempty"`
	Min             int64         `yaml:"min,omitempty"`
	MaxByResolution map[int]int64 `yaml:"max_by_resolution,omitempty"`
}

// AudioConfig controls audio-stream handling.
type AudioConfig struct {
	Mode    string `yaml:"mode"` // off | copy | transcode | auto
	Codec   string `yaml:"codec,omitempty"`
	Bitrate string `yaml:"bitrate,omitempty"`
}

// EncodingConfig selects the output codec and its bitrate/audio policy.
type EncodingConfig struct {
	Codec   string        `yaml:"codec"` // hevc | avc | av1
	Bitrate BitrateConfig `yaml:"bitrate"`
	Audio   AudioConfig   `yaml:"audio"`
}

// FPSConfig is the frame-rate cap policy.
type FPSConfig struct {
	Max                   float64 `yaml:"max"`
	LimitOnSoftwareDecode bool    `yaml:"limit_on_software_decode"`
	LimitOnSoftwareEncode bool    `yaml:"limit_on_software_encode"`
}

// EncoderConfig is one encoder's pool sizing and preset.
type EncoderConfig struct {
	Enabled       bool   `yaml:"enabled"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	Preset        string `yaml:"preset,omitempty"`
}

// SchedulerConfig bounds total cross-encoder concurrency.
type SchedulerConfig struct {
	MaxTotalConcurrent int `yaml:"max_total_concurrent"`
}

// ErrorRecoveryConfig controls the corruption-tolerance retry path.
type ErrorRecoveryConfig struct {
	RetryDecodeErrorsWithIgnore bool `yaml:"retry_decode_errors_with_ignore"`
	MaxIgnoreRetriesPerMethod   int  `yaml:"max_ignore_retries_per_method"`
}

// Config is the fully resolved run configuration.
type Config struct {
	Paths         PathsConfig              `yaml:"paths"`
	Files         FilesConfig              `yaml:"files"`
	Encoding      EncodingConfig           `yaml:"encoding"`
	FPS           FPSConfig                `yaml:"fps"`
	Encoders      map[string]EncoderConfig `yaml:"encoders"`
	Scheduler     SchedulerConfig          `yaml:"scheduler"`
	ErrorRecovery ErrorRecoveryConfig      `yaml:"error_recovery"`
	DryRun        bool                     `yaml:"dry_run,omitempty"`
}

// Default returns a Config with every documented default applied, before
// any file or environment override.
func Default() Config {
	return Config{
		Files: FilesConfig{
			MinSizeMB:    0,
			SkipExisting: true,
		},
		Encoding: EncodingConfig{
			Codec: "hevc",
			Bitrate: BitrateConfig{
				Ratio: 0.5,
				Min:   500_000,
			},
			Audio: AudioConfig{Mode: "auto", Codec: "aac", Bitrate: "128k"},
		},
		FPS: FPSConfig{
			Max:                   30,
			LimitOnSoftwareDecode: true,
		},
		Encoders: map[string]EncoderConfig{
			"nvenc":        {Enabled: true, MaxConcurrent: 2},
			"qsv":          {Enabled: true, MaxConcurrent: 2},
			"videotoolbox": {Enabled: true, MaxConcurrent: 2},
			"cpu":          {Enabled: true, MaxConcurrent: 1, Preset: "medium"},
		},
		Scheduler: SchedulerConfig{MaxTotalConcurrent: 4},
		ErrorRecovery: ErrorRecoveryConfig{
			RetryDecodeErrorsWithIgnore: true,
			MaxIgnoreRetriesPerMethod:   1,
		},
	}
}

// Validate rejects configurations the rest of the system cannot safely
// run with. It does not touch the filesystem; path existence is checked by
// the caller once roots are resolved.
func Validate(cfg Config) error {
	if cfg.Paths.Input == "" {
		return fmt.Errorf("config: paths.input is required")
	}
	if cfg.Paths.Output == "" {
		return fmt.Errorf("config: paths.output is required")
	}
	switch cfg.Encoding.Codec {
	case "hevc", "avc", "av1":
	default:
		return fmt.Errorf("config: encoding.codec %q is not one of hevc, avc, av1", cfg.Encoding.Codec)
	}
	switch cfg.Encoding.Audio.Mode {
	case "off", "copy", "transcode", "auto":
	default:
		return fmt.Errorf("config: encoding.audio.mode %q is not one of off, copy, transcode, auto", cfg.Encoding.Audio.Mode)
	}
	if cfg.Scheduler.MaxTotalConcurrent < 1 {
		return fmt.Errorf("config: scheduler.max_total_concurrent must be >= 1")
	}
	if cfg.ErrorRecovery.MaxIgnoreRetriesPerMethod < 0 {
		return fmt.Errorf("config: error_recovery.max_ignore_retries_per_method must be >= 0")
	}
	for name, enc := range cfg.Encoders {
		if enc.Enabled && enc.MaxConcurrent < 1 {
			return fmt.Errorf("config: encoders.%s.max_concurrent must be >= 1 when enabled", name)
		}
	}
	return nil
}
