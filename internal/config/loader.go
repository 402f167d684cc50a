// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nyxmedia/transcode-orchestrator/internal/log"
)

// envLookupFunc abstracts os.LookupEnv so tests can inject a fake
// environment without mutating process-global state.
type envLookupFunc func(key string) (string, bool)

// Loader loads a Config from an optional YAML file, then applies
// environment overrides (ENV > file > defaults), matching the precedence
// the rest of the ecosystem's config loaders use.
type Loader struct {
	configPath string
	lookupEnv  envLookupFunc
}

// NewLoader returns a Loader reading configPath (may be empty, meaning
// defaults + environment only) and the process environment.
func NewLoader(configPath string) *Loader {
	return NewLoaderWithEnv(configPath, os.LookupEnv)
}

// NewLoaderWithEnv injects an environment lookup function for testing.
func NewLoaderWithEnv(configPath string, lookup envLookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{configPath: configPath, lookupEnv: lookup}
}

// Load resolves the final Config: defaults, overlaid with the YAML file
// (if configPath is non-empty), overlaid with environment variables,
// then validated.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig is the YAML-file shape of Config. Boolean keys are pointers
// to distinguish "absent from the file" from an explicit false, so a file
// that only sets paths never silently flips a true default off. Non-bool
// fields keep their value types; their zero values double as the absence
// marker in mergeFromFile.
type fileConfig struct {
	Paths PathsConfig `yaml:"paths"`
	Files struct {
		KeepStructure *bool `yaml:"keep_structure"`
		MinSizeMB     int64 `yaml:"min_size_mb"`
		SkipExisting  *bool `yaml:"skip_existing"`
	} `yaml:"files"`
	Encoding EncodingConfig `yaml:"encoding"`
	FPS      struct {
		Max                   float64 `yaml:"max"`
		LimitOnSoftwareDecode *bool   `yaml:"limit_on_software_decode"`
		LimitOnSoftwareEncode *bool   `yaml:"limit_on_software_encode"`
	} `yaml:"fps"`
	Encoders      map[string]EncoderConfig `yaml:"encoders"`
	Scheduler     SchedulerConfig          `yaml:"scheduler"`
	ErrorRecovery struct {
		RetryDecodeErrorsWithIgnore *bool `yaml:"retry_decode_errors_with_ignore"`
		MaxIgnoreRetriesPerMethod   int   `yaml:"max_ignore_retries_per_method"`
	} `yaml:"error_recovery"`
	DryRun *bool `yaml:"dry_run"`
}

// mergeFile decodes the YAML file at configPath over cfg. Unknown fields
// are rejected: a typo'd key should fail loudly, not silently no-op.
func (l *Loader) mergeFile(cfg *Config) error {
	// #nosec G304 -- config path is an operator-supplied CLI argument, not user input
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var fileCfg fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("parse yaml: %w", err)
	}

	mergeFromFile(cfg, fileCfg)
	return nil
}

// mergeFromFile overlays any field the file actually set onto cfg: booleans
// when their pointer is non-nil, everything else when non-zero. Encoders
// is replaced wholesale when present in the file, since a partial per-name
// merge would silently keep defaults the operator meant to override.
func mergeFromFile(cfg *Config, file fileConfig) {
	if file.Paths.Input != "" {
		cfg.Paths.Input = file.Paths.Input
	}
	if file.Paths.Output != "" {
		cfg.Paths.Output = file.Paths.Output
	}
	if file.Paths.Log != "" {
		cfg.Paths.Log = file.Paths.Log
	}
	if file.Files.KeepStructure != nil {
		cfg.Files.KeepStructure = *file.Files.KeepStructure
	}
	if file.Files.MinSizeMB != 0 {
		cfg.Files.MinSizeMB = file.Files.MinSizeMB
	}
	if file.Files.SkipExisting != nil {
		cfg.Files.SkipExisting = *file.Files.SkipExisting
	}

	if file.Encoding.Codec != "" {
		cfg.Encoding.Codec = file.Encoding.Codec
	}
	if file.Encoding.Bitrate.Forced != 0 {
		cfg.Encoding.Bitrate.Forced = file.Encoding.Bitrate.Forced
	}
	if file.Encoding.Bitrate.Ratio != 0 {
		cfg.Encoding.Bitrate.Ratio = file.Encoding.Bitrate.Ratio
	}
	if file.Encoding.Bitrate.Min != 0 {
		cfg.Encoding.Bitrate.Min = file.Encoding.Bitrate.Min
	}
	if file.Encoding.Bitrate.MaxByResolution != nil {
		cfg.Encoding.Bitrate.MaxByResolution = file.Encoding.Bitrate.MaxByResolution
	}
	if file.Encoding.Audio.Mode != "" {
		cfg.Encoding.Audio.Mode = file.Encoding.Audio.Mode
	}
	if file.Encoding.Audio.Codec != "" {
		cfg.Encoding.Audio.Codec = file.Encoding.Audio.Codec
	}
	if file.Encoding.Audio.Bitrate != "" {
		cfg.Encoding.Audio.Bitrate = file.Encoding.Audio.Bitrate
	}

	if file.FPS.Max != 0 {
		cfg.FPS.Max = file.FPS.Max
	}
	if file.FPS.LimitOnSoftwareDecode != nil {
		cfg.FPS.LimitOnSoftwareDecode = *file.FPS.LimitOnSoftwareDecode
	}
	if file.FPS.LimitOnSoftwareEncode != nil {
		cfg.FPS.LimitOnSoftwareEncode = *file.FPS.LimitOnSoftwareEncode
	}

	if file.Encoders != nil {
		cfg.Encoders = file.Encoders
	}

	if file.Scheduler.MaxTotalConcurrent != 0 {
		cfg.Scheduler.MaxTotalConcurrent = file.Scheduler.MaxTotalConcurrent
	}

	if file.ErrorRecovery.RetryDecodeErrorsWithIgnore != nil {
		cfg.ErrorRecovery.RetryDecodeErrorsWithIgnore = *file.ErrorRecovery.RetryDecodeErrorsWithIgnore
	}
	if file.ErrorRecovery.MaxIgnoreRetriesPerMethod != 0 {
		cfg.ErrorRecovery.MaxIgnoreRetriesPerMethod = file.ErrorRecovery.MaxIgnoreRetriesPerMethod
	}

	if file.DryRun != nil {
		cfg.DryRun = *file.DryRun
	}
}

// mergeEnv applies the small set of environment overrides operators use
// for one-off runs without editing the YAML file. Every key consulted is
// prefixed TRANSCODE_ to avoid collisions with unrelated process
// environment.
func (l *Loader) mergeEnv(cfg *Config) {
	logger := log.WithComponent("config")

	if v, ok := l.lookupEnv("TRANSCODE_INPUT"); ok && v != "" {
		cfg.Paths.Input = v
	}
	if v, ok := l.lookupEnv("TRANSCODE_OUTPUT"); ok && v != "" {
		cfg.Paths.Output = v
	}
	if v, ok := l.lookupEnv("TRANSCODE_CODEC"); ok && v != "" {
		cfg.Encoding.Codec = v
	}
	if v, ok := l.lookupEnv("TRANSCODE_DRY_RUN"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DryRun = b
		} else {
			logger.Warn().Str(log.FieldValue, v).Msg("TRANSCODE_DRY_RUN is not a valid bool, ignoring")
		}
	}
	if v, ok := l.lookupEnv("TRANSCODE_MAX_TOTAL_CONCURRENT"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scheduler.MaxTotalConcurrent = n
		} else {
			logger.Warn().Str(log.FieldValue, v).Msg("TRANSCODE_MAX_TOTAL_CONCURRENT is not a positive int, ignoring")
		}
	}
	if v, ok := l.lookupEnv("TRANSCODE_SKIP_EXISTING"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Files.SkipExisting = b
		} else {
			logger.Warn().Str(log.FieldValue, v).Msg("TRANSCODE_SKIP_EXISTING is not a valid bool, ignoring")
		}
	}
}
