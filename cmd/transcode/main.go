// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nyxmedia/transcode-orchestrator/internal/app"
	"github.com/nyxmedia/transcode-orchestrator/internal/config"
	olog "github.com/nyxmedia/transcode-orchestrator/internal/log"
	"github.com/nyxmedia/transcode-orchestrator/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		return 0
	}

	olog.Configure(olog.Config{
		Level:   "info",
		Service: "transcode-orchestrator",
		Version: version.Version,
	})
	logger := olog.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(olog.FieldConfigPath, *configPath).Msg("failed to load configuration")
		return 1
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize orchestrator")
		return 1
	}

	// Kill every in-flight transcoder child as soon as the run context is
	// cancelled. The workers themselves observe ctx cancellation
	// at their own suspension points and unwind without output.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Warn().Msg("shutdown signal received, terminating in-flight transcoder processes")
			a.Shutdown()
		case <-done:
		}
	}()

	summary, err := a.Run(ctx)
	close(done)
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		return 1
	}

	if ctx.Err() != nil {
		logger.Warn().Msg("run interrupted by signal")
		return 130
	}

	if summary.Failed() {
		return 1
	}
	return 0
}
