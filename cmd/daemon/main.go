// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamcapd runs the capture daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/streamcap/internal/config"
	"github.com/ManuGH/streamcap/internal/daemon"
	"github.com/ManuGH/streamcap/internal/health"
	sclog "github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("streamcapd", flag.ContinueOnError)
	showVersion := fs.Bool("version", false, "print version and exit")
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	// Configure logger with safe defaults until config is loaded
	sclog.Configure(sclog.Config{Level: "info", Service: "streamcap", Version: version.Version})
	logger := sclog.WithComponent("daemon")

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).
			Str(sclog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
		return 1
	}
	sclog.Configure(sclog.Config{Level: cfg.LogLevel, Service: "streamcap", Version: version.Version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().Err(err).
			Str(sclog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return 1
	}

	lock, err := daemon.AcquireInstanceLock(cfg.DataDir)
	if err != nil {
		logger.Error().Err(err).Str("data_dir", cfg.DataDir).Msg("cannot start")
		return 1
	}
	defer func() { _ = lock.Release() }()

	logger.Info().
		Str(sclog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("config", cfg.String()).
		Msg("starting streamcap")

	rt, err := daemon.Bootstrap(ctx, cfg, version.Version, daemon.Overrides{})
	if err != nil {
		logger.Error().Err(err).Str(sclog.FieldEvent, "bootstrap.failed").Msg("failed to assemble runtime")
		return 1
	}

	app := daemon.NewApp(rt, config.NewHolder(cfg, loader))
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Str(sclog.FieldEvent, "daemon.failed").Msg("daemon stopped with error")
		return 1
	}
	return 0
}
