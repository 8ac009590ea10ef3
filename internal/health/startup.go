// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ManuGH/streamcap/internal/config"
	"github.com/ManuGH/streamcap/internal/log"
)

// PerformStartupChecks verifies directories and external binaries before
// the daemon starts serving.
func PerformStartupChecks(_ context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	for name, dir := range map[string]string{"data": cfg.DataDir, "download": cfg.DownloadDir} {
		if err := checkWritableDir(dir); err != nil {
			return fmt.Errorf("%s directory check failed: %w", name, err)
		}
		logger.Info().Str("path", dir).Msgf("%s directory is writable", name)
	}

	for _, bin := range []string{cfg.Browser.Binary, cfg.FFmpeg.Binary, cfg.FFmpeg.FFprobeBinary} {
		path, err := exec.LookPath(bin)
		if err != nil {
			return fmt.Errorf("binary not found (%s): %w", bin, err)
		}
		logger.Info().Str("binary", bin).Str("path", path).Msg("dependency available")
	}

	if strings.EqualFold(cfg.Schedule.Store.Backend, "memory") {
		logger.Warn().
			Str("store_backend", cfg.Schedule.Store.Backend).
			Msg("schedules use the in-memory store and are lost on restart")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; schedules and the browser profile may be lost on reboot")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}
