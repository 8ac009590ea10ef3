// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	// ConsumedEnvKeys records every environment key the loader looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for the YAML file at configPath. An empty path
// loads defaults and environment only.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path.
func (l *Loader) Path() string { return l.configPath }

// Load applies defaults, then the file (strict), then environment overrides,
// and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if abs, err := filepath.Abs(cfg.DownloadDir); err == nil {
		cfg.DownloadDir = abs
	}
	if cfg.Browser.ProfileDir == "" {
		cfg.Browser.ProfileDir = filepath.Join(cfg.DataDir, "browser-profile")
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes the YAML file over cfg. Unknown keys are rejected.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

// mergeEnv applies STREAMCAP_* overrides.
func (l *Loader) mergeEnv(cfg *Config) {
	cfg.Listen = ParseString(l.key("LISTEN"), cfg.Listen)
	cfg.DataDir = ParseString(l.key("DATA_DIR"), cfg.DataDir)
	cfg.DownloadDir = ParseString(l.key("DOWNLOAD_DIR"), cfg.DownloadDir)
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)

	cfg.Browser.Binary = ParseString(l.key("BROWSER_BINARY"), cfg.Browser.Binary)
	cfg.Browser.ProfileDir = ParseString(l.key("BROWSER_PROFILE_DIR"), cfg.Browser.ProfileDir)
	cfg.Browser.DebugPort = ParseInt(l.key("BROWSER_DEBUG_PORT"), cfg.Browser.DebugPort)
	cfg.Browser.NavTimeout = ParseDuration(l.key("BROWSER_NAV_TIMEOUT"), cfg.Browser.NavTimeout)
	cfg.Browser.Headless = ParseBool(l.key("BROWSER_HEADLESS"), cfg.Browser.Headless)

	cfg.FFmpeg.Binary = ParseString(l.key("FFMPEG_BINARY"), cfg.FFmpeg.Binary)
	cfg.FFmpeg.FFprobeBinary = ParseString(l.key("FFPROBE_BINARY"), cfg.FFmpeg.FFprobeBinary)
	cfg.FFmpeg.KillGrace = ParseDuration(l.key("FFMPEG_KILL_GRACE"), cfg.FFmpeg.KillGrace)

	cfg.Capture.Denylist = ParseList(l.key("DENYLIST"), cfg.Capture.Denylist)
	cfg.Capture.MonitorTimeout = ParseDuration(l.key("MONITOR_TIMEOUT"), cfg.Capture.MonitorTimeout)
	cfg.Capture.SettleWindow = ParseDuration(l.key("SETTLE_WINDOW"), cfg.Capture.SettleWindow)
	cfg.Capture.AutoCloseDelay = ParseDuration(l.key("AUTO_CLOSE_DELAY"), cfg.Capture.AutoCloseDelay)
	cfg.Capture.MaxLaunching = ParseInt(l.key("MAX_LAUNCHING"), cfg.Capture.MaxLaunching)
	cfg.Capture.MaxOpen = ParseInt(l.key("MAX_OPEN"), cfg.Capture.MaxOpen)
	cfg.Capture.GCGrace = ParseDuration(l.key("GC_GRACE"), cfg.Capture.GCGrace)

	cfg.Schedule.Tick = ParseDuration(l.key("SCHEDULE_TICK"), cfg.Schedule.Tick)
	cfg.Schedule.Store.Backend = ParseString(l.key("SCHEDULE_STORE"), cfg.Schedule.Store.Backend)
	cfg.Schedule.Store.Path = ParseString(l.key("SCHEDULE_STORE_PATH"), cfg.Schedule.Store.Path)

	cfg.Cache.Backend = ParseString(l.key("CACHE_BACKEND"), cfg.Cache.Backend)
	cfg.Cache.RedisAddr = ParseString(l.key("REDIS_ADDR"), cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString(l.key("REDIS_PASSWORD"), cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt(l.key("REDIS_DB"), cfg.Cache.RedisDB)
	cfg.Cache.TTL = ParseDuration(l.key("CACHE_TTL"), cfg.Cache.TTL)

	cfg.Telemetry.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Endpoint = ParseString(l.key("OTLP_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.Protocol = ParseString(l.key("OTLP_PROTOCOL"), cfg.Telemetry.Protocol)
	cfg.Telemetry.SampleRate = ParseFloat(l.key("TRACE_SAMPLE_RATE"), cfg.Telemetry.SampleRate)

	cfg.API.RateLimitRPM = ParseInt(l.key("API_RATE_LIMIT_RPM"), cfg.API.RateLimitRPM)
	cfg.API.AllowedOrigins = ParseList(l.key("API_ALLOWED_ORIGINS"), cfg.API.AllowedOrigins)
}
