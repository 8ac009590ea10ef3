// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/streamcap/internal/validate"
)

// Validate checks cfg and creates missing data and download directories.
func Validate(cfg Config) error {
	v := validate.New()

	v.ListenAddr("listen", cfg.Listen)
	v.WritableDirectory("dataDir", cfg.DataDir, false)
	v.WritableDirectory("downloadDir", cfg.DownloadDir, false)
	if !validate.LogLevel(strings.ToLower(cfg.LogLevel)).IsValid() {
		v.AddError("logLevel", "invalid log level (must be: trace, debug, info, warn, error)", cfg.LogLevel)
	}

	v.NotEmpty("browser.binary", cfg.Browser.Binary)
	if cfg.Browser.DebugPort != 0 {
		v.Port("browser.debugPort", cfg.Browser.DebugPort)
	}
	v.MinDuration("browser.navTimeout", cfg.Browser.NavTimeout, time.Second)

	v.NotEmpty("ffmpeg.binary", cfg.FFmpeg.Binary)
	v.NotEmpty("ffmpeg.ffprobeBinary", cfg.FFmpeg.FFprobeBinary)
	v.MinDuration("ffmpeg.killGrace", cfg.FFmpeg.KillGrace, 0)
	v.MinDuration("ffmpeg.sampleInterval", cfg.FFmpeg.SampleInterval, 100*time.Millisecond)

	for _, entry := range cfg.Capture.Denylist {
		if strings.TrimSpace(entry) == "" {
			v.AddError("capture.denylist", "entries cannot be empty", entry)
		}
	}
	v.MinDuration("capture.monitorTimeout", cfg.Capture.MonitorTimeout, time.Second)
	v.MinDuration("capture.settleWindow", cfg.Capture.SettleWindow, 0)
	v.MinDuration("capture.autoCloseDelay", cfg.Capture.AutoCloseDelay, 0)
	v.Range("capture.maxLaunching", cfg.Capture.MaxLaunching, 1, 16)
	v.NonNegative("capture.maxOpen", cfg.Capture.MaxOpen)
	if cfg.Capture.MaxOpen > 0 && cfg.Capture.MaxOpen < cfg.Capture.MaxLaunching {
		v.AddError("capture.maxOpen", "must be 0 or at least maxLaunching", cfg.Capture.MaxOpen)
	}
	v.MinDuration("capture.gcGrace", cfg.Capture.GCGrace, time.Second)
	v.MinDuration("capture.probeTimeout", cfg.Capture.ProbeTimeout, time.Second)

	v.MinDuration("schedule.tick", cfg.Schedule.Tick, time.Second)
	v.OneOf("schedule.store.backend", cfg.Schedule.Store.Backend, []string{"sqlite", "badger", "memory"})

	v.OneOf("cache.backend", cfg.Cache.Backend, []string{"memory", "redis", "none"})
	if cfg.Cache.Backend == "redis" {
		v.NotEmpty("cache.redisAddr", cfg.Cache.RedisAddr)
	}
	v.NonNegative("cache.redisDB", cfg.Cache.RedisDB)
	v.MinDuration("cache.ttl", cfg.Cache.TTL, time.Second)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.protocol", cfg.Telemetry.Protocol, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("telemetry.sampleRate", cfg.Telemetry.SampleRate)
	}

	v.NonNegative("api.rateLimitRPM", cfg.API.RateLimitRPM)
	for _, origin := range cfg.API.AllowedOrigins {
		if origin != "*" {
			v.URL("api.allowedOrigins", origin, []string{"http", "https"})
		}
	}

	return v.Err()
}
