// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from defaults, a strict
// YAML file and STREAMCAP_* environment variables, in that order.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the effective daemon configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	DataDir     string `yaml:"dataDir"`
	DownloadDir string `yaml:"downloadDir"`
	LogLevel    string `yaml:"logLevel"`

	Browser   BrowserConfig   `yaml:"browser"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Capture   CaptureConfig   `yaml:"capture"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Cache     CacheConfig     `yaml:"cache"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`
}

type BrowserConfig struct {
	Binary string `yaml:"binary"`
	// Shared profile directory; defaults to <dataDir>/browser-profile.
	ProfileDir string `yaml:"profileDir"`
	// 0 lets the browser pick a port.
	DebugPort  int           `yaml:"debugPort"`
	NavTimeout time.Duration `yaml:"navTimeout"`
	Headless   bool          `yaml:"headless"`
}

type FFmpegConfig struct {
	Binary         string        `yaml:"binary"`
	FFprobeBinary  string        `yaml:"ffprobeBinary"`
	KillGrace      time.Duration `yaml:"killGrace"`
	SampleInterval time.Duration `yaml:"sampleInterval"`
}

type CaptureConfig struct {
	Denylist       []string      `yaml:"denylist"`
	MonitorTimeout time.Duration `yaml:"monitorTimeout"`
	SettleWindow   time.Duration `yaml:"settleWindow"`
	AutoCloseDelay time.Duration `yaml:"autoCloseDelay"`
	MaxLaunching   int           `yaml:"maxLaunching"`
	// 0 means unlimited.
	MaxOpen      int           `yaml:"maxOpen"`
	GCGrace      time.Duration `yaml:"gcGrace"`
	ProbeTimeout time.Duration `yaml:"probeTimeout"`
}

type ScheduleConfig struct {
	Tick  time.Duration `yaml:"tick"`
	Store StoreConfig   `yaml:"store"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // sqlite, badger or memory
	// Directory holding the store; defaults to dataDir.
	Path string `yaml:"path"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis or none
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	TTL           time.Duration `yaml:"ttl"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Protocol    string  `yaml:"protocol"` // grpc or http
	SampleRate  float64 `yaml:"sampleRate"`
	Environment string  `yaml:"environment"`
}

type APIConfig struct {
	// Session starts per minute per client; 0 disables the limit.
	RateLimitRPM int `yaml:"rateLimitRPM"`
	// Browser origins allowed to call the API.
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:      "127.0.0.1:8088",
		DataDir:     "./data",
		DownloadDir: "./downloads",
		LogLevel:    "info",
		Browser: BrowserConfig{
			Binary:     "chromium",
			NavTimeout: 30 * time.Second,
		},
		FFmpeg: FFmpegConfig{
			Binary:         "ffmpeg",
			FFprobeBinary:  "ffprobe",
			KillGrace:      5 * time.Second,
			SampleInterval: 2 * time.Second,
		},
		Capture: CaptureConfig{
			Denylist:       []string{"doubleclick", "googlesyndication", "/ads/", "adservice", "imasdk"},
			MonitorTimeout: 90 * time.Second,
			SettleWindow:   3 * time.Second,
			AutoCloseDelay: 15 * time.Second,
			MaxLaunching:   1,
			GCGrace:        10 * time.Minute,
			ProbeTimeout:   15 * time.Second,
		},
		Schedule: ScheduleConfig{
			Tick:  30 * time.Second,
			Store: StoreConfig{Backend: "sqlite"},
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			Environment: "production",
		},
		API: APIConfig{
			RateLimitRPM: 30,
		},
	}
}

// ScheduleStoreDir is the directory the schedule store lives in.
func (c Config) ScheduleStoreDir() string {
	if c.Schedule.Store.Path != "" {
		return c.Schedule.Store.Path
	}
	return c.DataDir
}

// String renders a one-line summary with secrets masked.
func (c Config) String() string {
	redis := ""
	if c.Cache.Backend == "redis" {
		redis = fmt.Sprintf(" redis=%s password=%s", c.Cache.RedisAddr, mask(c.Cache.RedisPassword))
	}
	return fmt.Sprintf("listen=%s dataDir=%s downloadDir=%s browser=%s ffmpeg=%s store=%s cache=%s%s telemetry=%t denylist=[%s]",
		c.Listen, c.DataDir, c.DownloadDir, c.Browser.Binary, c.FFmpeg.Binary,
		c.Schedule.Store.Backend, c.Cache.Backend, redis, c.Telemetry.Enabled,
		strings.Join(c.Capture.Denylist, ","))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Clone returns a deep copy of c.
func Clone(c Config) Config {
	c.Capture.Denylist = append([]string(nil), c.Capture.Denylist...)
	c.API.AllowedOrigins = append([]string(nil), c.API.AllowedOrigins...)
	return c
}
