// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/streamcap/internal/testutil"
	"github.com/ManuGH/streamcap/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes body to config.yaml in a temp dir, with dataDir and
// downloadDir pointing into it.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	full := fmt.Sprintf("dataDir: %s\ndownloadDir: %s\n%s",
		filepath.Join(dir, "data"), filepath.Join(dir, "downloads"), body)
	require.NoError(t, os.WriteFile(path, []byte(full), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	want := Defaults()
	assert.Equal(t, want.Listen, cfg.Listen)
	assert.Equal(t, want.Capture, cfg.Capture)
	assert.Equal(t, want.Schedule, cfg.Schedule)
	assert.Equal(t, filepath.Join(cfg.DataDir, "browser-profile"), cfg.Browser.ProfileDir)
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.DownloadDir)
	assert.Equal(t, cfg.DataDir, cfg.ScheduleStoreDir())
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
logLevel: debug
browser:
  binary: /usr/bin/google-chrome
  debugPort: 9222
  headless: true
capture:
  denylist: [ads, tracker]
  monitorTimeout: 2m
  settleWindow: 5s
  maxLaunching: 2
  maxOpen: 4
schedule:
  tick: 10s
  store:
    backend: badger
    path: /var/lib/streamcap
cache:
  backend: redis
  redisAddr: localhost:6379
telemetry:
  enabled: true
  protocol: http
  endpoint: localhost:4318
  sampleRate: 0.25
`)
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, BrowserConfig{
		Binary:     "/usr/bin/google-chrome",
		ProfileDir: filepath.Join(cfg.DataDir, "browser-profile"),
		DebugPort:  9222,
		NavTimeout: 30 * time.Second,
		Headless:   true,
	}, cfg.Browser)
	assert.Equal(t, []string{"ads", "tracker"}, cfg.Capture.Denylist)
	assert.Equal(t, 2*time.Minute, cfg.Capture.MonitorTimeout)
	assert.Equal(t, 5*time.Second, cfg.Capture.SettleWindow)
	assert.Equal(t, 15*time.Second, cfg.Capture.AutoCloseDelay, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Capture.MaxLaunching)
	assert.Equal(t, "badger", cfg.Schedule.Store.Backend)
	assert.Equal(t, "/var/lib/streamcap", cfg.ScheduleStoreDir())
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.InDelta(t, 0.25, cfg.Telemetry.SampleRate, 1e-9)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\ncapture:\n  denylist: [ads]\n")
	t.Setenv("STREAMCAP_LISTEN", "0.0.0.0:7000")
	t.Setenv("STREAMCAP_DENYLIST", "ads, tracker ,,beacon")
	t.Setenv("STREAMCAP_MONITOR_TIMEOUT", "45s")
	t.Setenv("STREAMCAP_BROWSER_HEADLESS", "yes")
	t.Setenv("STREAMCAP_MAX_LAUNCHING", "not-a-number")
	t.Setenv("STREAMCAP_REDIS_PASSWORD", "s3cret")

	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.Listen)
	assert.Equal(t, []string{"ads", "tracker", "beacon"}, cfg.Capture.Denylist)
	assert.Equal(t, 45*time.Second, cfg.Capture.MonitorTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1, cfg.Capture.MaxLaunching, "invalid env value falls back")
	assert.Contains(t, l.ConsumedEnvKeys, "STREAMCAP_LISTEN")
	assert.NotContains(t, cfg.String(), "s3cret")
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "capture:\n  monitorTimeoutt: 5s\n")
	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strict config parse error")
}

func TestLoad_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\n---\nlisten: \":9091\"\n")
	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "multiple documents")
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	_, err := NewLoader(path).Load()
	assert.ErrorContains(t, err, "only YAML supported")
}

func TestLoad_ValidationErrors(t *testing.T) {
	path := writeConfig(t, `
listen: "nowhere"
logLevel: loud
capture:
  maxLaunching: 0
  maxOpen: -1
schedule:
  tick: 100ms
  store:
    backend: etcd
cache:
  backend: redis
telemetry:
  enabled: true
  protocol: udp
  sampleRate: 2
`)
	_, err := NewLoader(path).Load()
	require.Error(t, err)

	var ve validate.ValidationError
	require.ErrorAs(t, err, &ve)
	fields := map[string]bool{}
	for _, e := range ve.Errors() {
		fields[e.Field] = true
	}
	for _, f := range []string{
		"listen", "logLevel", "capture.maxLaunching", "capture.maxOpen", "schedule.tick",
		"schedule.store.backend", "cache.redisAddr", "telemetry.protocol", "telemetry.sampleRate",
	} {
		assert.True(t, fields[f], "expected error for %s", f)
	}
}

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STREAMCAP_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("STREAMCAP_DOWNLOAD_DIR", filepath.Join(dir, "dl"))
	cfg, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
}

func TestClone(t *testing.T) {
	a := Defaults()
	b := Clone(a)
	b.Capture.Denylist[0] = "changed"
	assert.NotEqual(t, "changed", a.Capture.Denylist[0])
}

func TestLoad_ExampleConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPrefix+"DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv(EnvPrefix+"DOWNLOAD_DIR", filepath.Join(dir, "downloads"))

	path := filepath.Join(testutil.MustRepoRoot(t), "streamcap.example.yaml")
	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	want := Defaults()
	assert.Equal(t, want.Capture, cfg.Capture)
	assert.Equal(t, want.FFmpeg, cfg.FFmpeg)
	assert.Equal(t, want.Schedule, cfg.Schedule)
}
