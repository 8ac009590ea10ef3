// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/config"
	"github.com/ManuGH/streamcap/internal/ffmpeg"
	"github.com/ManuGH/streamcap/internal/testutil"
)

type stubProber struct{}

func (stubProber) Probe(context.Context, string, map[string]string) (ffmpeg.ProbeInfo, error) {
	return ffmpeg.ProbeInfo{}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Listen = "127.0.0.1:0"
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DownloadDir = filepath.Join(dir, "downloads")
	cfg.Browser.ProfileDir = filepath.Join(dir, "profile")
	cfg.Schedule.Store.Backend = "memory"
	cfg.Cache.Backend = "memory"
	return cfg
}

func testRuntime(t *testing.T, launcher *testutil.FakeLauncher) *Runtime {
	t.Helper()
	rt, err := Bootstrap(context.Background(), testConfig(t), "test", Overrides{
		Launcher: launcher,
		Runner:   &testutil.FakeRunner{},
		Prober:   stubProber{},
	})
	require.NoError(t, err)
	return rt
}

func TestAppServesAndShutsDown(t *testing.T) {
	launcher := &testutil.FakeLauncher{}
	rt := testRuntime(t, launcher)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	app := NewApp(rt, nil)
	app.Listener = ln
	root := "http://" + ln.Addr().String()
	base := root + "/api/v1"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	client := &http.Client{Timeout: 5 * time.Second}
	defer client.CloseIdleConnections()

	body, _ := json.Marshal(map[string]any{"url": "https://example.com/live"})
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Post(base+"/sessions", "application/json", bytes.NewReader(body))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	_ = resp.Body.Close()
	require.NotEmpty(t, snap.ID)

	require.Eventually(t, func() bool { return launcher.Last() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err = client.Get(base + "/sessions/" + snap.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = client.Get(root + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Contains(t, health, "status")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}

	closed, _ := launcher.Last().Closed()
	assert.True(t, closed, "open sessions are closed on shutdown")
}

func TestAppRequiresRuntime(t *testing.T) {
	app := NewApp(nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingRuntime)
}

func TestApplyHotSettings(t *testing.T) {
	rt := testRuntime(t, &testutil.FakeLauncher{})
	t.Cleanup(func() { _ = rt.Manager.Shutdown(context.Background()) })

	app := NewApp(rt, nil)
	cfg := rt.Config
	cfg.Capture.Denylist = []string{"tracker.example"}
	cfg.LogLevel = "debug"
	app.apply(cfg)

	assert.Equal(t, []string{"tracker.example"}, rt.Classifier.Denylist())
}

func TestBootstrapRejectsUnknownStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Schedule.Store.Backend = "etcd"
	_, err := Bootstrap(context.Background(), cfg, "test", Overrides{Launcher: &testutil.FakeLauncher{}, Runner: &testutil.FakeRunner{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule store")
}
