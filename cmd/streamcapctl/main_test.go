// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

type fakeDaemon struct {
	mu       sync.Mutex
	started  []startRequest
	selected string
	deleted  []string
	added    []scheduleInput
}

func (f *fakeDaemon) handler() http.Handler {
	snap := model.Snapshot{
		ID:    "s-1",
		State: model.StateAwaitingSelection,
		URL:   "https://example.com/live",
		DetectedStreams: []model.StreamView{
			{Name: "720p", Resolution: "1280x720", Framerate: 30, URL: "https://cdn.example/720.m3u8"},
			{Name: "1080p", Resolution: "1920x1080", Framerate: 60, URL: "https://cdn.example/1080.m3u8"},
		},
		AwaitingSelection: true,
		CreatedAt:         time.Now().Add(-time.Minute),
	}
	next := time.Now().Add(time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.started = append(f.started, req)
		f.mu.Unlock()
		s := snap
		s.State = model.StateLaunching
		writeTestJSON(w, http.StatusCreated, s)
	})
	mux.HandleFunc("GET /api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []model.Snapshot{snap})
	})
	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != snap.ID {
			w.Header().Set("Content-Type", "application/problem+json")
			writeTestJSON(w, http.StatusNotFound, map[string]any{
				"status": 404, "code": "SESSION_NOT_FOUND", "title": "Session not found",
			})
			return
		}
		writeTestJSON(w, http.StatusOK, snap)
	})
	mux.HandleFunc("POST /api/v1/sessions/{id}/select", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.selected = body["url"]
		f.mu.Unlock()
		s := snap
		s.State = model.StateDownloading
		writeTestJSON(w, http.StatusOK, s)
	})
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		s := snap
		s.State = model.StateCancelled
		writeTestJSON(w, http.StatusOK, s)
	})
	mux.HandleFunc("POST /api/v1/sessions/{id}/keep-open", func(w http.ResponseWriter, r *http.Request) {
		s := snap
		s.KeptOpen = true
		writeTestJSON(w, http.StatusOK, s)
	})
	mux.HandleFunc("GET /api/v1/schedules", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, []scheduleView{{
			ID: "sch-1", Name: "Morning show", URL: "https://example.com/live",
			StartTime: "07:00", EndTime: "08:00", Daily: true, Status: "pending", NextCheck: &next,
		}})
	})
	mux.HandleFunc("POST /api/v1/schedules", func(w http.ResponseWriter, r *http.Request) {
		var in scheduleInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.added = append(f.added, in)
		f.mu.Unlock()
		writeTestJSON(w, http.StatusCreated, scheduleView{ID: "sch-2", Daily: in.Daily, NextCheck: &next})
	})
	mux.HandleFunc("DELETE /api/v1/schedules/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/schedules/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]int{"refreshed": 3})
	})
	mux.HandleFunc("POST /api/v1/browser/clear-profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runCLI(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func setup(t *testing.T) (*fakeDaemon, string) {
	t.Helper()
	f := &fakeDaemon{}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func TestSessionStart(t *testing.T) {
	f, server := setup(t)
	out, err := runCLI(t, server, "session", "start", "https://example.com/live", "--auto", "--resolution", "best")
	require.NoError(t, err)
	assert.Contains(t, out, "Session s-1 started (LAUNCHING)")

	require.Len(t, f.started, 1)
	assert.Equal(t, startRequest{URL: "https://example.com/live", Resolution: "best", AutoDownload: true}, f.started[0])
}

func TestSessionListAndGet(t *testing.T) {
	_, server := setup(t)
	out, err := runCLI(t, server, "session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "s-1")
	assert.Contains(t, out, "AWAITING_SELECTION")

	out, err = runCLI(t, server, "session", "get", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "1920x1080")
	assert.Contains(t, out, "https://cdn.example/720.m3u8")
}

func TestSessionGetJSON(t *testing.T) {
	_, server := setup(t)
	out, err := runCLI(t, server, "--json", "session", "get", "s-1")
	require.NoError(t, err)
	var snap model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Len(t, snap.DetectedStreams, 2)
}

func TestSessionGetNotFound(t *testing.T) {
	_, server := setup(t)
	_, err := runCLI(t, server, "session", "get", "missing")
	require.Error(t, err)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "SESSION_NOT_FOUND", apiErr.Code)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestSessionSelectByIndex(t *testing.T) {
	f, server := setup(t)
	out, err := runCLI(t, server, "session", "select", "s-1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "DOWNLOADING")
	assert.Equal(t, "https://cdn.example/1080.m3u8", f.selected)

	_, err = runCLI(t, server, "session", "select", "s-1", "7")
	assert.ErrorContains(t, err, "out of range")
}

func TestSessionCloseAndKeepOpen(t *testing.T) {
	_, server := setup(t)
	out, err := runCLI(t, server, "session", "close", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "closed (CANCELLED)")

	out, err = runCLI(t, server, "session", "keep-open", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "will stay open")
}

func TestScheduleCommands(t *testing.T) {
	f, server := setup(t)

	out, err := runCLI(t, server, "schedule", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "Morning show")
	assert.Contains(t, out, "daily")
	assert.Contains(t, out, "07:00 - 08:00")

	out, err = runCLI(t, server, "schedule", "add", "https://example.com/live", "07:00", "08:00", "--daily", "--name", "Morning")
	require.NoError(t, err)
	assert.Contains(t, out, "Schedule sch-2 added (daily)")
	require.Len(t, f.added, 1)
	assert.True(t, f.added[0].Daily)
	assert.Equal(t, "Morning", f.added[0].Name)

	_, err = runCLI(t, server, "schedule", "add", "https://example.com/live", "07:00", "08:00", "--daily", "--weekly")
	assert.Error(t, err)

	out, err = runCLI(t, server, "schedule", "rm", "sch-1")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted")
	assert.Equal(t, []string{"sch-1"}, f.deleted)

	out, err = runCLI(t, server, "schedule", "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed 3 schedules")
}

func TestClearProfile(t *testing.T) {
	_, server := setup(t)
	out, err := runCLI(t, server, "clear-profile")
	require.NoError(t, err)
	assert.Contains(t, out, "Browser profile cleared")
}

func TestUnreachableDaemon(t *testing.T) {
	_, err := runCLI(t, "http://127.0.0.1:1", "session", "ls")
	assert.ErrorContains(t, err, "connect to daemon")
}
