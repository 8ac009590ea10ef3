// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/streamcap/internal/api/middleware"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

// StartSessionRequest is the body of POST /sessions.
type StartSessionRequest struct {
	URL          string `json:"url"`
	Resolution   string `json:"resolution,omitempty"`
	Framerate    string `json:"framerate,omitempty"`
	Format       string `json:"format,omitempty"`
	Filename     string `json:"filename,omitempty"`
	AutoDownload bool   `json:"autoDownload"`
}

// SelectStreamRequest is the body of POST /sessions/{id}/select.
type SelectStreamRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var body StartSessionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.deps.Sessions.Launch(r.Context(), model.LaunchRequest{
		URL:          body.URL,
		Preference:   model.Preference{Resolution: body.Resolution, Framerate: body.Framerate},
		Format:       body.Format,
		Filename:     body.Filename,
		AutoDownload: body.AutoDownload,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.AddSpanAttributes(r, attribute.String(telemetry.SessionIDKey, snap.ID))
	w.Header().Set("Location", BaseURL+"/sessions/"+snap.ID)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sessions.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSelectStream(w http.ResponseWriter, r *http.Request) {
	var body SelectStreamRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.deps.Sessions.Select(chi.URLParam(r, "id"), body.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleKeepOpen(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Sessions.KeepOpen(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Sessions.Close(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleClearProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.ClearProfile(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
