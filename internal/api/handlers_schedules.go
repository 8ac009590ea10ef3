// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/streamcap/internal/schedule"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Schedules.List())
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sc, err := s.deps.Schedules.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var in schedule.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := s.deps.Schedules.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.scheduleChanged()
	w.Header().Set("Location", BaseURL+"/schedules/"+sc.ID)
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var in schedule.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := s.deps.Schedules.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.scheduleChanged()
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Schedules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	s.scheduleChanged()
	w.WriteHeader(http.StatusNoContent)
}

// RefreshResponse is the body returned by POST /schedules/refresh.
type RefreshResponse struct {
	Refreshed int `json:"refreshed"`
}

func (s *Server) handleRefreshSchedules(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Schedules.RefreshAll(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.scheduleChanged()
	writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: n})
}
