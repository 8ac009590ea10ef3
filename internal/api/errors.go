// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ManuGH/streamcap/internal/api/problem"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/schedule"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, typ, title, code, detail string) {
	problem.Write(w, r, problem.New(status, typ, title, code, detail))
}

// decodeJSON reads a bounded JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty request body", model.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	return nil
}

// writeError maps domain errors to problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var p *problem.Problem
	switch {
	case errors.As(err, &p):
		if retry, ok := p.Extra["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(retry))
		}
		problem.Write(w, r, p)
	case errors.Is(err, model.ErrSessionNotFound):
		writeProblem(w, r, http.StatusNotFound, "session/not-found", "Session not found", "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, schedule.ErrScheduleNotFound):
		writeProblem(w, r, http.StatusNotFound, "schedule/not-found", "Schedule not found", "SCHEDULE_NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrInvalidSelection):
		writeProblem(w, r, http.StatusConflict, "session/invalid-selection", "Invalid stream selection", "INVALID_SELECTION", err.Error())
	case errors.Is(err, model.ErrSessionClosed):
		writeProblem(w, r, http.StatusConflict, "session/closed", "Session closed", "SESSION_CLOSED", err.Error())
	case errors.Is(err, model.ErrInvalidRequest):
		writeProblem(w, r, http.StatusUnprocessableEntity, "request/invalid", "Invalid request", "INVALID_REQUEST", err.Error())
	case errors.Is(err, schedule.ErrScheduleConfig):
		writeProblem(w, r, http.StatusUnprocessableEntity, "schedule/invalid", "Invalid schedule", "INVALID_SCHEDULE", err.Error())
	default:
		log.FromContext(r.Context()).Error().Err(err).Str(log.FieldPath, r.URL.Path).Msg("request failed")
		writeProblem(w, r, http.StatusInternalServerError, "server/internal", "Internal error", "INTERNAL", "The request could not be completed.")
	}
}
