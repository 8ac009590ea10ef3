// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package problem writes RFC 7807 problem details responses.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/streamcap/internal/log"
)

const (
	ContentType      = "application/problem+json"
	JSONKeyRequestID = "requestId"
)

// Problem is an RFC 7807 body. Code is a stable machine-readable short code.
type Problem struct {
	Status int
	Type   string
	Title  string
	Code   string
	Detail string
	Extra  map[string]any
}

func (p *Problem) Error() string {
	return "[" + p.Code + "] " + p.Title + ": " + p.Detail
}

// Write writes p as the response.
//
//   - type: canonical identifier, e.g. "session/not-found"
//   - title: short human-readable label
//   - code: stable short code, e.g. "SESSION_NOT_FOUND"
//   - detail: explanation of this occurrence
func Write(w http.ResponseWriter, r *http.Request, p *Problem) {
	reqID := ""
	instance := ""
	if r != nil {
		reqID = log.RequestIDFromContext(r.Context())
		instance = r.URL.EscapedPath()
	}
	if reqID == "" {
		reqID = w.Header().Get(log.HeaderRequestID)
	}

	res := map[string]any{
		"type":   p.Type,
		"title":  p.Title,
		"status": p.Status,
		"code":   p.Code,
	}
	if reqID != "" {
		res[JSONKeyRequestID] = reqID
	}
	if p.Detail != "" {
		res["detail"] = p.Detail
	}
	if instance != "" {
		res["instance"] = instance
	}
	for k, v := range p.Extra {
		switch k {
		case "type", "title", "status", "detail", "instance", "code":
			log.L().Warn().Str("key", k).Str("problem_type", p.Type).Msg("ignoring reserved key in problem extras")
			continue
		}
		res[k] = v
	}

	if reqID != "" {
		w.Header().Set(log.HeaderRequestID, reqID)
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.L().Error().Err(err).Str("type", p.Type).Int("status", p.Status).Msg("failed to encode problem response")
	}
}

// New returns a problem with the given fields.
func New(status int, problemType, title, code, detail string) *Problem {
	return &Problem{Status: status, Type: problemType, Title: title, Code: code, Detail: detail}
}
