// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"net/http"

	"github.com/ManuGH/streamcap/internal/api/problem"
)

// Admission problem codes (stable)
const (
	CodeBusy         = "ADMISSION_BUSY"
	CodeSessionsFull = "ADMISSION_SESSIONS_FULL"
	CodeShuttingDown = "ADMISSION_SHUTTING_DOWN"
	CodeStateUnknown = "ADMISSION_STATE_UNKNOWN"
)

// NewBusy returns a 429 problem while the browser is still launching another session.
func NewBusy(launching, limit, retryAfter int) *problem.Problem {
	return &problem.Problem{
		Status: http.StatusTooManyRequests,
		Type:   "admission/busy",
		Title:  "Browser busy",
		Code:   CodeBusy,
		Detail: "Another session is still launching; retry shortly.",
		Extra: map[string]any{
			"launching":  launching,
			"limit":      limit,
			"retryAfter": retryAfter,
		},
	}
}

// NewSessionsFull returns a 429 problem when the open session limit is reached.
func NewSessionsFull(current, limit int) *problem.Problem {
	return &problem.Problem{
		Status: http.StatusTooManyRequests,
		Type:   "admission/sessions-full",
		Title:  "Session capacity exceeded",
		Code:   CodeSessionsFull,
		Detail: "Maximum number of open sessions reached.",
		Extra: map[string]any{
			"current": current,
			"limit":   limit,
		},
	}
}

// NewShuttingDown returns a 503 problem once the registry stopped accepting sessions.
func NewShuttingDown() *problem.Problem {
	return &problem.Problem{
		Status: http.StatusServiceUnavailable,
		Type:   "admission/shutting-down",
		Title:  "Shutting down",
		Code:   CodeShuttingDown,
		Detail: "The service is shutting down.",
	}
}

// NewStateUnknown returns a 503 problem when the runtime counters are inconsistent.
func NewStateUnknown() *problem.Problem {
	return &problem.Problem{
		Status: http.StatusServiceUnavailable,
		Type:   "admission/state-unknown",
		Title:  "Admission state unknown",
		Code:   CodeStateUnknown,
		Detail: "Internal session state is unavailable; failing closed.",
	}
}
