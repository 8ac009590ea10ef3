// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package admission

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionController(t *testing.T) {
	tests := []struct {
		name       string
		limits     Limits
		state      RuntimeState
		wantAllow  bool
		wantCode   string
		wantStatus int
	}{
		{
			name:      "Allow: nothing running",
			limits:    Limits{MaxLaunching: 1},
			state:     RuntimeState{},
			wantAllow: true,
		},
		{
			name:      "Allow: downloads do not count as launching",
			limits:    Limits{MaxLaunching: 1},
			state:     RuntimeState{Launching: 0, Open: 5},
			wantAllow: true,
		},
		{
			name:       "Reject: one launching",
			limits:     Limits{MaxLaunching: 1},
			state:      RuntimeState{Launching: 1, Open: 1},
			wantCode:   CodeBusy,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:      "Allow: launching below a raised limit",
			limits:    Limits{MaxLaunching: 2},
			state:     RuntimeState{Launching: 1, Open: 1},
			wantAllow: true,
		},
		{
			name:       "Reject: open sessions full",
			limits:     Limits{MaxLaunching: 1, MaxOpen: 3},
			state:      RuntimeState{Open: 3},
			wantCode:   CodeSessionsFull,
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "Reject: shutting down",
			limits:     Limits{},
			state:      RuntimeState{ShuttingDown: true},
			wantCode:   CodeShuttingDown,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "Reject: negative counters",
			limits:     Limits{},
			state:      RuntimeState{Launching: -1},
			wantCode:   CodeStateUnknown,
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "Reject: more launching than open",
			limits:     Limits{},
			state:      RuntimeState{Launching: 2, Open: 1},
			wantCode:   CodeStateUnknown,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := NewController(tc.limits)
			decision := ctrl.Check(context.Background(), tc.state)

			if tc.wantAllow {
				assert.True(t, decision.Allow)
				assert.Nil(t, decision.Problem)
				assert.Equal(t, "allowed", decision.Reason())
				return
			}
			assert.False(t, decision.Allow)
			require.NotNil(t, decision.Problem)
			assert.Equal(t, tc.wantCode, decision.Problem.Code)
			assert.Equal(t, tc.wantStatus, decision.Problem.Status)
			assert.Equal(t, tc.wantCode, decision.Reason())
		})
	}
}

func TestAdmissionController_BusyCarriesRetryAfter(t *testing.T) {
	d := NewController(Limits{}).Check(context.Background(), RuntimeState{Launching: 1, Open: 1})
	require.NotNil(t, d.RetryAfterSeconds)
	assert.Equal(t, busyRetryAfter, *d.RetryAfterSeconds)
}
