// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admission decides whether a new capture session may start.
package admission

import (
	"context"

	"github.com/ManuGH/streamcap/internal/api/problem"
)

const (
	DefaultMaxLaunching = 1
	busyRetryAfter      = 5
)

// Decision represents the outcome of an admission check.
type Decision struct {
	Allow             bool
	Problem           *problem.Problem
	RetryAfterSeconds *int
}

// Reason is the problem code of a rejection, or "allowed".
func (d Decision) Reason() string {
	if d.Allow || d.Problem == nil {
		return "allowed"
	}
	return d.Problem.Code
}

// RuntimeState is populated by the caller from live session state.
type RuntimeState struct {
	Launching    int
	Open         int
	ShuttingDown bool
}

// Limits bound concurrent sessions. MaxOpen <= 0 means unlimited.
type Limits struct {
	MaxLaunching int
	MaxOpen      int
}

// CapacityController abstracts the admission logic.
type CapacityController interface {
	Check(ctx context.Context, state RuntimeState) Decision
}

// Controller implements CapacityController with deterministic rules.
type Controller struct {
	limits Limits
}

// NewController returns a controller. MaxLaunching below 1 becomes 1.
func NewController(limits Limits) *Controller {
	if limits.MaxLaunching < 1 {
		limits.MaxLaunching = DefaultMaxLaunching
	}
	return &Controller{limits: limits}
}

// Check evaluates the rules in order:
//  1. shutting down
//  2. inconsistent counters (fail closed)
//  3. launching limit
//  4. open session limit
func (c *Controller) Check(_ context.Context, state RuntimeState) Decision {
	if state.ShuttingDown {
		return Decision{Problem: NewShuttingDown()}
	}
	if state.Launching < 0 || state.Open < 0 || state.Launching > state.Open {
		return Decision{Problem: NewStateUnknown()}
	}
	if state.Launching >= c.limits.MaxLaunching {
		retry := busyRetryAfter
		return Decision{
			Problem:           NewBusy(state.Launching, c.limits.MaxLaunching, retry),
			RetryAfterSeconds: &retry,
		}
	}
	if c.limits.MaxOpen > 0 && state.Open >= c.limits.MaxOpen {
		return Decision{Problem: NewSessionsFull(state.Open, c.limits.MaxOpen)}
	}
	return Decision{Allow: true}
}
