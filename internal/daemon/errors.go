// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import "errors"

var (
	// ErrAlreadyRunning is returned when another daemon holds the instance lock.
	ErrAlreadyRunning = errors.New("another streamcap daemon is running on this data directory")

	// ErrMissingRuntime is returned when an app is created without a runtime.
	ErrMissingRuntime = errors.New("runtime is required")
)
