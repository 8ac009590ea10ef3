// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"context"
	"time"

	"github.com/ManuGH/streamcap/internal/ffmpeg"
)

// Process is a running conversion process.
type Process interface {
	PID() int
	Done() <-chan struct{}
	Wait() error
	ExitCode() int
	Stopped() bool
	Progress() ffmpeg.Progress
	Diagnostics(n int) []string
	Stop(grace time.Duration) error
}

// Runner spawns conversion processes.
type Runner interface {
	Start(ctx context.Context, args []string) (Process, error)
}

// ExecRunner runs the real ffmpeg binary.
type ExecRunner struct {
	Exec *ffmpeg.Executor
}

// Start implements Runner.
func (r ExecRunner) Start(ctx context.Context, args []string) (Process, error) {
	p, err := r.Exec.Start(ctx, args)
	if err != nil {
		return nil, err
	}
	return p, nil
}
