// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg runs and supervises ffmpeg/ffprobe child processes.
package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/streamcap/internal/procgroup"
	"github.com/rs/zerolog"
)

// Executor starts ffmpeg processes.
type Executor struct {
	BinaryPath string
	Logger     zerolog.Logger
}

// NewExecutor returns an Executor for the given ffmpeg binary.
func NewExecutor(binaryPath string, logger zerolog.Logger) *Executor {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Executor{BinaryPath: binaryPath, Logger: logger}
}

// Start spawns ffmpeg with args in its own process group. The process is not
// bound to ctx: it keeps running until it exits or Stop is called.
func (e *Executor) Start(ctx context.Context, args []string) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G204 - binary comes from config; args are built by this module
	cmd := exec.Command(e.BinaryPath, args...)
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to pipe stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("exec start failed: %w", err)
	}

	p := &Process{
		cmd:  cmd,
		ring: NewLineRing(100),
		done: make(chan struct{}),
	}
	e.Logger.Debug().Int("pid", cmd.Process.Pid).Strs("args", args).Msg("ffmpeg started")
	go p.monitor(stderr)
	return p, nil
}

// Process is a running ffmpeg invocation.
type Process struct {
	cmd  *exec.Cmd
	ring *LineRing
	done chan struct{}

	mu       sync.Mutex
	progress Progress
	err      error
	stopped  bool
}

// PID returns the process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed after the process exited and stderr was drained.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until exit and returns the exit error.
func (p *Process) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// ExitCode returns the exit code once done, -1 when killed by a signal.
func (p *Process) ExitCode() int {
	<-p.done
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Stopped reports whether Stop was requested.
func (p *Process) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Progress returns the latest parsed status sample.
func (p *Process) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Diagnostics returns the last n stderr lines.
func (p *Process) Diagnostics(n int) []string {
	return p.ring.LastN(n)
}

// Stop sends SIGTERM to the process group and SIGKILL after grace.
// It returns once the process has exited. Safe to call repeatedly.
func (p *Process) Stop(grace time.Duration) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	default:
	}

	if err := procgroup.Kill(p.cmd, syscall.SIGTERM); err != nil {
		return fmt.Errorf("sigterm: %w", err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}
	if err := procgroup.Kill(p.cmd, syscall.SIGKILL); err != nil {
		return fmt.Errorf("sigkill: %w", err)
	}
	<-p.done
	return nil
}

func (p *Process) monitor(stderr io.Reader) {
	defer close(p.done)

	sc := bufio.NewScanner(stderr)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(scanStatusLines)
	for sc.Scan() {
		line := sc.Text()
		p.mu.Lock()
		next, ok := ParseProgress(line, p.progress)
		if ok {
			p.progress = next
		}
		p.mu.Unlock()
		if !ok {
			// Status redraws would flush real diagnostics out of the ring.
			p.ring.Add(line)
		}
	}

	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		err = fmt.Errorf("wait: %w", err)
	}
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}
