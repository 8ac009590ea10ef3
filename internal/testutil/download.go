// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/streamcap/internal/download"
	"github.com/ManuGH/streamcap/internal/ffmpeg"
)

// FakeProcess is a conversion process that exits when told to.
type FakeProcess struct {
	pid      int
	done     chan struct{}
	exitOnce sync.Once

	mu      sync.Mutex
	err     error
	code    int
	stopped bool
	diag    []string
}

// Exit ends the process with code; a non-zero code fails with diag as stderr.
func (p *FakeProcess) Exit(code int, diag ...string) {
	p.exitOnce.Do(func() {
		p.mu.Lock()
		p.code = code
		if code != 0 {
			p.err = errors.New("exit status")
		}
		p.diag = diag
		p.mu.Unlock()
		close(p.done)
	})
}

func (p *FakeProcess) PID() int              { return p.pid }
func (p *FakeProcess) Done() <-chan struct{} { return p.done }

func (p *FakeProcess) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *FakeProcess) ExitCode() int {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *FakeProcess) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *FakeProcess) Progress() ffmpeg.Progress { return ffmpeg.Progress{} }

func (p *FakeProcess) Diagnostics(int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.diag...)
}

func (p *FakeProcess) Stop(time.Duration) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.Exit(255)
	return nil
}

// FakeRunner records starts and returns FakeProcesses.
type FakeRunner struct {
	Err    error
	starts atomic.Int32

	mu    sync.Mutex
	procs []*FakeProcess
	args  [][]string
}

// Start implements download.Runner.
func (r *FakeRunner) Start(_ context.Context, args []string) (download.Process, error) {
	r.starts.Add(1)
	if r.Err != nil {
		return nil, r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &FakeProcess{pid: 4000 + len(r.procs), done: make(chan struct{})}
	r.procs = append(r.procs, p)
	r.args = append(r.args, args)
	return p, nil
}

// Starts returns the number of Start calls.
func (r *FakeRunner) Starts() int { return int(r.starts.Load()) }

// Last returns the most recent process or nil.
func (r *FakeRunner) Last() *FakeProcess {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.procs) == 0 {
		return nil
	}
	return r.procs[len(r.procs)-1]
}

// Args returns the arguments of the i-th start.
func (r *FakeRunner) Args(i int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args[i]
}
