// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package download supervises the conversion processes that record a
// selected stream to disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/metrics"
	"github.com/ManuGH/streamcap/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultKillGrace      = 5 * time.Second
	defaultSampleInterval = 2 * time.Second
	diagnosticLines       = 20
)

var tracer = telemetry.Tracer("github.com/ManuGH/streamcap/internal/download")

// Options configures a Supervisor.
type Options struct {
	Runner         Runner
	KillGrace      time.Duration
	SampleInterval time.Duration
	Clock          clock.Clock
	Stats          StatsFunc
	WriteSidecar   bool
}

// Supervisor owns download jobs keyed by session id.
type Supervisor struct {
	runner   Runner
	grace    time.Duration
	interval time.Duration
	clock    clock.Clock
	stats    StatsFunc
	sidecar  bool
	logger   zerolog.Logger

	mu   sync.Mutex
	jobs map[string]*Handle
	wg   sync.WaitGroup
}

// NewSupervisor returns a Supervisor. Runner is required.
func NewSupervisor(opts Options) *Supervisor {
	if opts.KillGrace <= 0 {
		opts.KillGrace = defaultKillGrace
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = defaultSampleInterval
	}
	if opts.Stats == nil {
		opts.Stats = processStats
	}
	return &Supervisor{
		runner:   opts.Runner,
		grace:    opts.KillGrace,
		interval: opts.SampleInterval,
		clock:    clock.OrReal(opts.Clock),
		stats:    opts.Stats,
		sidecar:  opts.WriteSidecar,
		logger:   log.WithComponent("download"),
		jobs:     make(map[string]*Handle),
	}
}

// Handle tracks one job. Done is closed once the job is terminal.
type Handle struct {
	job  model.Job
	done chan struct{}

	mu      sync.Mutex
	snap    model.JobSnapshot
	proc    Process
	stopReq bool
}

// ID returns the job id.
func (h *Handle) ID() string { return h.job.ID }

// Done is closed when the job reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Snapshot returns a copy of the current job state.
func (h *Handle) Snapshot() model.JobSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copySnapshot(h.snap)
}

// Start launches the conversion for job. While a job with the same id is
// Starting or Running the existing handle is returned. A spawn failure
// returns a Failed handle together with an error wrapping ErrDownloadFailure.
func (s *Supervisor) Start(ctx context.Context, job model.Job) (*Handle, error) {
	s.mu.Lock()
	if h, ok := s.jobs[job.ID]; ok && !h.Snapshot().State.IsTerminal() {
		s.mu.Unlock()
		return h, nil
	}
	h := &Handle{
		job:  job,
		done: make(chan struct{}),
		snap: model.JobSnapshot{
			ID:         job.ID,
			SourceURL:  job.SourceURL,
			OutputPath: job.OutputPath,
			State:      model.JobStarting,
			StartedAt:  s.clock.Now(),
		},
	}
	s.jobs[job.ID] = h
	s.mu.Unlock()

	logger := s.logger.With().Str(log.FieldJobID, job.ID).Str(log.FieldPath, job.OutputPath).Logger()

	ctx, span := tracer.Start(ctx, "download.start")
	defer span.End()
	span.SetAttributes(telemetry.StreamAttributes(job.SourceURL, string(job.Stream.Protocol), job.Stream.Resolution)...)
	span.SetAttributes(attribute.String(telemetry.DownloadFormatKey, strings.TrimPrefix(filepath.Ext(job.OutputPath), ".")))

	proc, err := s.spawn(ctx, job)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(string(model.RDownloadFailed))...)
		span.SetStatus(codes.Error, err.Error())
		s.finish(h, model.JobFailed, nil, err.Error())
		logger.Error().Err(err).Str(log.FieldEvent, "download.spawn_failed").Msg("download failed to start")
		return h, fmt.Errorf("%w: %v", model.ErrDownloadFailure, err)
	}

	h.mu.Lock()
	h.proc = proc
	h.snap.State = model.JobRunning
	h.snap.PID = proc.PID()
	stop := h.stopReq
	h.mu.Unlock()
	metrics.RecordDownloadStarted()
	logger.Info().Str(log.FieldEvent, "download.started").Int(log.FieldPID, proc.PID()).Msg("download started")

	s.wg.Add(1)
	go s.monitor(h, proc, logger)
	if stop {
		go func() { _ = proc.Stop(s.grace) }()
	}
	return h, nil
}

func (s *Supervisor) spawn(ctx context.Context, job model.Job) (Process, error) {
	if s.runner == nil {
		return nil, errors.New("no runner configured")
	}
	if job.SourceURL == "" || job.OutputPath == "" {
		return nil, errors.New("source url and output path are required")
	}
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return s.runner.Start(ctx, BuildArgs(job))
}

// Poll returns the latest snapshot of job id.
func (s *Supervisor) Poll(id string) (model.JobSnapshot, bool) {
	s.mu.Lock()
	h, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return model.JobSnapshot{}, false
	}
	return h.Snapshot(), true
}

// Stop terminates job id and waits until it is terminal. Unknown and
// already terminated jobs are a no-op.
func (s *Supervisor) Stop(id string) error {
	s.mu.Lock()
	h, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	h.mu.Lock()
	if h.snap.State.IsTerminal() {
		h.mu.Unlock()
		return nil
	}
	h.stopReq = true
	proc := h.proc
	h.mu.Unlock()

	if proc == nil {
		// still spawning; Start stops it once the process exists
		return nil
	}
	if err := proc.Stop(s.grace); err != nil {
		return fmt.Errorf("stop download %s: %w", id, err)
	}
	<-h.done
	return nil
}

// Forget drops a terminal job from the table.
func (s *Supervisor) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.jobs[id]; ok && h.Snapshot().State.IsTerminal() {
		delete(s.jobs, id)
	}
}

// StopAll stops every running job and waits for their monitors, or until
// ctx is done.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.Stop(id); err != nil {
			errs = append(errs, err)
		}
	}

	waited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

func (s *Supervisor) monitor(h *Handle, proc Process, logger zerolog.Logger) {
	defer s.wg.Done()

	timer := s.clock.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-proc.Done():
			s.sample(h, proc, false)
			s.complete(h, proc, logger)
			return
		case <-timer.C():
			s.sample(h, proc, true)
			timer.Reset(s.interval)
		}
	}
}

func (s *Supervisor) sample(h *Handle, proc Process, live bool) {
	p := proc.Progress()
	size := p.SizeBytes
	if fi, err := os.Stat(h.job.OutputPath); err == nil {
		size = fi.Size()
	}

	var rss uint64
	var cpu float64
	if live {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		rss, cpu, _ = s.stats(ctx, proc.PID())
		cancel()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.snap.BytesWritten = size
	if p.OutTimeSeconds > 0 {
		h.snap.DurationSeconds = p.OutTimeSeconds
	}
	if live {
		h.snap.RSSBytes = rss
		h.snap.CPUPercent = cpu
	}
}

func (s *Supervisor) complete(h *Handle, proc Process, logger zerolog.Logger) {
	err := proc.Wait()
	code := proc.ExitCode()

	state := model.JobSucceeded
	diag := ""
	switch {
	case proc.Stopped():
		state = model.JobStopped
	case err != nil:
		state = model.JobFailed
		diag = strings.Join(proc.Diagnostics(diagnosticLines), "\n")
		if diag == "" {
			diag = err.Error()
		}
	}
	s.finish(h, state, &code, diag)

	snap := h.Snapshot()
	ev := logger.Info()
	if state == model.JobFailed {
		ev = logger.Warn()
	}
	ev.Str(log.FieldEvent, "download.finished").
		Str("state", string(state)).
		Int(log.FieldExitCode, code).
		Int64("bytes", snap.BytesWritten).
		Msg("download finished")

	if state == model.JobSucceeded && s.sidecar {
		if err := writeSidecar(h.job, snap); err != nil {
			logger.Warn().Err(err).Msg("metadata sidecar not written")
		}
	}
}

func (s *Supervisor) finish(h *Handle, state model.JobState, code *int, diag string) {
	now := s.clock.Now()
	h.mu.Lock()
	wasRunning := h.snap.State == model.JobRunning
	h.snap.State = state
	h.snap.FinishedAt = &now
	h.snap.ExitCode = code
	h.snap.Diagnostic = diag
	h.snap.RSSBytes = 0
	h.snap.CPUPercent = 0
	bytes := h.snap.BytesWritten
	h.mu.Unlock()

	metrics.RecordDownloadFinished(string(state), bytes, wasRunning)
	close(h.done)
}

func copySnapshot(s model.JobSnapshot) model.JobSnapshot {
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		s.FinishedAt = &t
	}
	if s.ExitCode != nil {
		c := *s.ExitCode
		s.ExitCode = &c
	}
	return s
}
