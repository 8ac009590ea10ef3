// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package registry owns the set of live capture sessions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/admission"
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/capture/session"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultGCGrace = 10 * time.Minute
	sweepInterval  = time.Minute
)

// ProfileClearer wipes the shared browser profile.
type ProfileClearer interface {
	Clear() error
}

// Options configures a Registry.
type Options struct {
	Deps      session.Deps
	Session   session.Config
	Admission admission.CapacityController
	GCGrace   time.Duration
	Profile   ProfileClearer

	// OnTransition observes every session transition after the registry.
	OnTransition func(session.Transition)
	NewID        func() string
}

// Registry maps session ids to running machines.
type Registry struct {
	opts   Options
	clock  clock.Clock
	logger zerolog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*session.Machine
	closing  bool
}

// New returns an empty registry.
func New(opts Options) *Registry {
	if opts.GCGrace <= 0 {
		opts.GCGrace = DefaultGCGrace
	}
	if opts.Admission == nil {
		opts.Admission = admission.NewController(admission.Limits{})
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:     opts,
		clock:    clock.OrReal(opts.Deps.Clock),
		logger:   log.WithComponent("capture.registry"),
		baseCtx:  ctx,
		cancel:   cancel,
		sessions: make(map[string]*session.Machine),
	}
}

// Launch admits and starts a new session. A rejection wraps
// model.ErrLaunchRejected and the admission problem.
func (r *Registry) Launch(ctx context.Context, req model.LaunchRequest) (*model.Snapshot, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	state := admission.RuntimeState{ShuttingDown: r.closing}
	for _, m := range r.sessions {
		switch st := m.Snapshot().State; {
		case st == model.StateLaunching:
			state.Launching++
			state.Open++
		case !st.IsTerminal():
			state.Open++
		}
	}
	decision := r.opts.Admission.Check(ctx, state)
	metrics.RecordAdmission(decision.Allow, decision.Reason())
	if !decision.Allow {
		r.mu.Unlock()
		log.FromContext(ctx).Info().
			Str(log.FieldEvent, "session.rejected").
			Str(log.FieldReason, decision.Reason()).
			Str(log.FieldURL, req.URL).
			Msg("session launch rejected")
		return nil, fmt.Errorf("%w: %w", model.ErrLaunchRejected, decision.Problem)
	}

	id := r.opts.NewID()
	m := session.New(id, req, r.opts.Deps, r.opts.Session, r.onTransition)
	r.sessions[id] = m
	r.mu.Unlock()

	metrics.RecordSessionCreated(string(model.StateLaunching))
	logger := r.logger.With().Str(log.FieldSessionID, id).Logger()
	if req.ScheduleID != "" {
		logger = logger.With().Str(log.FieldScheduleID, req.ScheduleID).Logger()
	}
	logger.Info().Str(log.FieldEvent, "session.created").Str(log.FieldURL, req.URL).Bool("auto_download", req.AutoDownload).Msg("session created")

	m.Start(r.baseCtx)
	return m.Snapshot(), nil
}

func (r *Registry) onTransition(tr session.Transition) {
	if r.opts.OnTransition != nil {
		r.opts.OnTransition(tr)
	}
}

func (r *Registry) lookup(id string) (*session.Machine, error) {
	r.mu.RLock()
	m, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrSessionNotFound, id)
	}
	return m, nil
}

// Get returns the snapshot of session id.
func (r *Registry) Get(id string) (*model.Snapshot, error) {
	m, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.Snapshot(), nil
}

// List returns all sessions, newest first.
func (r *Registry) List() []*model.Snapshot {
	r.mu.RLock()
	out := make([]*model.Snapshot, 0, len(r.sessions))
	for _, m := range r.sessions {
		out = append(out, m.Snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Select records the stream with url in session id.
func (r *Registry) Select(id, url string) (*model.Snapshot, error) {
	m, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := m.Select(url); err != nil {
		return nil, err
	}
	return m.Snapshot(), nil
}

// Close cancels session id and releases its browser. Closing a session
// that has already stopped is a no-op.
func (r *Registry) Close(id string) (*model.Snapshot, error) {
	m, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := m.Close(); err != nil && !errors.Is(err, model.ErrSessionClosed) {
		return nil, err
	}
	return m.Snapshot(), nil
}

// KeepOpen keeps the browser of session id open after it finishes.
func (r *Registry) KeepOpen(id string) (*model.Snapshot, error) {
	m, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := m.KeepOpen(); err != nil {
		return nil, err
	}
	return m.Snapshot(), nil
}

// Run removes stopped sessions once their grace period has passed. It
// blocks until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	timer := r.clock.NewTimer(sweepInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C():
			r.Sweep()
			timer.Reset(sweepInterval)
		}
	}
}

// Sweep removes every stopped session closed at least GCGrace ago and
// returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	forget, _ := r.opts.Deps.Downloader.(interface{ Forget(string) })

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, m := range r.sessions {
		select {
		case <-m.Done():
		default:
			continue
		}
		s := m.Snapshot()
		if s.ClosedAt == nil || now.Sub(*s.ClosedAt) < r.opts.GCGrace {
			continue
		}
		delete(r.sessions, id)
		if forget != nil {
			forget.Forget(id)
		}
		removed++
	}
	if removed > 0 {
		r.logger.Debug().Int("removed", removed).Msg("expired sessions removed")
	}
	return removed
}

// ClearProfile cancels every open session and wipes the shared browser
// profile.
func (r *Registry) ClearProfile(ctx context.Context) error {
	if r.opts.Profile == nil {
		return errors.New("no browser profile configured")
	}
	if err := r.closeAll(ctx, false); err != nil {
		return err
	}
	if err := r.opts.Profile.Clear(); err != nil {
		return fmt.Errorf("clear browser profile: %w", err)
	}
	r.logger.Info().Str(log.FieldEvent, "browser.profile_cleared").Msg("browser profile cleared")
	return nil
}

// Shutdown stops accepting sessions, closes the open ones and waits for
// them to release their resources or for ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()
	defer r.cancel()
	return r.closeAll(ctx, true)
}

func (r *Registry) closeAll(ctx context.Context, shutdown bool) error {
	r.mu.RLock()
	machines := make([]*session.Machine, 0, len(r.sessions))
	for _, m := range r.sessions {
		machines = append(machines, m)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, m := range machines {
		wg.Add(1)
		go func(m *session.Machine) {
			defer wg.Done()
			var err error
			if shutdown {
				err = m.Shutdown()
			} else {
				err = m.Close()
			}
			if err != nil && !errors.Is(err, model.ErrSessionClosed) {
				r.logger.Warn().Err(err).Str(log.FieldSessionID, m.ID()).Msg("close session")
			}
		}(m)
	}
	wg.Wait()

	for _, m := range machines {
		select {
		case <-m.Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for sessions: %w", ctx.Err())
		}
	}
	return nil
}
