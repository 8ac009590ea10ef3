// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/metrics"
	"github.com/ManuGH/streamcap/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultRecheckMin = 5 * time.Minute
	DefaultRecheckMax = 8 * time.Minute
	DefaultBusyRetry  = 30 * time.Second
)

var tracer = telemetry.Tracer("github.com/ManuGH/streamcap/internal/schedule")

// Launcher starts a capture session. It is implemented by the session
// registry.
type Launcher interface {
	Launch(ctx context.Context, req model.LaunchRequest) (*model.Snapshot, error)
}

// Options configures an Engine.
type Options struct {
	Store    Store
	Launcher Launcher
	Clock    clock.Clock
	// Location for daily windows and zone-less date-times. Defaults to time.Local.
	Location *time.Location

	RecheckMin time.Duration
	RecheckMax time.Duration
	BusyRetry  time.Duration

	// Jitter returns a value in [0,1); defaults to math/rand.
	Jitter func() float64
}

// EvalReport summarizes one Evaluate pass.
type EvalReport struct {
	Evaluated int
	Launched  int
	Rejected  int
	Failed    int
	// Earliest NextCheck across all schedules.
	Next *time.Time
}

// Engine owns the schedule set. Every method is safe for concurrent use;
// state changes are written through to the Store before they become visible.
type Engine struct {
	store    Store
	launcher Launcher
	clock    clock.Clock
	loc      *time.Location
	opts     Options
	logger   zerolog.Logger

	mu        sync.Mutex
	schedules map[string]Schedule
}

// NewEngine loads every stored schedule.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RecheckMin <= 0 {
		opts.RecheckMin = DefaultRecheckMin
	}
	if opts.RecheckMax < opts.RecheckMin {
		opts.RecheckMax = max(DefaultRecheckMax, opts.RecheckMin)
	}
	if opts.BusyRetry <= 0 {
		opts.BusyRetry = DefaultBusyRetry
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}
	e := &Engine{
		store:     opts.Store,
		launcher:  opts.Launcher,
		clock:     clock.OrReal(opts.Clock),
		loc:       opts.Location,
		opts:      opts,
		logger:    log.WithComponent("schedule"),
		schedules: make(map[string]Schedule),
	}
	stored, err := opts.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	for _, s := range stored {
		e.schedules[s.ID] = s
	}
	e.logger.Info().Int("count", len(stored)).Msg("schedules loaded")
	return e, nil
}

// save writes s through to the store and then to memory.
func (e *Engine) save(ctx context.Context, s Schedule) error {
	if err := e.store.Put(ctx, s); err != nil {
		return fmt.Errorf("save schedule %s: %w", s.ID, err)
	}
	e.schedules[s.ID] = s
	return nil
}

// Create validates in and stores a new Pending schedule.
func (e *Engine) Create(ctx context.Context, in Input) (Schedule, error) {
	now := e.clock.Now()
	s := Schedule{ID: uuid.NewString(), Status: StatusPending, CreatedAt: now, UpdatedAt: now}
	if err := in.build(&s, e.loc); err != nil {
		return Schedule{}, err
	}
	if w, ok := s.Window.(OneTime); ok && w.End.Before(now) {
		return Schedule{}, fmt.Errorf("%w: window already ended", ErrScheduleConfig)
	}
	e.refresh(&s, now)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.save(ctx, s); err != nil {
		return Schedule{}, err
	}
	e.logger.Info().Str(log.FieldScheduleID, s.ID).Str("kind", s.Window.Kind()).Str(log.FieldURL, s.URL).Msg("schedule created")
	return s.clone(), nil
}

// Update replaces the user part of schedule id, resets it to Pending and
// recomputes its next check.
func (e *Engine) Update(ctx context.Context, id string, in Input) (Schedule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.schedules[id]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	now := e.clock.Now()
	s := existing.clone()
	if err := in.build(&s, e.loc); err != nil {
		return Schedule{}, err
	}
	s.Status = StatusPending
	s.Occurrence = nil
	s.LastError = ""
	s.UpdatedAt = now
	e.refresh(&s, now)
	if err := e.save(ctx, s); err != nil {
		return Schedule{}, err
	}
	e.logger.Info().Str(log.FieldScheduleID, id).Msg("schedule updated")
	return s.clone(), nil
}

// Delete removes schedule id. Sessions it already launched keep running.
func (e *Engine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.schedules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if err := e.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrScheduleNotFound) {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	delete(e.schedules, id)
	e.logger.Info().Str(log.FieldScheduleID, id).Msg("schedule deleted")
	return nil
}

// Get returns schedule id.
func (e *Engine) Get(id string) (Schedule, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.schedules[id]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return s.clone(), nil
}

// List returns all schedules ordered by next check, falling back to the
// window start.
func (e *Engine) List() []Schedule {
	e.mu.Lock()
	out := make([]Schedule, 0, len(e.schedules))
	for _, s := range e.schedules {
		out = append(out, s.clone())
	}
	e.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].sortKey(), out[j].sortKey()
		if !ki.Equal(kj) {
			return ki.Before(kj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RefreshAll recomputes the next check of every schedule without launching
// anything and returns how many were refreshed.
func (e *Engine) RefreshAll(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	var errs []error
	n := 0
	for _, id := range e.sortedIDs() {
		s := e.schedules[id].clone()
		e.refresh(&s, now)
		if err := e.save(ctx, s); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	e.logger.Info().Int("count", n).Msg("schedule next checks refreshed")
	return n, errors.Join(errs...)
}

// refresh recomputes NextCheck for the current status without any status
// change beyond what the window itself implies.
func (e *Engine) refresh(s *Schedule, now time.Time) {
	if s.Status.IsTerminal() {
		s.NextCheck = nil
		return
	}
	occ, open := e.advance(s, now)
	if s.Status.IsTerminal() {
		s.NextCheck = nil
		return
	}
	if !open {
		start := occ.start
		s.NextCheck = &start
		return
	}
	switch s.Status {
	case StatusActive:
		s.NextCheck = e.recheck(occ, now)
	case StatusDownloadStarted:
		s.NextCheck = capAt(occ.end, occ.end, now)
	default:
		// due on the next pass
		s.NextCheck = capAt(now.Add(time.Second), occ.end, now)
	}
}

// advance applies the window rules that do not depend on launching: a
// weekly window moves forward, a finished occurrence resets the status and
// an over one-time window ends the schedule. It returns the current or next
// occurrence and whether it is open at now.
func (e *Engine) advance(s *Schedule, now time.Time) (span, bool) {
	var occ span
	open := false
	switch w := s.Window.(type) {
	case OneTime:
		occ = span{w.Start, w.End}
		if now.After(w.End) {
			if s.Status == StatusDownloadStarted {
				s.Status = StatusCompleted
			} else {
				s.Status = StatusExpired
			}
			s.Occurrence = nil
			return occ, false
		}
		open = occ.contains(now)
	case WeeklyRepeat:
		if now.After(w.End) {
			w = advanceWeekly(w, now)
			s.Window = w
		}
		occ = span{w.Start, w.End}
		open = occ.contains(now)
	case Daily:
		cur, ok, next := w.around(now, e.loc)
		occ, open = next, ok
		if ok {
			occ = cur
		}
	default:
		panic(fmt.Sprintf("schedule %s: unknown window %T", s.ID, s.Window))
	}

	// the occurrence the status refers to is over or was missed entirely
	if s.Occurrence != nil && (!open || !s.Occurrence.Equal(occ.start)) {
		s.Occurrence = nil
		if s.Status == StatusActive || s.Status == StatusDownloadStarted {
			s.Status = StatusPending
		}
	}
	if !open && s.Status == StatusActive {
		s.Status = StatusPending
	}
	return occ, open
}

// recheck returns the in-window re-check time: now plus a uniform 5-8
// minutes, capped at the window end.
func (e *Engine) recheck(occ span, now time.Time) *time.Time {
	spread := e.opts.RecheckMax - e.opts.RecheckMin
	d := e.opts.RecheckMin + time.Duration(e.opts.Jitter()*float64(spread))
	return capAt(now.Add(d), occ.end, now)
}

// Evaluate advances every non-terminal schedule to now and launches the
// ones that are due. Calling it again within the same window does not
// launch twice.
func (e *Engine) Evaluate(ctx context.Context, now time.Time) (EvalReport, error) {
	ctx, span := tracer.Start(ctx, "schedule.evaluate")
	defer span.End()
	started := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	var report EvalReport
	var errs []error
	for _, id := range e.sortedIDs() {
		before := e.schedules[id]
		if before.Status.IsTerminal() {
			continue
		}
		report.Evaluated++
		s := before.clone()
		if due, occ := e.step(&s, now); due {
			e.trigger(ctx, &s, occ, now, &report)
		}
		if err := e.save(ctx, s); err != nil {
			errs = append(errs, err)
		}
		if s.Status != before.Status {
			e.logger.Info().
				Str(log.FieldScheduleID, s.ID).
				Str(log.FieldOldState, string(before.Status)).
				Str(log.FieldNewState, string(s.Status)).
				Msg("schedule status changed")
		}
	}

	counts := make(map[string]int, len(AllStatuses))
	for _, s := range e.schedules {
		counts[string(s.Status)]++
		if s.NextCheck != nil && (report.Next == nil || s.NextCheck.Before(*report.Next)) {
			t := *s.NextCheck
			report.Next = &t
		}
	}
	statuses := make([]string, len(AllStatuses))
	for i, st := range AllStatuses {
		statuses[i] = string(st)
	}
	metrics.SetScheduleCounts(counts, statuses)

	span.SetAttributes(telemetry.EvaluationAttributes(report.Evaluated, report.Launched)...)
	err := errors.Join(errs...)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RecordEvaluation(result, time.Since(started).Seconds())
	return report, err
}

// step moves s to now and reports whether it is due, with its occurrence.
func (e *Engine) step(s *Schedule, now time.Time) (bool, span) {
	occ, open := e.advance(s, now)
	if s.Status.IsTerminal() {
		s.NextCheck = nil
		return false, occ
	}
	if !open {
		s.Status = StatusPending
		start := occ.start
		s.NextCheck = &start
		return false, occ
	}
	switch s.Status {
	case StatusPending:
		s.Status = StatusActive
		start := occ.start
		s.Occurrence = &start
		return true, occ
	case StatusActive:
		if s.NextCheck == nil || !now.Before(*s.NextCheck) {
			return true, occ
		}
		return false, occ
	case StatusDownloadStarted:
		s.NextCheck = capAt(occ.end, occ.end, now)
	}
	return false, occ
}

// trigger launches the session for an Active schedule.
func (e *Engine) trigger(ctx context.Context, s *Schedule, occ span, now time.Time, report *EvalReport) {
	t := now
	s.LastCheck = &t
	s.UpdatedAt = now
	logger := e.logger.With().Str(log.FieldScheduleID, s.ID).Logger()

	snap, err := e.launcher.Launch(log.ContextWithScheduleID(ctx, s.ID), s.Request())
	switch {
	case err == nil:
		s.Status = StatusDownloadStarted
		s.LastSessionID = snap.ID
		s.LastError = ""
		s.NextCheck = capAt(occ.end, occ.end, now)
		report.Launched++
		metrics.RecordTrigger(s.Window.Kind(), "launched")
		logger.Info().Str(log.FieldEvent, "schedule.triggered").Str(log.FieldSessionID, snap.ID).Msg("scheduled session launched")
	case errors.Is(err, model.ErrLaunchRejected):
		s.NextCheck = capAt(now.Add(e.opts.BusyRetry), occ.end, now)
		report.Rejected++
		metrics.RecordTrigger(s.Window.Kind(), "rejected")
		logger.Info().Err(err).Msg("scheduled launch rejected, retrying")
	default:
		s.Status = StatusError
		s.LastError = err.Error()
		s.NextCheck = nil
		report.Failed++
		metrics.RecordTrigger(s.Window.Kind(), "error")
		logger.Error().Err(err).Msg("scheduled launch failed")
	}
}

// ReportOutcome feeds the result of a session launched by schedule
// scheduleID back into it. A download failure marks the schedule Error even
// when the window has closed since the launch; a session that ended before
// downloading is retried within the same window.
func (e *Engine) ReportOutcome(ctx context.Context, scheduleID string, snap *model.Snapshot) {
	if snap == nil || !snap.State.IsTerminal() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.schedules[scheduleID]
	if !ok || existing.LastSessionID != snap.ID {
		return
	}
	s := existing.clone()
	now := e.clock.Now()
	logger := e.logger.With().Str(log.FieldScheduleID, scheduleID).Str(log.FieldSessionID, snap.ID).Logger()

	var reason model.ReasonCode
	msg := ""
	if snap.Error != nil {
		reason, msg = snap.Error.Reason, snap.Error.Message
	}
	switch reason {
	case model.RDownloadFailed:
		// the window may have closed: Daily and Weekly are back to Pending,
		// OneTime is Completed
		if s.Status == StatusError || s.Status == StatusExpired {
			return
		}
		s.Status = StatusError
		s.LastError = msg
		s.NextCheck = nil
		s.Occurrence = nil
		logger.Warn().Str(log.FieldReason, string(reason)).Msg("scheduled download failed")
	case model.RLaunchFailed, model.RDetectionTimeout, model.RBrowserClosed:
		if s.Status != StatusDownloadStarted {
			return
		}
		occ, open := e.advance(&s, now)
		if !open || s.Status != StatusDownloadStarted {
			return
		}
		s.Status = StatusActive
		s.LastError = msg
		s.NextCheck = e.recheck(occ, now)
		logger.Info().Str(log.FieldReason, string(reason)).Msg("no stream yet, re-checking within the window")
	default:
		return
	}
	s.UpdatedAt = now
	if err := e.save(ctx, s); err != nil {
		logger.Error().Err(err).Msg("persist schedule outcome")
	}
	if s.Status != existing.Status {
		e.logger.Info().
			Str(log.FieldScheduleID, s.ID).
			Str(log.FieldOldState, string(existing.Status)).
			Str(log.FieldNewState, string(s.Status)).
			Msg("schedule status changed")
	}
}

func (e *Engine) sortedIDs() []string {
	ids := make([]string, 0, len(e.schedules))
	for id := range e.schedules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
