// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/ManuGH/streamcap/internal/log"
	"github.com/rs/zerolog"
)

const (
	DefaultTick       = 30 * time.Second
	DefaultMaxBackoff = 5 * time.Minute
	minWait           = time.Second
)

// Scheduler runs Engine.Evaluate on a tick.
type Scheduler struct {
	engine *Engine
	clock  clock.Clock
	logger zerolog.Logger

	Tick       time.Duration
	MaxBackoff time.Duration

	mu      sync.Mutex
	backoff time.Duration
	lastRun time.Time
	lastErr string
	kick    chan struct{}
}

// NewScheduler creates a scheduler for engine.
func NewScheduler(engine *Engine, clk clock.Clock) *Scheduler {
	return &Scheduler{
		engine:     engine,
		clock:      clock.OrReal(clk),
		logger:     log.WithComponent("schedule.scheduler"),
		Tick:       DefaultTick,
		MaxBackoff: DefaultMaxBackoff,
		kick:       make(chan struct{}, 1),
	}
}

// Start runs the loop in a background goroutine until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() { _ = s.Run(ctx) }()
}

// Kick requests an evaluation ahead of the next tick.
func (s *Scheduler) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run evaluates immediately and then on every tick. It blocks until ctx is
// done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().Dur("tick", s.Tick).Msg("schedule loop started")
	timer := s.clock.NewTimer(s.runOnce(ctx))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("schedule loop stopping")
			return nil
		case <-s.kick:
			timer.Stop()
			timer.Reset(s.runOnce(ctx))
		case <-timer.C():
			timer.Reset(s.runOnce(ctx))
		}
	}
}

// runOnce evaluates and returns how long to wait before the next pass.
func (s *Scheduler) runOnce(ctx context.Context) time.Duration {
	now := s.clock.Now()
	report, err := s.engine.Evaluate(ctx, now)
	s.mu.Lock()
	s.lastRun = now
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Msg("schedule evaluation failed, backing off")
		return s.increaseBackoff()
	}
	s.resetBackoff()

	evt := s.logger.Debug()
	if report.Launched > 0 || report.Failed > 0 {
		evt = s.logger.Info()
	}
	evt.Int("evaluated", report.Evaluated).
		Int("launched", report.Launched).
		Int("rejected", report.Rejected).
		Int("failed", report.Failed).
		Msg("schedules evaluated")

	wait := s.Tick
	if report.Next != nil {
		if d := report.Next.Sub(now); d < wait {
			wait = max(d, minWait)
		}
	}
	return wait
}

// LastRun returns the time of the last evaluation and its error text, if
// any.
func (s *Scheduler) LastRun() (time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

func (s *Scheduler) increaseBackoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backoff == 0 {
		s.backoff = s.Tick
	}
	s.backoff *= 2
	if s.backoff > s.MaxBackoff {
		s.backoff = s.MaxBackoff
	}
	return s.backoff
}

func (s *Scheduler) resetBackoff() {
	s.mu.Lock()
	s.backoff = 0
	s.mu.Unlock()
}
