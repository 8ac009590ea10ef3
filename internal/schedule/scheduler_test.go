// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScheduler_EvaluatesOnStartAndTick(t *testing.T) {
	l := &mockLauncher{}
	e, clk := newTestEngine(t, at(5, 8, 59), l)
	_, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	sched := NewScheduler(e, clk)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, sched.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// first pass runs immediately and arms a timer for the window start
	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	l.AssertNotCalled(t, "Launch", mock.Anything)

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool {
		s, err := e.Get(e.List()[0].ID)
		return err == nil && s.Status == StatusDownloadStarted
	}, time.Second, time.Millisecond)
	l.AssertNumberOfCalls(t, "Launch", 1)

	require.Eventually(t, func() bool {
		last, lastErr := sched.LastRun()
		return last.Equal(at(5, 9, 0)) && lastErr == ""
	}, time.Second, time.Millisecond)
}

func TestScheduler_Backoff(t *testing.T) {
	e, clk := newTestEngine(t, at(5, 8, 0), &mockLauncher{})
	s := NewScheduler(e, clk)
	s.Tick = time.Minute
	s.MaxBackoff = 3 * time.Minute

	assert.Equal(t, 2*time.Minute, s.increaseBackoff())
	assert.Equal(t, 3*time.Minute, s.increaseBackoff())
	s.resetBackoff()
	assert.Equal(t, 2*time.Minute, s.increaseBackoff())
}
