// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const target = "https://example.com/live"

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(_ context.Context, req model.LaunchRequest) (*model.Snapshot, error) {
	args := m.Called(req)
	snap, _ := args.Get(0).(*model.Snapshot)
	return snap, args.Error(1)
}

func launched(id string) *model.Snapshot {
	return &model.Snapshot{ID: id, State: model.StateLaunching}
}

func newTestEngine(t *testing.T, now time.Time, launcher Launcher) (*Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(now)
	e, err := NewEngine(context.Background(), Options{
		Launcher: launcher,
		Clock:    clk,
		Location: time.UTC,
		Jitter:   func() float64 { return 0 },
	})
	require.NoError(t, err)
	return e, clk
}

func evaluate(t *testing.T, e *Engine, now time.Time) EvalReport {
	t.Helper()
	rep, err := e.Evaluate(context.Background(), now)
	require.NoError(t, err)
	return rep
}

func get(t *testing.T, e *Engine, id string) Schedule {
	t.Helper()
	s, err := e.Get(id)
	require.NoError(t, err)
	return s
}

func TestEngine_DailyPendingThenDue(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 8, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)

	evaluate(t, e, at(5, 8, 59))
	got := get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, at(5, 9, 0), *got.NextCheck)

	// the registry is busy, so the schedule stays Active and due
	l.On("Launch", mock.Anything).Return(nil, fmt.Errorf("%w: another session is launching", model.ErrLaunchRejected)).Once()
	rep := evaluate(t, e, at(5, 9, 5))
	assert.Equal(t, 1, rep.Rejected)
	got = get(t, e, s.ID)
	assert.Equal(t, StatusActive, got.Status)
	require.NotNil(t, got.Occurrence)
	assert.Equal(t, at(5, 9, 0), *got.Occurrence)
	require.NotNil(t, got.LastCheck)
	l.AssertExpectations(t)
}

func TestEngine_OneTimeExpires(t *testing.T) {
	l := &mockLauncher{}
	start := at(10, 12, 0)
	e, _ := newTestEngine(t, start.Add(-10*time.Minute), l)
	s, err := e.Create(context.Background(), Input{
		URL:       target,
		StartTime: start.Format(time.RFC3339),
		EndTime:   start.Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)

	evaluate(t, e, start.Add(-5*time.Minute))
	got := get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, start, *got.NextCheck)

	evaluate(t, e, start.Add(61*time.Minute))
	got = get(t, e, s.ID)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Nil(t, got.NextCheck)
	l.AssertNotCalled(t, "Launch", mock.Anything)

	// terminal schedules are no longer evaluated
	rep := evaluate(t, e, start.Add(2*time.Hour))
	assert.Zero(t, rep.Evaluated)
}

func TestEngine_OneTimeLaunchesOnce(t *testing.T) {
	l := &mockLauncher{}
	start := at(10, 12, 0)
	e, _ := newTestEngine(t, start.Add(-time.Minute), l)
	s, err := e.Create(context.Background(), Input{
		URL:        target,
		StartTime:  start.Format(time.RFC3339),
		EndTime:    start.Add(time.Hour).Format(time.RFC3339),
		Resolution: "720p",
		Format:     "mkv",
	})
	require.NoError(t, err)

	l.On("Launch", model.LaunchRequest{
		URL:          target,
		Preference:   model.Preference{Resolution: "720p", Framerate: "any"},
		Format:       "mkv",
		AutoDownload: true,
		ScheduleID:   s.ID,
	}).Return(launched("sess-1"), nil).Once()

	now := start.Add(5 * time.Minute)
	rep := evaluate(t, e, now)
	assert.Equal(t, 1, rep.Launched)
	evaluate(t, e, now)
	evaluate(t, e, now.Add(20*time.Minute))
	l.AssertNumberOfCalls(t, "Launch", 1)

	got := get(t, e, s.ID)
	assert.Equal(t, StatusDownloadStarted, got.Status)
	assert.Equal(t, "sess-1", got.LastSessionID)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, start.Add(time.Hour), *got.NextCheck)

	evaluate(t, e, start.Add(2*time.Hour))
	got = get(t, e, s.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Nil(t, got.NextCheck)
}

func TestEngine_WeeklyAdvancesAfterDownload(t *testing.T) {
	l := &mockLauncher{}
	start := at(3, 20, 0)
	e, _ := newTestEngine(t, start.Add(-time.Hour), l)
	s, err := e.Create(context.Background(), Input{
		URL:       target,
		StartTime: start.Format(time.RFC3339),
		EndTime:   start.Add(90 * time.Minute).Format(time.RFC3339),
		Repeat:    true,
	})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	evaluate(t, e, start.Add(time.Minute))
	require.Equal(t, StatusDownloadStarted, get(t, e, s.ID).Status)

	evaluate(t, e, start.Add(2*time.Hour))
	got := get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, start.AddDate(0, 0, 7), *got.NextCheck)
	assert.Equal(t, WeeklyRepeat{Start: start.AddDate(0, 0, 7), End: start.AddDate(0, 0, 7).Add(90 * time.Minute)}, got.Window)
	assert.Nil(t, got.Occurrence)
}

func TestEngine_WeeklyMissedWithoutTrigger(t *testing.T) {
	l := &mockLauncher{}
	start := at(3, 20, 0)
	e, _ := newTestEngine(t, start.Add(-time.Hour), l)
	s, err := e.Create(context.Background(), Input{
		URL: target, StartTime: start.Format(time.RFC3339), EndTime: start.Add(time.Hour).Format(time.RFC3339), Repeat: true,
	})
	require.NoError(t, err)

	// the daemon was down for two and a half weeks
	evaluate(t, e, start.AddDate(0, 0, 17))
	got := get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, start.AddDate(0, 0, 21), *got.NextCheck)
	l.AssertNotCalled(t, "Launch", mock.Anything)
}

func TestEngine_DailyMissedWindowDeferred(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 8, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	evaluate(t, e, at(5, 9, 1))
	require.Equal(t, StatusDownloadStarted, get(t, e, s.ID).Status)

	// no same-day catch-up and skipped days are not replayed
	evaluate(t, e, at(8, 10, 30))
	got := get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, at(9, 9, 0), *got.NextCheck)
	l.AssertNumberOfCalls(t, "Launch", 1)
}

func TestEngine_DailySpanningMidnight(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 20, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "23:00", EndTime: "01:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	evaluate(t, e, at(6, 0, 30))
	got := get(t, e, s.ID)
	assert.Equal(t, StatusDownloadStarted, got.Status)
	assert.Equal(t, at(5, 23, 0), *got.Occurrence)
	assert.Equal(t, at(6, 1, 0), *got.NextCheck)

	evaluate(t, e, at(6, 1, 30))
	got = get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, at(6, 23, 0), *got.NextCheck)
}

func TestEngine_RejectedLaunchRetries(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 8, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(nil, model.ErrLaunchRejected).Once()
	l.On("Launch", mock.Anything).Return(launched("sess-2"), nil).Once()

	now := at(5, 9, 0)
	evaluate(t, e, now)
	got := get(t, e, s.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, now.Add(DefaultBusyRetry), *got.NextCheck)

	evaluate(t, e, now.Add(10*time.Second))
	l.AssertNumberOfCalls(t, "Launch", 1)

	evaluate(t, e, now.Add(DefaultBusyRetry))
	l.AssertNumberOfCalls(t, "Launch", 2)
	assert.Equal(t, StatusDownloadStarted, get(t, e, s.ID).Status)
}

func TestEngine_LaunchErrorMarksError(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 9, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(nil, errors.New("registry closed")).Once()

	rep := evaluate(t, e, at(5, 9, 0))
	assert.Equal(t, 1, rep.Failed)
	got := get(t, e, s.ID)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "registry closed", got.LastError)
	assert.Nil(t, got.NextCheck)
}

func TestEngine_ReportOutcome(t *testing.T) {
	failed := func(id string, reason model.ReasonCode, msg string) *model.Snapshot {
		return &model.Snapshot{ID: id, State: model.StateFailed, Error: &model.ErrorInfo{Reason: reason, Message: msg}}
	}

	setup := func(t *testing.T) (*Engine, *mockLauncher, string) {
		l := &mockLauncher{}
		e, _ := newTestEngine(t, at(5, 8, 0), l)
		s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
		require.NoError(t, err)
		l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()
		evaluate(t, e, at(5, 9, 0))
		return e, l, s.ID
	}

	t.Run("download failure is not retried", func(t *testing.T) {
		e, _, id := setup(t)
		e.ReportOutcome(context.Background(), id, failed("sess-1", model.RDownloadFailed, "Server returned 403 Forbidden"))
		got := get(t, e, id)
		assert.Equal(t, StatusError, got.Status)
		assert.Equal(t, "Server returned 403 Forbidden", got.LastError)
		assert.Nil(t, got.NextCheck)

		rep := evaluate(t, e, at(6, 9, 0))
		assert.Zero(t, rep.Launched)
	})

	t.Run("no stream found is re-checked in the window", func(t *testing.T) {
		e, l, id := setup(t)
		clk := e.clock.(*clock.Fake)
		clk.Set(at(5, 9, 30))
		e.ReportOutcome(context.Background(), id, failed("sess-1", model.RDetectionTimeout, "no stream detected"))
		got := get(t, e, id)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, at(5, 9, 35), *got.NextCheck)

		l.On("Launch", mock.Anything).Return(launched("sess-2"), nil).Once()
		evaluate(t, e, at(5, 9, 34))
		l.AssertNumberOfCalls(t, "Launch", 1)
		evaluate(t, e, at(5, 9, 35))
		l.AssertNumberOfCalls(t, "Launch", 2)
		assert.Equal(t, "sess-2", get(t, e, id).LastSessionID)
	})

	t.Run("re-check is capped at the window end", func(t *testing.T) {
		e, _, id := setup(t)
		e.clock.(*clock.Fake).Set(at(5, 9, 58))
		e.ReportOutcome(context.Background(), id, failed("sess-1", model.RBrowserClosed, ""))
		got := get(t, e, id)
		assert.Equal(t, StatusActive, got.Status)
		assert.Equal(t, at(5, 10, 0), *got.NextCheck)
	})

	t.Run("download failure after the daily window closed", func(t *testing.T) {
		e, l, id := setup(t)
		evaluate(t, e, at(5, 10, 5))
		require.Equal(t, StatusPending, get(t, e, id).Status)

		e.clock.(*clock.Fake).Set(at(5, 10, 30))
		e.ReportOutcome(context.Background(), id, failed("sess-1", model.RDownloadFailed, "Connection reset by peer"))
		got := get(t, e, id)
		assert.Equal(t, StatusError, got.Status)
		assert.Equal(t, "Connection reset by peer", got.LastError)
		assert.Nil(t, got.NextCheck)

		rep := evaluate(t, e, at(6, 9, 0))
		assert.Zero(t, rep.Launched)
		l.AssertNumberOfCalls(t, "Launch", 1)
	})

	t.Run("stale session is ignored", func(t *testing.T) {
		e, _, id := setup(t)
		e.ReportOutcome(context.Background(), id, failed("sess-0", model.RDownloadFailed, "boom"))
		assert.Equal(t, StatusDownloadStarted, get(t, e, id).Status)
	})

	t.Run("user cancel keeps the occurrence", func(t *testing.T) {
		e, _, id := setup(t)
		e.ReportOutcome(context.Background(), id, &model.Snapshot{
			ID: "sess-1", State: model.StateCancelled, Error: &model.ErrorInfo{Reason: model.RClientClose},
		})
		assert.Equal(t, StatusDownloadStarted, get(t, e, id).Status)
	})

	t.Run("non-terminal snapshot is ignored", func(t *testing.T) {
		e, _, id := setup(t)
		e.ReportOutcome(context.Background(), id, &model.Snapshot{ID: "sess-1", State: model.StateDownloading})
		assert.Equal(t, StatusDownloadStarted, get(t, e, id).Status)
	})
}

func TestEngine_OneTimeDownloadFailureAfterWindow(t *testing.T) {
	l := &mockLauncher{}
	start := at(10, 12, 0)
	e, clk := newTestEngine(t, start.Add(-time.Minute), l)
	s, err := e.Create(context.Background(), Input{
		URL:       target,
		StartTime: start.Format(time.RFC3339),
		EndTime:   start.Add(time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	evaluate(t, e, start.Add(5*time.Minute))
	evaluate(t, e, start.Add(2*time.Hour))
	require.Equal(t, StatusCompleted, get(t, e, s.ID).Status)

	clk.Set(start.Add(2*time.Hour + time.Minute))
	e.ReportOutcome(context.Background(), s.ID, &model.Snapshot{
		ID:    "sess-1",
		State: model.StateFailed,
		Error: &model.ErrorInfo{Reason: model.RDownloadFailed, Message: "muxer failed"},
	})
	got := get(t, e, s.ID)
	assert.Equal(t, StatusError, got.Status)
	assert.Equal(t, "muxer failed", got.LastError)
	assert.Nil(t, got.NextCheck)
}

func TestEngine_DownloadStartedAtWindowEnd(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 8, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	evaluate(t, e, at(5, 9, 0))
	got := get(t, e, s.ID)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, at(5, 10, 0), *got.NextCheck)

	rep := evaluate(t, e, at(5, 10, 0))
	got = get(t, e, s.ID)
	assert.Equal(t, StatusDownloadStarted, got.Status)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, at(5, 10, 0).Add(time.Second), *got.NextCheck)
	require.NotNil(t, rep.Next)

	evaluate(t, e, *got.NextCheck)
	got = get(t, e, s.ID)
	assert.Equal(t, StatusPending, got.Status)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, at(6, 9, 0), *got.NextCheck)
}

func TestEngine_LaunchAtWindowEnd(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 8, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(launched("sess-1"), nil).Once()

	rep := evaluate(t, e, at(5, 10, 0))
	assert.Equal(t, 1, rep.Launched)
	got := get(t, e, s.ID)
	assert.Equal(t, StatusDownloadStarted, got.Status)
	require.NotNil(t, got.NextCheck)
	assert.Equal(t, at(5, 10, 0).Add(time.Second), *got.NextCheck)
}

func TestEngine_NextCheckProperties(t *testing.T) {
	l := &mockLauncher{}
	l.On("Launch", mock.Anything).Return(launched("sess"), nil)
	now := at(1, 0, 0)
	e, _ := newTestEngine(t, now, l)

	inputs := []Input{
		{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true},
		{URL: target, StartTime: "22:30", EndTime: "02:15", Daily: true},
		{URL: target, StartTime: at(2, 6, 0).Format(time.RFC3339), EndTime: at(2, 8, 0).Format(time.RFC3339)},
		{URL: target, StartTime: at(1, 17, 0).Format(time.RFC3339), EndTime: at(1, 19, 0).Format(time.RFC3339), Repeat: true},
	}
	for _, in := range inputs {
		_, err := e.Create(context.Background(), in)
		require.NoError(t, err)
	}

	for ; now.Before(at(10, 0, 0)); now = now.Add(17 * time.Minute) {
		evaluate(t, e, now)
		for _, s := range e.List() {
			if s.NextCheck == nil {
				continue
			}
			assert.True(t, s.NextCheck.After(now), "%s next check %s not after %s", s.ID, s.NextCheck, now)
			if _, daily := s.Window.(Daily); daily {
				assert.False(t, s.NextCheck.After(now.Add(day)), "daily next check beyond a day")
			}
		}
	}
}

func TestEngine_CreateValidation(t *testing.T) {
	e, _ := newTestEngine(t, at(5, 8, 0), &mockLauncher{})
	tests := []Input{
		{URL: "not a url", StartTime: "09:00", EndTime: "10:00", Daily: true},
		{URL: target, StartTime: "10:00", EndTime: "10:00", Daily: true},
		{URL: target, StartTime: at(6, 10, 0).Format(time.RFC3339), EndTime: at(6, 9, 0).Format(time.RFC3339)},
		{URL: target, StartTime: at(4, 10, 0).Format(time.RFC3339), EndTime: at(4, 11, 0).Format(time.RFC3339)},
		{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true, Format: "avi"},
	}
	for i, in := range tests {
		_, err := e.Create(context.Background(), in)
		assert.ErrorIs(t, err, ErrScheduleConfig, "input %d", i)
	}
	assert.Empty(t, e.List())
}

func TestEngine_UpdateResetsToPending(t *testing.T) {
	l := &mockLauncher{}
	e, _ := newTestEngine(t, at(5, 9, 0), l)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	l.On("Launch", mock.Anything).Return(nil, errors.New("boom")).Once()
	evaluate(t, e, at(5, 9, 0))
	require.Equal(t, StatusError, get(t, e, s.ID).Status)

	got, err := e.Update(context.Background(), s.ID, Input{Name: "evening", URL: target, StartTime: "18:00", EndTime: "19:00", Daily: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, "evening", got.Name)
	assert.Empty(t, got.LastError)
	assert.Equal(t, at(5, 18, 0), *got.NextCheck)
	assert.Equal(t, s.CreatedAt, got.CreatedAt)

	_, err = e.Update(context.Background(), "missing", Input{URL: target, StartTime: "18:00", EndTime: "19:00", Daily: true})
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestEngine_DeleteAndGet(t *testing.T) {
	e, _ := newTestEngine(t, at(5, 8, 0), &mockLauncher{})
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	assert.Equal(t, target, s.Name)

	require.NoError(t, e.Delete(context.Background(), s.ID))
	_, err = e.Get(s.ID)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	assert.ErrorIs(t, e.Delete(context.Background(), s.ID), ErrScheduleNotFound)
}

func TestEngine_ListOrder(t *testing.T) {
	e, _ := newTestEngine(t, at(5, 8, 0), &mockLauncher{})
	late, err := e.Create(context.Background(), Input{URL: target, StartTime: "21:00", EndTime: "22:00", Daily: true})
	require.NoError(t, err)
	soon, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	tomorrow, err := e.Create(context.Background(), Input{
		URL: target, StartTime: at(6, 7, 0).Format(time.RFC3339), EndTime: at(6, 8, 0).Format(time.RFC3339),
	})
	require.NoError(t, err)

	var ids []string
	for _, s := range e.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{soon.ID, late.ID, tomorrow.ID}, ids)
}

func TestEngine_RefreshAll(t *testing.T) {
	e, clk := newTestEngine(t, at(5, 8, 0), &mockLauncher{})
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)
	assert.Equal(t, at(5, 9, 0), *s.NextCheck)

	clk.Set(at(5, 11, 0))
	n, err := e.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, at(6, 9, 0), *get(t, e, s.ID).NextCheck)
}

func TestEngine_ReloadsFromStore(t *testing.T) {
	store, err := OpenSqliteStore(t.TempDir() + "/schedules.sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clk := clock.NewFake(at(5, 8, 0))
	opts := Options{Store: store, Launcher: &mockLauncher{}, Clock: clk, Location: time.UTC}
	e, err := NewEngine(context.Background(), opts)
	require.NoError(t, err)
	s, err := e.Create(context.Background(), Input{URL: target, StartTime: "09:00", EndTime: "10:00", Daily: true})
	require.NoError(t, err)

	reloaded, err := NewEngine(context.Background(), opts)
	require.NoError(t, err)
	got := get(t, reloaded, s.ID)
	assert.Equal(t, Daily{Start: ClockTime{9, 0}, End: ClockTime{10, 0}}, got.Window)
	assert.Equal(t, StatusPending, got.Status)
	assert.True(t, got.NextCheck.Equal(at(5, 9, 0)))
}
