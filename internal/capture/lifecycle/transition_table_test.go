// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package lifecycle

import (
	"testing"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []model.State{
	model.StateLaunching,
	model.StateMonitoring,
	model.StateAwaitingSelection,
	model.StateDownloading,
	model.StateCompleted,
	model.StateFailed,
	model.StateCancelled,
}

func TestTransitionTable_NoDuplicatesAndNoTerminalSources(t *testing.T) {
	seen := map[model.State]map[EventKind]struct{}{}
	for _, tr := range transitionsTable {
		require.False(t, tr.From.IsTerminal(), "terminal state %s must have no outgoing edges", tr.From)
		if _, ok := seen[tr.From]; !ok {
			seen[tr.From] = map[EventKind]struct{}{}
		}
		_, dup := seen[tr.From][tr.Event]
		require.False(t, dup, "duplicate transition: %s + %v", tr.From, tr.Event)
		seen[tr.From][tr.Event] = struct{}{}
	}
}

func TestTransitionTable_CancelAndFailReachableFromEveryNonTerminal(t *testing.T) {
	for _, s := range allStates {
		if s.IsTerminal() {
			continue
		}
		assert.True(t, Allowed(s, EvCloseRequested), "close from %s", s)
		assert.True(t, Allowed(s, EvShutdown), "shutdown from %s", s)

		canFail := false
		for _, tr := range transitionsTable {
			if tr.From == s && tr.To == model.StateFailed {
				canFail = true
			}
		}
		assert.True(t, canFail, "failed must be reachable from %s", s)
	}
}

func TestDispatch_HappyPath(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := model.NewRecord("s1", model.LaunchRequest{URL: "https://example.com"}, now)
	d := model.StreamDescriptor{URL: "https://cdn/a.m3u8", Name: "1080p60"}
	rec.AddStream(d)

	steps := []struct {
		ev   Event
		want model.State
	}{
		{Event{Kind: EvLaunched}, model.StateMonitoring},
		{Event{Kind: EvStreamsDetected}, model.StateAwaitingSelection},
		{Event{Kind: EvStreamSelected, Selected: &d}, model.StateDownloading},
		{Event{Kind: EvDownloadSucceeded}, model.StateCompleted},
	}
	for i, st := range steps {
		tr, err := Dispatch(rec, st.ev, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Equal(t, st.want, tr.To)
		assert.Equal(t, st.want, rec.State)
	}
	require.NotNil(t, rec.Selected)
	assert.Equal(t, d.URL, rec.Selected.URL)
	require.NotNil(t, rec.ClosedAt)
	assert.Equal(t, now.Add(3*time.Second), *rec.ClosedAt)
}

func TestDispatch_FailureClearsSelection(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := model.NewRecord("s1", model.LaunchRequest{}, now)
	d := model.StreamDescriptor{URL: "u", Name: "n"}
	_, _ = Dispatch(rec, Event{Kind: EvLaunched}, now)
	_, _ = Dispatch(rec, Event{Kind: EvStreamSelected, Selected: &d}, now)
	rec.Job = &model.JobSnapshot{ID: "s1", State: model.JobFailed}

	tr, err := Dispatch(rec, Event{Kind: EvDownloadFailed, Detail: "exit status 1"}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, tr.To)
	assert.Equal(t, model.RDownloadFailed, rec.Reason)
	assert.Equal(t, "exit status 1", rec.Detail)
	assert.Nil(t, rec.Selected)
	assert.Nil(t, rec.Job)
	require.NotNil(t, rec.LastSelected)
	require.NotNil(t, rec.LastJob)
}

func TestDispatch_IllegalTransitionFails(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := model.NewRecord("s1", model.LaunchRequest{}, now)

	tr, err := Dispatch(rec, Event{Kind: EvDownloadSucceeded}, now)
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, model.StateFailed, tr.To)
	assert.Equal(t, model.RInternalInvariantBreach, rec.Reason)
}

func TestDispatch_TerminalIsFrozen(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := model.NewRecord("s1", model.LaunchRequest{}, now)
	_, err := Dispatch(rec, Event{Kind: EvCloseRequested}, now)
	require.NoError(t, err)
	closedAt := *rec.ClosedAt

	_, err = Dispatch(rec, Event{Kind: EvLaunchFailed}, now.Add(time.Minute))
	require.ErrorIs(t, err, ErrIllegalTransition)
	assert.Equal(t, model.StateCancelled, rec.State)
	assert.Equal(t, model.RClientClose, rec.Reason)
	assert.Equal(t, closedAt, *rec.ClosedAt)
}

func TestDispatch_SelectionRequiresDescriptor(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := model.NewRecord("s1", model.LaunchRequest{}, now)
	_, _ = Dispatch(rec, Event{Kind: EvLaunched}, now)

	_, err := Dispatch(rec, Event{Kind: EvStreamSelected}, now)
	require.Error(t, err)
	assert.Equal(t, model.StateFailed, rec.State)
}
