// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/streamcap/internal/capture/model"

// Transition is a single allowed edge in the lifecycle state machine.
type Transition struct {
	From   model.State
	To     model.State
	Event  EventKind
	Reason model.ReasonCode
	Detail string
}

var nonTerminal = []model.State{
	model.StateLaunching,
	model.StateMonitoring,
	model.StateAwaitingSelection,
	model.StateDownloading,
}

var transitionsTable = buildTable()

func buildTable() []Transition {
	t := []Transition{
		// Launch
		{From: model.StateLaunching, To: model.StateMonitoring, Event: EvLaunched},
		{From: model.StateLaunching, To: model.StateFailed, Event: EvLaunchFailed, Reason: model.RLaunchFailed},

		// Detection
		{From: model.StateMonitoring, To: model.StateAwaitingSelection, Event: EvStreamsDetected},
		{From: model.StateMonitoring, To: model.StateDownloading, Event: EvStreamSelected},
		{From: model.StateAwaitingSelection, To: model.StateDownloading, Event: EvStreamSelected},
		{From: model.StateMonitoring, To: model.StateFailed, Event: EvDetectionTimeout, Reason: model.RDetectionTimeout},
		{From: model.StateMonitoring, To: model.StateFailed, Event: EvBrowserClosed, Reason: model.RBrowserClosed},
		{From: model.StateAwaitingSelection, To: model.StateFailed, Event: EvBrowserClosed, Reason: model.RBrowserClosed},

		// Download outcome
		{From: model.StateDownloading, To: model.StateCompleted, Event: EvDownloadSucceeded},
		{From: model.StateDownloading, To: model.StateFailed, Event: EvDownloadFailed, Reason: model.RDownloadFailed},
		{From: model.StateDownloading, To: model.StateCancelled, Event: EvDownloadStopped, Reason: model.RDownloadStopped},
	}
	// Explicit close and shutdown are accepted from every non-terminal state.
	for _, from := range nonTerminal {
		t = append(t,
			Transition{From: from, To: model.StateCancelled, Event: EvCloseRequested, Reason: model.RClientClose},
			Transition{From: from, To: model.StateCancelled, Event: EvShutdown, Reason: model.RShutdown},
		)
	}
	return t
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Allowed reports whether ev is accepted in state from.
func Allowed(from model.State, ev EventKind) bool {
	_, ok := TransitionFor(from, ev)
	return ok
}
