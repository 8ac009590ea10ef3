// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// State is the client-visible lifecycle of a capture session.
type State string

const (
	StateLaunching         State = "LAUNCHING"
	StateMonitoring        State = "MONITORING"
	StateAwaitingSelection State = "AWAITING_SELECTION"
	StateDownloading       State = "DOWNLOADING"
	StateCompleted         State = "COMPLETED"
	StateFailed            State = "FAILED"
	StateCancelled         State = "CANCELLED"
)

// IsTerminal returns true if the state is a final state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// HoldsSelection reports whether a session in this state carries a selected stream.
func (s State) HoldsSelection() bool {
	return s == StateDownloading || s == StateCompleted
}

// ReasonCode is a compact, typed failure/decision signal.
// Keep these stable: metrics + client UX depend on them.
type ReasonCode string

const (
	RNone                    ReasonCode = "R_NONE"
	RLaunchFailed            ReasonCode = "R_LAUNCH_FAILED"
	RDetectionTimeout        ReasonCode = "R_DETECTION_TIMEOUT"
	RDownloadFailed          ReasonCode = "R_DOWNLOAD_FAILED"
	RDownloadStopped         ReasonCode = "R_DOWNLOAD_STOPPED"
	RBrowserClosed           ReasonCode = "R_BROWSER_CLOSED"
	RClientClose             ReasonCode = "R_CLIENT_CLOSE"
	RShutdown                ReasonCode = "R_SHUTDOWN"
	RInternalInvariantBreach ReasonCode = "R_INTERNAL_INVARIANT_BREACH"
)

// Protocol is the streaming protocol of a classified candidate.
type Protocol string

const (
	ProtocolHLS         Protocol = "HLS"
	ProtocolDASH        Protocol = "DASH"
	ProtocolProgressive Protocol = "PROGRESSIVE"
)
