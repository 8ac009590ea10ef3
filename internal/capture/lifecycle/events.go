// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/streamcap/internal/capture/model"

// EventKind is a domain event in the capture session lifecycle.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvLaunched
	EvLaunchFailed
	EvStreamsDetected
	EvStreamSelected
	EvDetectionTimeout
	EvBrowserClosed
	EvDownloadSucceeded
	EvDownloadFailed
	EvDownloadStopped
	EvCloseRequested
	EvShutdown
)

var eventNames = map[EventKind]string{
	EvUnknown:           "unknown",
	EvLaunched:          "launched",
	EvLaunchFailed:      "launch_failed",
	EvStreamsDetected:   "streams_detected",
	EvStreamSelected:    "stream_selected",
	EvDetectionTimeout:  "detection_timeout",
	EvBrowserClosed:     "browser_closed",
	EvDownloadSucceeded: "download_succeeded",
	EvDownloadFailed:    "download_failed",
	EvDownloadStopped:   "download_stopped",
	EvCloseRequested:    "close_requested",
	EvShutdown:          "shutdown",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return "unknown"
}

// Event carries optional domain metadata for a transition.
type Event struct {
	Kind     EventKind
	Reason   model.ReasonCode
	Detail   string
	Selected *model.StreamDescriptor
}
