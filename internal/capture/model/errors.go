// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "errors"

var (
	ErrLaunchFailure    = errors.New("launch failure")
	ErrDetectionTimeout = errors.New("detection timeout")
	ErrDownloadFailure  = errors.New("download failure")
	ErrLaunchRejected   = errors.New("launch rejected: busy")
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSelection = errors.New("invalid stream selection")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrSessionClosed    = errors.New("session closed")
)

// ReasonError maps a terminal reason to its error class.
func ReasonError(reason ReasonCode) error {
	switch reason {
	case RLaunchFailed, RBrowserClosed:
		return ErrLaunchFailure
	case RDetectionTimeout:
		return ErrDetectionTimeout
	case RDownloadFailed:
		return ErrDownloadFailure
	case RClientClose, RDownloadStopped, RShutdown:
		return ErrSessionClosed
	case RNone, "":
		return nil
	default:
		return errors.New(string(reason))
	}
}
