// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package browser drives the interactive browser a capture session watches
// for stream requests.
package browser

import (
	"context"
	"errors"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

// ErrProfileBusy is returned when another browser holds the profile lock.
var ErrProfileBusy = errors.New("browser profile in use")

// Launcher opens a page navigated to a URL.
type Launcher interface {
	Launch(ctx context.Context, url string) (Page, error)
}

// Page is a live browser page. Candidates is closed when the browser goes
// away, whether through Close or because the user closed it.
type Page interface {
	Candidates() <-chan model.Candidate
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
