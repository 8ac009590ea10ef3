// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build debug

package lifecycle

import (
	"fmt"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

func illegalTransition(rec *model.Record, from model.State, ev EventKind, now time.Time) (Transition, error) {
	panic(fmt.Sprintf("session %s: illegal transition %s + %v", rec.ID, from, ev))
}
