// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build !debug

package lifecycle

import (
	"fmt"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

func illegalTransition(rec *model.Record, from model.State, ev EventKind, now time.Time) (Transition, error) {
	err := fmt.Errorf("%w: %s + %v", ErrIllegalTransition, from, ev)
	if from.IsTerminal() {
		// Terminal records are frozen; late events are dropped.
		return Transition{From: from, To: from, Event: ev}, err
	}
	tr := Transition{
		From:   from,
		To:     model.StateFailed,
		Event:  ev,
		Reason: model.RInternalInvariantBreach,
		Detail: fmt.Sprintf("illegal transition: %s + %v", from, ev),
	}
	ApplyTransition(rec, tr, now)
	return tr, err
}
