// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

// Dispatch resolves the transition for ev and applies it to rec.
// It is the only entry point that changes rec.State.
func Dispatch(rec *model.Record, ev Event, now time.Time) (Transition, error) {
	if rec.State.IsTerminal() {
		return illegalTransition(rec, rec.State, ev.Kind, now)
	}
	tr, ok := TransitionFor(rec.State, ev.Kind)
	if !ok {
		return illegalTransition(rec, rec.State, ev.Kind, now)
	}
	if ev.Reason != "" {
		tr.Reason = ev.Reason
	}
	tr.Detail = ev.Detail
	if ev.Kind == EvStreamSelected {
		if ev.Selected == nil {
			return illegalTransition(rec, rec.State, ev.Kind, now)
		}
		sel := *ev.Selected
		rec.Selected = &sel
	}
	ApplyTransition(rec, tr, now)
	return tr, nil
}
