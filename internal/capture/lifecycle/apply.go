// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

// ApplyTransition mutates the session record according to the transition.
// A selection survives only in Downloading and Completed; other terminal
// states move it (and its job) to the Last* history fields.
func ApplyTransition(rec *model.Record, tr Transition, now time.Time) {
	rec.State = tr.To
	if tr.Reason != "" {
		rec.Reason = tr.Reason
		rec.Detail = tr.Detail
	}
	if !tr.To.HoldsSelection() && rec.Selected != nil {
		rec.LastSelected = rec.Selected
		rec.LastJob = rec.Job
		rec.Selected = nil
		rec.Job = nil
	}
	if tr.To.IsTerminal() && rec.ClosedAt == nil {
		t := now
		rec.ClosedAt = &t
	}
	rec.UpdatedAt = now
}
