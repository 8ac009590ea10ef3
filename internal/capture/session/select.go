// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"math"
	"sort"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

// Match describes how well a pick satisfies the preference.
type Match int

const (
	MatchNone Match = iota
	// MatchHighest is the best available stream, nothing closer exists.
	MatchHighest
	// MatchLower is the best stream below the requested height.
	MatchLower
	// MatchResolution has the requested height; the framerate differs.
	MatchResolution
	// MatchExact has the requested height and framerate.
	MatchExact
	// MatchSource is the highest quality, as requested.
	MatchSource
)

func (m Match) String() string {
	switch m {
	case MatchHighest:
		return "highest"
	case MatchLower:
		return "lower"
	case MatchResolution:
		return "resolution"
	case MatchExact:
		return "exact"
	case MatchSource:
		return "source"
	default:
		return "none"
	}
}

const (
	heightTolerance = 10
	fpsTolerance    = 5
)

// SelectBest picks the stream to record for pref. Ties keep detection order.
func SelectBest(streams []model.StreamDescriptor, pref model.Preference) (model.StreamDescriptor, Match) {
	if len(streams) == 0 {
		return model.StreamDescriptor{}, MatchNone
	}
	sorted := append([]model.StreamDescriptor(nil), streams...)
	sort.SliceStable(sorted, func(i, j int) bool {
		hi, hj := sorted[i].Height(), sorted[j].Height()
		if hi != hj {
			return hi > hj
		}
		return sorted[i].FPS() > sorted[j].FPS()
	})

	if pref.IsSource() {
		return sorted[0], MatchSource
	}
	height := pref.TargetHeight()
	fps := pref.TargetFPS()

	if fps > 0 {
		for _, d := range sorted {
			if near(d.Height(), height, heightTolerance) && math.Abs(d.FPS()-fps) < fpsTolerance {
				return d, MatchExact
			}
		}
	}
	// sorted is by fps descending within a height, so the first hit has the
	// highest framerate
	for _, d := range sorted {
		if near(d.Height(), height, heightTolerance) {
			if fps == 0 {
				return d, MatchExact
			}
			return d, MatchResolution
		}
	}
	for _, d := range sorted {
		if d.Height() < height {
			return d, MatchLower
		}
	}
	return sorted[0], MatchHighest
}

func near(a, b, tol int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < tol
}
