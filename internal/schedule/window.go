// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import "time"

const (
	day  = 24 * time.Hour
	week = 7 * day
)

// span is one concrete occurrence of a window; both ends are inclusive.
type span struct {
	start, end time.Time
}

func (s span) contains(t time.Time) bool {
	return !t.Before(s.start) && !t.After(s.end)
}

// duration of a daily window; an end before the start wraps past midnight.
func (d Daily) duration() time.Duration {
	m := d.End.minutes() - d.Start.minutes()
	if m <= 0 {
		m += 24 * 60
	}
	return time.Duration(m) * time.Minute
}

// around returns the occurrence open at now, if any, and the first
// occurrence starting after now.
func (d Daily) around(now time.Time, loc *time.Location) (current span, open bool, next span) {
	local := now.In(loc)
	y, m, dd := local.Date()
	dur := d.duration()
	for off := -1; off <= 1; off++ {
		st := time.Date(y, m, dd+off, d.Start.Hour, d.Start.Minute, 0, 0, loc)
		sp := span{start: st, end: st.Add(dur)}
		if sp.contains(now) {
			current, open = sp, true
		}
		if next.start.IsZero() && st.After(now) {
			next = sp
		}
	}
	return current, open, next
}

// advanceWeekly moves w forward in whole weeks until its end is not before now.
func advanceWeekly(w WeeklyRepeat, now time.Time) WeeklyRepeat {
	for w.End.Before(now) {
		w.Start = w.Start.AddDate(0, 0, 7)
		w.End = w.End.AddDate(0, 0, 7)
	}
	return w
}

// capAt returns t limited to end. When that is not after now the
// occurrence is at its inclusive end, and the check lands one second past it
// so the next pass moves the schedule on.
func capAt(t, end, now time.Time) *time.Time {
	if t.After(end) {
		t = end
	}
	if !t.After(now) {
		t = now.Add(time.Second)
	}
	return &t
}
