// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		name          string
		start, end    string
		daily, repeat bool
		want          Window
		wantErr       bool
	}{
		{name: "one time rfc3339", start: "2025-03-10T09:00:00Z", end: "2025-03-10T10:00:00Z",
			want: OneTime{Start: at(10, 9, 0), End: at(10, 10, 0)}},
		{name: "one time local layout", start: "2025-03-10T09:00", end: "2025-03-10 10:30",
			want: OneTime{Start: at(10, 9, 0), End: at(10, 10, 30)}},
		{name: "weekly", start: "2025-03-10T09:00:00Z", end: "2025-03-10T10:00:00Z", repeat: true,
			want: WeeklyRepeat{Start: at(10, 9, 0), End: at(10, 10, 0)}},
		{name: "daily ignores repeat", start: "09:00", end: "10:00", daily: true, repeat: true,
			want: Daily{Start: ClockTime{9, 0}, End: ClockTime{10, 0}}},
		{name: "daily across midnight", start: "23:30", end: "00:45", daily: true,
			want: Daily{Start: ClockTime{23, 30}, End: ClockTime{0, 45}}},
		{name: "end before start", start: "2025-03-10T10:00:00Z", end: "2025-03-10T09:00:00Z", wantErr: true},
		{name: "empty window", start: "2025-03-10T10:00:00Z", end: "2025-03-10T10:00:00Z", wantErr: true},
		{name: "weekly too long", start: "2025-03-10T10:00:00Z", end: "2025-03-17T10:00:00Z", repeat: true, wantErr: true},
		{name: "daily equal", start: "09:00", end: "09:00", daily: true, wantErr: true},
		{name: "daily bad clock", start: "9am", end: "10:00", daily: true, wantErr: true},
		{name: "garbage", start: "tomorrow", end: "later", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWindow(tt.start, tt.end, tt.daily, tt.repeat, time.UTC)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrScheduleConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDailyAround(t *testing.T) {
	d := Daily{Start: ClockTime{9, 0}, End: ClockTime{10, 0}}

	_, open, next := d.around(at(5, 8, 59), time.UTC)
	assert.False(t, open)
	assert.Equal(t, at(5, 9, 0), next.start)

	cur, open, next := d.around(at(5, 9, 5), time.UTC)
	assert.True(t, open)
	assert.Equal(t, span{at(5, 9, 0), at(5, 10, 0)}, cur)
	assert.Equal(t, at(6, 9, 0), next.start)

	_, open, next = d.around(at(5, 10, 1), time.UTC)
	assert.False(t, open)
	assert.Equal(t, at(6, 9, 0), next.start)
}

func TestDailyAround_SpansMidnight(t *testing.T) {
	d := Daily{Start: ClockTime{23, 0}, End: ClockTime{1, 0}}
	assert.Equal(t, 2*time.Hour, d.duration())

	cur, open, next := d.around(at(6, 0, 30), time.UTC)
	require.True(t, open)
	assert.Equal(t, at(5, 23, 0), cur.start)
	assert.Equal(t, at(6, 1, 0), cur.end)
	assert.Equal(t, at(6, 23, 0), next.start)

	_, open, next = d.around(at(6, 1, 30), time.UTC)
	assert.False(t, open)
	assert.Equal(t, at(6, 23, 0), next.start)
}

func TestDailyAround_Zone(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	d := Daily{Start: ClockTime{9, 0}, End: ClockTime{10, 0}}
	// 07:30 UTC is 09:30 in the window's zone
	cur, open, _ := d.around(at(5, 7, 30), loc)
	require.True(t, open)
	assert.True(t, cur.start.Equal(at(5, 7, 0)))
}

func TestAdvanceWeekly(t *testing.T) {
	w := WeeklyRepeat{Start: at(1, 9, 0), End: at(1, 10, 0)}
	got := advanceWeekly(w, at(1, 10, 30))
	assert.Equal(t, at(8, 9, 0), got.Start)

	// several missed weeks
	got = advanceWeekly(w, at(20, 12, 0))
	assert.Equal(t, at(22, 9, 0), got.Start)
	assert.Equal(t, at(22, 10, 0), got.End)

	// still open
	assert.Equal(t, w, advanceWeekly(w, at(1, 9, 30)))
}

func TestCapAt(t *testing.T) {
	now := at(1, 9, 0)
	end := at(1, 10, 0)
	assert.Equal(t, at(1, 9, 5), *capAt(at(1, 9, 5), end, now))
	assert.Equal(t, end, *capAt(at(1, 11, 0), end, now))
	assert.Equal(t, now.Add(time.Second), *capAt(at(1, 11, 0), now, now))
	assert.Equal(t, now.Add(time.Second), *capAt(now, end, now))
}
