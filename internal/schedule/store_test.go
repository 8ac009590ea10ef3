// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchedules() []Schedule {
	next := at(5, 9, 0)
	occ := at(4, 20, 0)
	last := at(4, 20, 1)
	return []Schedule{
		{
			ID: "a", Name: "morning", URL: target,
			Window:     Daily{Start: ClockTime{9, 0}, End: ClockTime{10, 0}},
			Preference: model.Preference{Resolution: "1080p", Framerate: "any"},
			Format:     "mp4", Status: StatusPending, NextCheck: &next,
			CreatedAt: at(1, 0, 0), UpdatedAt: at(1, 0, 0),
		},
		{
			ID: "b", Name: "match", URL: target,
			Window:     WeeklyRepeat{Start: at(4, 20, 0), End: at(4, 22, 0)},
			Preference: model.Preference{Resolution: "source", Framerate: "60"},
			Format:     "mkv", Status: StatusDownloadStarted,
			Occurrence: &occ, LastCheck: &last, LastSessionID: "sess-9",
			CreatedAt: at(1, 0, 0), UpdatedAt: at(4, 20, 1),
		},
		{
			ID: "c", Name: "once", URL: target,
			Window:     OneTime{Start: at(2, 12, 0), End: at(2, 13, 0)},
			Preference: model.Preference{Resolution: "720p", Framerate: "30"},
			Format:     "ts", Status: StatusError, LastError: "Server returned 403 Forbidden",
			CreatedAt: at(1, 0, 0), UpdatedAt: at(2, 12, 5),
		},
	}
}

func TestStores(t *testing.T) {
	backends := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSqliteStore(filepath.Join(t.TempDir(), "nested", "schedules.sqlite"))
			require.NoError(t, err)
			return s
		},
		"badger": func(t *testing.T) Store {
			s, err := OpenBadgerStore("")
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)
			t.Cleanup(func() { _ = st.Close() })

			want := sampleSchedules()
			for i := len(want) - 1; i >= 0; i-- {
				require.NoError(t, st.Put(ctx, want[i]))
			}

			got, err := st.List(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("List mismatch (-want +got):\n%s", diff)
			}

			b, err := st.Get(ctx, "b")
			require.NoError(t, err)
			if diff := cmp.Diff(want[1], b); diff != "" {
				t.Fatalf("Get mismatch (-want +got):\n%s", diff)
			}

			// upsert
			b.Status = StatusPending
			b.Occurrence = nil
			require.NoError(t, st.Put(ctx, b))
			b2, err := st.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, StatusPending, b2.Status)
			assert.Nil(t, b2.Occurrence)

			require.NoError(t, st.Delete(ctx, "a"))
			_, err = st.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrScheduleNotFound)
			assert.ErrorIs(t, st.Delete(ctx, "a"), ErrScheduleNotFound)

			got, err = st.List(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestOpenStore(t *testing.T) {
	mem, err := OpenStore("", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, mem)

	dir := t.TempDir()
	sq, err := OpenStore("", dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })
	assert.IsType(t, &SqliteStore{}, sq)
	assert.FileExists(t, filepath.Join(dir, "schedules.sqlite"))

	_, err = OpenStore("badger", "")
	assert.Error(t, err)

	_, err = OpenStore("etcd", dir)
	assert.ErrorContains(t, err, "unknown schedule store backend")
}

func TestScheduleJSON(t *testing.T) {
	s := sampleSchedules()[0]
	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "a", "name": "morning", "url": "https://example.com/live",
		"startTime": "09:00", "endTime": "10:00", "repeat": false, "daily": true,
		"resolution": "1080p", "framerate": "any", "format": "mp4",
		"status": "pending", "nextCheck": "2025-03-05T09:00:00Z",
		"createdAt": "2025-03-01T00:00:00Z", "updatedAt": "2025-03-01T00:00:00Z"
	}`, string(data))

	var back Schedule
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Empty(t, cmp.Diff(s, back))

	// a schedule without a next check serializes null
	c := sampleSchedules()[2]
	data, err = c.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nextCheck":null`)
	assert.Contains(t, string(data), `"startTime":"2025-03-02T12:00:00Z"`)
}
