// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"testing"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/stretchr/testify/assert"
)

func stream(name, res string, fps float64) model.StreamDescriptor {
	return model.StreamDescriptor{URL: "https://cdn.example.com/" + name + ".m3u8", Name: name, Resolution: res, Framerate: fps}
}

func TestSelectBest(t *testing.T) {
	p1080_60 := stream("1080p60", "1920x1080", 60)
	p1080_30 := stream("1080p30", "1920x1080", 30)
	p720_30 := stream("720p30", "1280x720", 30)
	p480 := stream("480p", "854x480", 30)
	p1440 := stream("1440p", "2560x1440", 60)

	tests := []struct {
		name      string
		streams   []model.StreamDescriptor
		pref      model.Preference
		want      string
		wantMatch Match
	}{
		{"empty", nil, model.Preference{}, "", MatchNone},
		{"source picks highest", []model.StreamDescriptor{p720_30, p1440, p1080_60}, model.Preference{Resolution: "source"}, "1440p", MatchSource},
		{"exact resolution and fps", []model.StreamDescriptor{p1080_30, p1080_60, p720_30}, model.Preference{Resolution: "1080p", Framerate: "30"}, "1080p30", MatchExact},
		{"any fps prefers higher fps", []model.StreamDescriptor{p1080_30, p1080_60}, model.Preference{Resolution: "1080p", Framerate: "any"}, "1080p60", MatchExact},
		{"fps mismatch keeps resolution", []model.StreamDescriptor{p1080_30, p720_30}, model.Preference{Resolution: "1080p", Framerate: "60"}, "1080p30", MatchResolution},
		{"next lower", []model.StreamDescriptor{p480, p720_30, p1440}, model.Preference{Resolution: "1080p"}, "720p30", MatchLower},
		{"nothing lower", []model.StreamDescriptor{p1440}, model.Preference{Resolution: "720p"}, "1440p", MatchHighest},
		{"defaults to 1080p any", []model.StreamDescriptor{p720_30, p1080_30}, model.Preference{}, "1080p30", MatchExact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, match := SelectBest(tt.streams, tt.pref)
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, tt.wantMatch, match)
		})
	}
}

func TestSelectBest_UsesNameWhenResolutionUnknown(t *testing.T) {
	a := model.StreamDescriptor{URL: "a", Name: "720p"}
	b := model.StreamDescriptor{URL: "b", Name: "1080p60"}
	got, match := SelectBest([]model.StreamDescriptor{a, b}, model.Preference{Resolution: "1080p", Framerate: "60"})
	assert.Equal(t, "b", got.URL)
	assert.Equal(t, MatchExact, match)
}

func TestSelectBest_KeepsDetectionOrderOnTies(t *testing.T) {
	a := model.StreamDescriptor{URL: "a", Name: "x"}
	b := model.StreamDescriptor{URL: "b", Name: "y"}
	got, _ := SelectBest([]model.StreamDescriptor{a, b}, model.Preference{Resolution: "source"})
	assert.Equal(t, "a", got.URL)
}
