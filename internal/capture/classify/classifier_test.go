// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package classify

import (
	"testing"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_DenylistRejects(t *testing.T) {
	c := New([]string{"ads"}, nil)

	_, err := c.Classify(model.Candidate{URL: "https://cdn.example.com/ads/track.m3u8"})
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "denylisted")
}

func TestClassify_DenylistIsCaseInsensitive(t *testing.T) {
	c := New([]string{"  DoubleClick "}, nil)
	_, err := c.Classify(model.Candidate{URL: "https://ad.doubleclick.net/x.mp4"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, []string{"doubleclick"}, c.Denylist())
}

func TestClassify_Rules(t *testing.T) {
	c := New(nil, nil)
	tests := []struct {
		name string
		cand model.Candidate
		want model.Protocol
	}{
		{"hls by extension", model.Candidate{URL: "https://cdn.example.com/live/index.m3u8?token=abc"}, model.ProtocolHLS},
		{"hls by mime", model.Candidate{URL: "https://cdn.example.com/playlist", MimeType: "application/vnd.apple.mpegurl; charset=utf-8"}, model.ProtocolHLS},
		{"hls by legacy mime", model.Candidate{URL: "https://cdn.example.com/p", MimeType: "application/x-mpegURL"}, model.ProtocolHLS},
		{"dash by extension", model.Candidate{URL: "https://cdn.example.com/manifest.mpd"}, model.ProtocolDASH},
		{"dash by mime", model.Candidate{URL: "https://cdn.example.com/m", MimeType: "application/dash+xml"}, model.ProtocolDASH},
		{"progressive mp4", model.Candidate{URL: "https://cdn.example.com/clip.MP4"}, model.ProtocolProgressive},
		{"progressive segment", model.Candidate{URL: "https://cdn.example.com/seg/001.ts"}, model.ProtocolProgressive},
		{"progressive by mime", model.Candidate{URL: "https://cdn.example.com/v", MimeType: "video/webm"}, model.ProtocolProgressive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Classify(tt.cand)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Protocol)
			assert.Equal(t, tt.cand.URL, d.URL)
		})
	}
}

func TestClassify_RejectsNonStreams(t *testing.T) {
	c := New(nil, nil)
	for _, u := range []string{
		"https://cdn.example.com/app.js",
		"https://cdn.example.com/image.png",
		"https://cdn.example.com/track.m3u8.js",
		"not a url",
	} {
		_, err := c.Classify(model.Candidate{URL: u})
		assert.ErrorIs(t, err, ErrRejected, u)
	}
}

func TestClassify_QueryIgnoredForExtension(t *testing.T) {
	c := New(nil, nil)
	_, err := c.Classify(model.Candidate{URL: "https://cdn.example.com/api?file=a.m3u8"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClassify_NameAndTimestamp(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	c := New(nil, fake)

	d, err := c.Classify(model.Candidate{
		URL:     "https://cdn.example.com/live/index.m3u8?token=1",
		Headers: map[string]string{"Referer": "https://example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cdn.example.com/live/index.m3u8", d.Name)
	assert.Equal(t, fake.Now(), d.DiscoveredAt)
	assert.Equal(t, "https://example.com", d.Headers["Referer"])

	at := fake.Now().Add(-time.Minute)
	d, err = c.Classify(model.Candidate{URL: "https://cdn.example.com/a.mp4", Timestamp: at})
	require.NoError(t, err)
	assert.Equal(t, at, d.DiscoveredAt)
}

func TestSetDenylist_HotSwap(t *testing.T) {
	c := New(nil, nil)
	cand := model.Candidate{URL: "https://tracker.example.com/pixel.mp4"}

	_, err := c.Classify(cand)
	require.NoError(t, err)

	c.SetDenylist([]string{"tracker"})
	_, err = c.Classify(cand)
	assert.ErrorIs(t, err, ErrRejected)
}
