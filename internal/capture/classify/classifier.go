// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package classify turns raw network candidates into typed stream
// descriptors and enriches them with resolution and framerate.
package classify

import (
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/clock"
)

// ErrRejected marks a candidate that is not a capturable stream.
var ErrRejected = errors.New("candidate rejected")

var (
	hlsMimes  = []string{"application/vnd.apple.mpegurl", "application/x-mpegurl", "audio/mpegurl", "audio/x-mpegurl"}
	dashMimes = []string{"application/dash+xml"}

	progressiveExts = map[string]struct{}{".mp4": {}, ".ts": {}, ".m4s": {}}
)

// Classifier applies the denylist and protocol rules. It is safe for
// concurrent use; the denylist can be swapped at runtime.
type Classifier struct {
	deny  atomic.Pointer[[]string]
	clock clock.Clock
}

// New returns a Classifier rejecting URLs that contain any denylist entry.
func New(denylist []string, clk clock.Clock) *Classifier {
	c := &Classifier{clock: clock.OrReal(clk)}
	c.SetDenylist(denylist)
	return c
}

// SetDenylist replaces the denylist. Entries are matched case-insensitively.
func (c *Classifier) SetDenylist(list []string) {
	norm := make([]string, 0, len(list))
	for _, e := range list {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			norm = append(norm, e)
		}
	}
	c.deny.Store(&norm)
}

// Denylist returns a copy of the active denylist.
func (c *Classifier) Denylist() []string {
	return append([]string(nil), (*c.deny.Load())...)
}

// Classify maps a candidate to a descriptor or returns an error wrapping
// ErrRejected. The first matching rule wins.
func (c *Classifier) Classify(cand model.Candidate) (model.StreamDescriptor, error) {
	lowered := strings.ToLower(cand.URL)
	for _, entry := range *c.deny.Load() {
		if strings.Contains(lowered, entry) {
			return model.StreamDescriptor{}, fmt.Errorf("%w: denylisted (%q)", ErrRejected, entry)
		}
	}

	u, err := url.Parse(cand.URL)
	if err != nil || u.Host == "" {
		return model.StreamDescriptor{}, fmt.Errorf("%w: unparsable url", ErrRejected)
	}
	ext := strings.ToLower(path.Ext(u.Path))
	mt := mediaType(cand.MimeType)

	var proto model.Protocol
	switch {
	case ext == ".m3u8" || oneOf(mt, hlsMimes):
		proto = model.ProtocolHLS
	case ext == ".mpd" || oneOf(mt, dashMimes):
		proto = model.ProtocolDASH
	case hasKey(progressiveExts, ext) || strings.HasPrefix(mt, "video/"):
		proto = model.ProtocolProgressive
	default:
		return model.StreamDescriptor{}, fmt.Errorf("%w: not a stream (ext=%q mime=%q)", ErrRejected, ext, mt)
	}

	at := cand.Timestamp
	if at.IsZero() {
		at = c.clock.Now()
	}
	return model.StreamDescriptor{
		URL:          cand.URL,
		Protocol:     proto,
		Name:         DefaultName(u),
		DiscoveredAt: at,
		Headers:      cand.Headers,
	}, nil
}

// DefaultName labels an unenriched stream by host and path; the query is
// dropped so rotating tokens do not defeat deduplication.
func DefaultName(u *url.URL) string {
	return u.Host + u.Path
}

func mediaType(raw string) string {
	if raw == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
