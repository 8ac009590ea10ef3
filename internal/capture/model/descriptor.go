// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Candidate is a raw network observation reported by the browser driver.
type Candidate struct {
	URL       string
	MimeType  string
	Headers   map[string]string
	Timestamp time.Time
}

// StreamDescriptor is a classified network candidate. Treat as immutable.
type StreamDescriptor struct {
	URL          string    `json:"url"`
	Protocol     Protocol  `json:"protocol"`
	Name         string    `json:"name"`
	Resolution   string    `json:"resolution,omitempty"` // "WxH"
	Framerate    float64   `json:"framerate,omitempty"`
	Bandwidth    int64     `json:"bandwidth,omitempty"`
	Codecs       string    `json:"codecs,omitempty"`
	DiscoveredAt time.Time `json:"discoveredAt"`

	// Request headers (cookies, referer) observed with the candidate.
	Headers map[string]string `json:"-"`
}

// StreamKey identifies a descriptor for deduplication.
type StreamKey struct {
	Name       string
	Resolution string
	Framerate  float64
}

// Key returns the deduplication key of d.
func (d StreamDescriptor) Key() StreamKey {
	return StreamKey{Name: d.Name, Resolution: d.Resolution, Framerate: d.Framerate}
}

// qualityTag matches names like "720p" or "1080p60".
var qualityTag = regexp.MustCompile(`(\d{3,4})p(\d{2,3})?`)

// Height returns the vertical resolution, falling back to a "<n>p" hint in
// the name and finally to a bandwidth-derived rank. Zero means unknown.
func (d StreamDescriptor) Height() int {
	if _, h, ok := ParseResolution(d.Resolution); ok {
		return h
	}
	if m := qualityTag.FindStringSubmatch(strings.ToLower(d.Name)); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil {
			return h
		}
	}
	return int(d.Bandwidth / 1_000_000)
}

// FPS returns the framerate, falling back to a "p<n>" hint in the name.
func (d StreamDescriptor) FPS() float64 {
	if d.Framerate > 0 {
		return float64(int(d.Framerate))
	}
	if m := qualityTag.FindStringSubmatch(strings.ToLower(d.Name)); m != nil && m[2] != "" {
		if f, err := strconv.Atoi(m[2]); err == nil {
			return float64(f)
		}
	}
	return 0
}

// Label is a short human-readable quality tag such as "1080p60".
func (d StreamDescriptor) Label() string {
	h := d.Height()
	if h == 0 {
		return d.Name
	}
	if f := d.FPS(); f > 0 {
		return fmt.Sprintf("%dp%d", h, int(f))
	}
	return fmt.Sprintf("%dp", h)
}

// ParseResolution parses "1920x1080".
func ParseResolution(s string) (w, h int, ok bool) {
	ws, hs, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		return 0, 0, false
	}
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}
