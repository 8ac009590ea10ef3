// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	ResolutionSource = "source"
	FramerateAny     = "any"
	DefaultFormat    = "mp4"
)

// Preference is the requested stream quality, e.g. {"1080p", "60"} or {"source", "any"}.
type Preference struct {
	Resolution string `json:"resolution"`
	Framerate  string `json:"framerate"`
}

// Normalize fills defaults and lower-cases the values.
func (p Preference) Normalize() Preference {
	p.Resolution = strings.ToLower(strings.TrimSpace(p.Resolution))
	p.Framerate = strings.ToLower(strings.TrimSpace(p.Framerate))
	if p.Resolution == "" {
		p.Resolution = "1080p"
	}
	if p.Framerate == "" {
		p.Framerate = FramerateAny
	}
	return p
}

// IsSource reports whether the highest available quality was requested.
func (p Preference) IsSource() bool {
	return p.Normalize().Resolution == ResolutionSource
}

// TargetHeight returns the requested height, 1080 when unparsable.
func (p Preference) TargetHeight() int {
	h, err := strconv.Atoi(strings.TrimSuffix(p.Normalize().Resolution, "p"))
	if err != nil || h <= 0 {
		return 1080
	}
	return h
}

// TargetFPS returns the requested framerate, or 0 for "any".
func (p Preference) TargetFPS() float64 {
	f, err := strconv.ParseFloat(p.Normalize().Framerate, 64)
	if err != nil || f <= 0 {
		return 0
	}
	return f
}

// LaunchRequest asks for a new capture session.
type LaunchRequest struct {
	URL          string     `json:"url"`
	Preference   Preference `json:"preference"`
	Format       string     `json:"format"`
	Filename     string     `json:"filename,omitempty"`
	AutoDownload bool       `json:"autoDownload"`
	ScheduleID   string     `json:"scheduleId,omitempty"`
}

// Validate checks the request and fills defaults.
func (r *LaunchRequest) Validate() error {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) url", ErrInvalidRequest)
	}
	r.URL = u.String()
	r.Preference = r.Preference.Normalize()
	r.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(r.Format)), ".")
	if r.Format == "" {
		r.Format = DefaultFormat
	}
	switch r.Format {
	case "mp4", "mkv", "ts", "mov":
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrInvalidRequest, r.Format)
	}
	return nil
}
