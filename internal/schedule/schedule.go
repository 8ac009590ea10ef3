// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package schedule launches capture sessions for one-time, daily and weekly
// time windows.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
)

var (
	ErrScheduleConfig   = errors.New("invalid schedule")
	ErrScheduleNotFound = errors.New("schedule not found")
)

// Status is the runtime cursor of a schedule.
type Status string

const (
	StatusPending         Status = "pending"
	StatusActive          Status = "active"
	StatusDownloadStarted Status = "download_started"
	StatusCompleted       Status = "completed"
	StatusExpired         Status = "expired"
	StatusError           Status = "error"
)

// AllStatuses lists every status, for metrics.
var AllStatuses = []Status{
	StatusPending, StatusActive, StatusDownloadStarted,
	StatusCompleted, StatusExpired, StatusError,
}

// IsTerminal reports whether the engine no longer evaluates the schedule.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusExpired, StatusError:
		return true
	}
	return false
}

// Window is one of OneTime, Daily or WeeklyRepeat.
type Window interface {
	Kind() string
}

// OneTime is a single absolute window.
type OneTime struct {
	Start, End time.Time
}

// WeeklyRepeat is an absolute window that moves forward by a week once over.
type WeeklyRepeat struct {
	Start, End time.Time
}

// Daily is a wall-clock window repeated every day. End before Start spans
// midnight.
type Daily struct {
	Start, End ClockTime
}

func (OneTime) Kind() string      { return "one_time" }
func (WeeklyRepeat) Kind() string { return "weekly" }
func (Daily) Kind() string        { return "daily" }

// ClockTime is a time of day with minute precision.
type ClockTime struct {
	Hour, Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: time of day %q must be HH:MM", ErrScheduleConfig, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

func (c ClockTime) minutes() int { return c.Hour*60 + c.Minute }

// Schedule is a recurrence rule plus its runtime cursor.
type Schedule struct {
	ID         string
	Name       string
	URL        string
	Window     Window
	Preference model.Preference
	Format     string

	Status    Status
	NextCheck *time.Time
	LastCheck *time.Time
	// Start of the occurrence Status refers to.
	Occurrence    *time.Time
	LastSessionID string
	LastError     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Request builds the launch request for one occurrence.
func (s *Schedule) Request() model.LaunchRequest {
	return model.LaunchRequest{
		URL:          s.URL,
		Preference:   s.Preference,
		Format:       s.Format,
		AutoDownload: true,
		ScheduleID:   s.ID,
	}
}

// sortKey orders listings by next check, then window start.
func (s *Schedule) sortKey() time.Time {
	if s.NextCheck != nil {
		return *s.NextCheck
	}
	switch w := s.Window.(type) {
	case OneTime:
		return w.Start
	case WeeklyRepeat:
		return w.Start
	case Daily:
		return time.Time{}.Add(time.Duration(w.Start.minutes()) * time.Minute)
	}
	return s.CreatedAt
}

func (s Schedule) clone() Schedule {
	s.NextCheck = cloneTime(s.NextCheck)
	s.LastCheck = cloneTime(s.LastCheck)
	s.Occurrence = cloneTime(s.Occurrence)
	return s
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// Input is the user-editable part of a schedule. Daily windows use HH:MM,
// the others RFC 3339 or "2006-01-02T15:04" in the engine's zone.
type Input struct {
	Name       string `json:"name,omitempty"`
	URL        string `json:"url"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Repeat     bool   `json:"repeat"`
	Daily      bool   `json:"daily"`
	Resolution string `json:"resolution,omitempty"`
	Framerate  string `json:"framerate,omitempty"`
	Format     string `json:"format,omitempty"`
}

// build validates in and fills the user part of s.
func (in Input) build(s *Schedule, loc *time.Location) error {
	req := model.LaunchRequest{
		URL:        in.URL,
		Preference: model.Preference{Resolution: in.Resolution, Framerate: in.Framerate},
		Format:     in.Format,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrScheduleConfig, err)
	}
	w, err := ParseWindow(in.StartTime, in.EndTime, in.Daily, in.Repeat, loc)
	if err != nil {
		return err
	}
	s.URL = req.URL
	s.Name = strings.TrimSpace(in.Name)
	if s.Name == "" {
		s.Name = req.URL
	}
	s.Preference = req.Preference
	s.Format = req.Format
	s.Window = w
	return nil
}

var localLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02 15:04"}

func parseInstant(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date-time", ErrScheduleConfig, v)
}

// ParseWindow builds the window variant. Daily takes precedence over repeat.
func ParseWindow(start, end string, daily, repeat bool, loc *time.Location) (Window, error) {
	if daily {
		st, err := ParseClock(start)
		if err != nil {
			return nil, err
		}
		en, err := ParseClock(end)
		if err != nil {
			return nil, err
		}
		if st == en {
			return nil, fmt.Errorf("%w: daily window start and end are equal", ErrScheduleConfig)
		}
		return Daily{Start: st, End: en}, nil
	}
	st, err := parseInstant(start, loc)
	if err != nil {
		return nil, err
	}
	en, err := parseInstant(end, loc)
	if err != nil {
		return nil, err
	}
	if !en.After(st) {
		return nil, fmt.Errorf("%w: end must be after start", ErrScheduleConfig)
	}
	if repeat {
		if en.Sub(st) >= week {
			return nil, fmt.Errorf("%w: weekly window must be shorter than a week", ErrScheduleConfig)
		}
		return WeeklyRepeat{Start: st, End: en}, nil
	}
	return OneTime{Start: st, End: en}, nil
}

// record is the persisted and API form of a Schedule.
type record struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	StartTime     string     `json:"startTime"`
	EndTime       string     `json:"endTime"`
	Repeat        bool       `json:"repeat"`
	Daily         bool       `json:"daily"`
	Resolution    string     `json:"resolution"`
	Framerate     string     `json:"framerate"`
	Format        string     `json:"format"`
	Status        Status     `json:"status"`
	NextCheck     *time.Time `json:"nextCheck"`
	LastCheck     *time.Time `json:"lastCheck,omitempty"`
	Occurrence    *time.Time `json:"occurrence,omitempty"`
	LastSessionID string     `json:"lastSessionId,omitempty"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	r := record{
		ID:            s.ID,
		Name:          s.Name,
		URL:           s.URL,
		Resolution:    s.Preference.Resolution,
		Framerate:     s.Preference.Framerate,
		Format:        s.Format,
		Status:        s.Status,
		NextCheck:     s.NextCheck,
		LastCheck:     s.LastCheck,
		Occurrence:    s.Occurrence,
		LastSessionID: s.LastSessionID,
		Error:         s.LastError,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	switch w := s.Window.(type) {
	case OneTime:
		r.StartTime, r.EndTime = w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339)
	case WeeklyRepeat:
		r.StartTime, r.EndTime = w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339)
		r.Repeat = true
	case Daily:
		r.StartTime, r.EndTime = w.Start.String(), w.End.String()
		r.Daily = true
	default:
		return nil, fmt.Errorf("schedule %s: unknown window %T", s.ID, s.Window)
	}
	return json.Marshal(r)
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	w, err := ParseWindow(r.StartTime, r.EndTime, r.Daily, r.Repeat, time.UTC)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", r.ID, err)
	}
	*s = Schedule{
		ID:            r.ID,
		Name:          r.Name,
		URL:           r.URL,
		Window:        w,
		Preference:    model.Preference{Resolution: r.Resolution, Framerate: r.Framerate},
		Format:        r.Format,
		Status:        r.Status,
		NextCheck:     r.NextCheck,
		LastCheck:     r.LastCheck,
		Occurrence:    r.Occurrence,
		LastSessionID: r.LastSessionID,
		LastError:     r.Error,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	return nil
}
