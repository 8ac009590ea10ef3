// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// Record is the mutable session state. Only the owning state machine
// goroutine writes it; everyone else reads a Snapshot.
type Record struct {
	ID       string
	Request  LaunchRequest
	State    State
	Reason   ReasonCode
	Detail   string
	Detected []StreamDescriptor
	Selected *StreamDescriptor
	Job      *JobSnapshot

	// Selection and job of a session that ended without completing.
	LastSelected *StreamDescriptor
	LastJob      *JobSnapshot

	Thumbnail []byte
	KeptOpen  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

// NewRecord returns a record in the Launching state.
func NewRecord(id string, req LaunchRequest, now time.Time) *Record {
	return &Record{
		ID:        id,
		Request:   req,
		State:     StateLaunching,
		Reason:    RNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddStream appends d unless a descriptor with the same key is known.
// It reports whether d was added.
func (r *Record) AddStream(d StreamDescriptor) bool {
	k := d.Key()
	for _, existing := range r.Detected {
		if existing.Key() == k {
			return false
		}
	}
	r.Detected = append(r.Detected, d)
	return true
}

// FindStream returns the detected descriptor with the given URL.
func (r *Record) FindStream(url string) (StreamDescriptor, bool) {
	for _, d := range r.Detected {
		if d.URL == url {
			return d, true
		}
	}
	return StreamDescriptor{}, false
}

// StreamView is the polling-contract view of a detected stream.
type StreamView struct {
	Name       string  `json:"name"`
	Resolution string  `json:"resolution"`
	Framerate  float64 `json:"framerate"`
	URL        string  `json:"url"`
}

// ErrorInfo is attached to snapshots of failed sessions.
type ErrorInfo struct {
	Reason  ReasonCode `json:"reason"`
	Message string     `json:"message,omitempty"`
}

// Snapshot is the immutable status published on every transition.
type Snapshot struct {
	ID                string       `json:"id"`
	State             State        `json:"state"`
	URL               string       `json:"url"`
	ScheduleID        string       `json:"scheduleId,omitempty"`
	DetectedStreams   []StreamView `json:"detectedStreams"`
	AwaitingSelection bool         `json:"awaitingSelection"`
	SelectedStream    *StreamView  `json:"selectedStream"`
	DownloadStarted   bool         `json:"downloadStarted"`
	Thumbnail         []byte       `json:"thumbnail,omitempty"`
	Download          *JobSnapshot `json:"download,omitempty"`
	Error             *ErrorInfo   `json:"error,omitempty"`
	KeptOpen          bool         `json:"keptOpen"`
	CreatedAt         time.Time    `json:"createdAt"`
	ClosedAt          *time.Time   `json:"closedAt,omitempty"`
}

func viewOf(d StreamDescriptor) StreamView {
	return StreamView{Name: d.Name, Resolution: d.Resolution, Framerate: d.Framerate, URL: d.URL}
}

// Snapshot copies the record into its published form.
func (r *Record) Snapshot() *Snapshot {
	s := &Snapshot{
		ID:                r.ID,
		State:             r.State,
		URL:               r.Request.URL,
		ScheduleID:        r.Request.ScheduleID,
		DetectedStreams:   make([]StreamView, 0, len(r.Detected)),
		AwaitingSelection: r.State == StateAwaitingSelection,
		DownloadStarted:   r.State.HoldsSelection(),
		KeptOpen:          r.KeptOpen,
		CreatedAt:         r.CreatedAt,
	}
	for _, d := range r.Detected {
		s.DetectedStreams = append(s.DetectedStreams, viewOf(d))
	}
	if r.Selected != nil {
		v := viewOf(*r.Selected)
		s.SelectedStream = &v
	}
	if len(r.Thumbnail) > 0 {
		s.Thumbnail = append([]byte(nil), r.Thumbnail...)
	}
	switch {
	case r.Job != nil:
		j := *r.Job
		s.Download = &j
	case r.LastJob != nil:
		j := *r.LastJob
		s.Download = &j
	}
	if r.State == StateFailed || r.State == StateCancelled {
		s.Error = &ErrorInfo{Reason: r.Reason, Message: r.Detail}
	}
	if r.ClosedAt != nil {
		t := *r.ClosedAt
		s.ClosedAt = &t
	}
	return s
}
