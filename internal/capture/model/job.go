// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

// JobState is the lifecycle of one conversion process invocation.
type JobState string

const (
	JobStarting  JobState = "STARTING"
	JobRunning   JobState = "RUNNING"
	JobSucceeded JobState = "SUCCEEDED"
	JobFailed    JobState = "FAILED"
	JobStopped   JobState = "STOPPED"
)

// IsTerminal returns true once the process has exited or failed to spawn.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobStopped:
		return true
	}
	return false
}

// Job is a request to convert SourceURL into OutputPath. ID equals the owning session id.
type Job struct {
	ID         string
	SourceURL  string
	OutputPath string
	Headers    map[string]string
	Stream     StreamDescriptor
}

// JobSnapshot is a sampled, read-only view of a download job.
type JobSnapshot struct {
	ID              string     `json:"id"`
	SourceURL       string     `json:"sourceUrl"`
	OutputPath      string     `json:"outputPath"`
	State           JobState   `json:"state"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	BytesWritten    int64      `json:"bytesWritten"`
	DurationSeconds float64    `json:"durationSeconds"`
	ExitCode        *int       `json:"exitCode,omitempty"`
	Diagnostic      string     `json:"diagnostic,omitempty"`
	PID             int        `json:"pid,omitempty"`
	RSSBytes        uint64     `json:"rssBytes,omitempty"`
	CPUPercent      float64    `json:"cpuPercent,omitempty"`
}
