// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/google/renameio/v2"
)

// Metadata is written next to a finished recording as <output>.json.
type Metadata struct {
	SessionID       string    `json:"sessionId"`
	SourceURL       string    `json:"sourceUrl"`
	StreamName      string    `json:"streamName,omitempty"`
	Resolution      string    `json:"resolution,omitempty"`
	Framerate       float64   `json:"framerate,omitempty"`
	Codecs          string    `json:"codecs,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	BytesWritten    int64     `json:"bytesWritten"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// SidecarPath returns the metadata path for an output file.
func SidecarPath(outputPath string) string { return outputPath + ".json" }

func writeSidecar(job model.Job, snap model.JobSnapshot) error {
	meta := Metadata{
		SessionID:       job.ID,
		SourceURL:       job.SourceURL,
		StreamName:      job.Stream.Name,
		Resolution:      job.Stream.Resolution,
		Framerate:       job.Stream.Framerate,
		Codecs:          job.Stream.Codecs,
		StartedAt:       snap.StartedAt,
		BytesWritten:    snap.BytesWritten,
		DurationSeconds: snap.DurationSeconds,
	}
	if snap.FinishedAt != nil {
		meta.FinishedAt = *snap.FinishedAt
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := renameio.WriteFile(SidecarPath(job.OutputPath), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
