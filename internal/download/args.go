// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"github.com/ManuGH/streamcap/internal/capture/model"
	"github.com/ManuGH/streamcap/internal/ffmpeg"
)

// BuildArgs returns the ffmpeg arguments for a stream-copy download.
func BuildArgs(job model.Job) []string {
	args := []string{"-hide_banner", "-nostdin"}
	if h := ffmpeg.HeaderArg(job.Headers); h != "" {
		args = append(args, "-headers", h)
	}
	return append(args,
		"-i", job.SourceURL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-y", job.OutputPath,
	)
}
