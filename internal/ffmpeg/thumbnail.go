// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Thumbnailer grabs a single JPEG frame from a stream.
type Thumbnailer struct {
	Binary  string
	Timeout time.Duration
	Offset  string
	run     commandRunner
}

// NewThumbnailer returns a Thumbnailer seeking two seconds into the stream.
func NewThumbnailer(binary string) *Thumbnailer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Thumbnailer{Binary: binary, Timeout: 15 * time.Second, Offset: "00:00:02", run: execRunner}
}

// Grab returns JPEG bytes of one frame.
func (t *Thumbnailer) Grab(ctx context.Context, streamURL string, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}
	if h := HeaderArg(headers); h != "" {
		args = append(args, "-headers", h)
	}
	args = append(args,
		"-i", streamURL,
		"-ss", t.Offset,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	)

	out, stderr, err := t.run(ctx, t.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("thumbnail: %w (stderr: %s)", err, truncate(string(stderr), 512))
	}
	if len(out) == 0 {
		return nil, errors.New("thumbnail: empty output")
	}
	return out, nil
}
