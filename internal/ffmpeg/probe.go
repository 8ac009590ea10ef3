// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ProbeInfo is the video stream metadata reported by ffprobe.
type ProbeInfo struct {
	Width  int
	Height int
	FPS    float64
	Codec  string
}

// Resolution formats the probed size as "WxH".
func (p ProbeInfo) Resolution() string {
	if p.Width <= 0 || p.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

type probeData struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// commandRunner returns stdout and stderr of a finished command.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	// #nosec G204 - binary comes from config; the url is passed as a single argument
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	return out, stderr.Bytes(), err
}

// Prober runs ffprobe against stream URLs.
type Prober struct {
	Binary  string
	Timeout time.Duration
	run     commandRunner
}

// NewProber returns a Prober using the given ffprobe binary.
func NewProber(binary string, timeout time.Duration) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Prober{Binary: binary, Timeout: timeout, run: execRunner}
}

// Probe executes ffprobe and returns the first video stream's metadata.
func (p *Prober) Probe(ctx context.Context, streamURL string, headers map[string]string) (ProbeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := []string{"-v", "error", "-print_format", "json", "-show_streams"}
	if h := HeaderArg(headers); h != "" {
		args = append(args, "-headers", h)
	}
	args = append(args, streamURL)

	out, stderr, err := p.run(ctx, p.Binary, args...)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, truncate(string(stderr), 4096))
	}

	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return ProbeInfo{}, fmt.Errorf("json decode: %w", err)
	}
	for _, s := range data.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := ProbeInfo{Width: s.Width, Height: s.Height, Codec: s.CodecName}
		info.FPS = ParseRate(s.RFrameRate)
		if info.FPS == 0 {
			info.FPS = ParseRate(s.AvgFrameRate)
		}
		return info, nil
	}
	return ProbeInfo{}, errors.New("ffprobe returned no video stream")
}

// ParseRate parses ffprobe fractions like "30000/1001".
func ParseRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

// HeaderArg renders headers in the CRLF-joined form of ffmpeg's -headers option.
func HeaderArg(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\r\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
