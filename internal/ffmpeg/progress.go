// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// Progress is the latest sample parsed from ffmpeg's status line.
type Progress struct {
	OutTimeSeconds float64
	SizeBytes      int64
	Speed          float64
}

var (
	timeRe  = regexp.MustCompile(`time=\s*(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)
	sizeRe  = regexp.MustCompile(`size=\s*(\d+)\s*(kB|KiB|mB|MiB|B)?`)
	speedRe = regexp.MustCompile(`speed=\s*([\d.]+)x`)
)

// ParseProgress extracts time, size and speed from a status line. ok is
// false when the line carries none of them.
func ParseProgress(line string, prev Progress) (Progress, bool) {
	p := prev
	ok := false
	if m := timeRe.FindStringSubmatch(line); m != nil {
		h, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		s, _ := strconv.ParseFloat(m[3], 64)
		if h >= 0 {
			p.OutTimeSeconds = float64(h*3600+mm*60) + s
			ok = true
		}
	}
	if m := sizeRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.ParseInt(m[1], 10, 64)
		switch strings.ToLower(m[2]) {
		case "kb", "kib":
			n *= 1024
		case "mb", "mib":
			n *= 1024 * 1024
		}
		p.SizeBytes = n
		ok = true
	}
	if m := speedRe.FindStringSubmatch(line); m != nil {
		p.Speed, _ = strconv.ParseFloat(m[1], 64)
		ok = true
	}
	return p, ok
}

// scanStatusLines splits on '\n' and on the bare '\r' ffmpeg uses to
// redraw its status line.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
