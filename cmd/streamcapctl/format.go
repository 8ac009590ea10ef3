// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func relTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return humanize.Time(*t)
}

func byteSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// colorState highlights terminal output only.
func colorState(cmd *cobra.Command, state string) string {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return state
	}
	switch state {
	case "DOWNLOADING", "COMPLETED", "active", "download_started", "completed":
		return "\x1b[32m" + state + "\x1b[0m"
	case "FAILED", "error":
		return "\x1b[31m" + state + "\x1b[0m"
	case "AWAITING_SELECTION":
		return "\x1b[33m" + state + "\x1b[0m"
	}
	return state
}
