// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build windows

package procgroup

import (
	"os/exec"
	"syscall"
)

// Set leaves the command unchanged; Windows has no process groups to join.
func Set(*exec.Cmd) {}

// Kill terminates the process for SIGKILL. Windows cannot deliver a
// graceful SIGTERM, so that signal is reported as sent and ignored.
func Kill(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd == nil || cmd.Process == nil || sig != syscall.SIGKILL {
		return nil
	}
	return cmd.Process.Kill()
}
