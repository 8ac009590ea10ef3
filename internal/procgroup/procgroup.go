// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts child processes in their own process group so
// that ffmpeg and the browser can be stopped together with their children.
package procgroup

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/streamcap/internal/metrics"
)

// Terminate stops a process group started with Set.
// It sends SIGTERM, waits for the process to exit (via waitCh), and if it
// doesn't exit within grace, sends SIGKILL. It consumes and returns the
// error from waitCh. Safe to call on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.IncProcTerminate("SIGTERM", signalOutcome(Kill(cmd, syscall.SIGTERM)))

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		metrics.IncProcWait(waitOutcome("", err))
		return err
	case <-timer.C:
		metrics.IncProcTerminate("SIGKILL", signalOutcome(Kill(cmd, syscall.SIGKILL)))
		// SIGKILL frees a blocked process; always drain waitCh.
		err := <-waitCh
		metrics.IncProcWait(waitOutcome("forced_", err))
		return err
	}
}

func signalOutcome(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, syscall.ESRCH):
		return "esrch"
	default:
		return "error"
	}
}

func waitOutcome(prefix string, err error) string {
	if err == nil {
		return prefix + "exit0"
	}
	return prefix + "exit_nonzero"
}
