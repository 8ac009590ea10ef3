// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package ffmpeg

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestExecutor_CapturesProgressAndDiagnostics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewExecutor("sh", zerolog.Nop())
	p, err := e.Start(context.Background(), []string{"-c",
		`printf 'frame=1 size=2kB time=00:00:03.50 speed=1.0x\r' >&2; echo 'Connection refused' >&2; exit 3`})
	require.NoError(t, err)

	err = p.Wait()
	require.Error(t, err)
	assert.Equal(t, 3, p.ExitCode())
	assert.InDelta(t, 3.5, p.Progress().OutTimeSeconds, 0.001)
	assert.EqualValues(t, 2048, p.Progress().SizeBytes)
	assert.Equal(t, []string{"Connection refused"}, p.Diagnostics(5))
	assert.False(t, p.Stopped())
}

func TestProcess_StopTerminatesGroup(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewExecutor("sh", zerolog.Nop())
	p, err := e.Start(context.Background(), []string{"-c", "sleep 30"})
	require.NoError(t, err)
	require.Positive(t, p.PID())

	require.NoError(t, p.Stop(time.Second))
	assert.True(t, p.Stopped())
	<-p.Done()
	assert.Error(t, p.Wait())

	// A second stop on an exited process is a no-op.
	assert.NoError(t, p.Stop(time.Second))
}

func TestExecutor_StartFailure(t *testing.T) {
	e := NewExecutor("/nonexistent/ffmpeg", zerolog.Nop())
	_, err := e.Start(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewExecutor("sh", zerolog.Nop()).Start(ctx, []string{"-c", "true"})
	assert.ErrorIs(t, err, context.Canceled)
}
