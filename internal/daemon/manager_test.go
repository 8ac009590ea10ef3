// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerRunsHooksInReverseOrder(t *testing.T) {
	m := NewManager(0)
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		m.RegisterShutdownHook(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"third", "second", "first"}, order)

	// second call is a no-op
	require.NoError(t, m.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestManagerCollectsHookErrors(t *testing.T) {
	m := NewManager(0)
	boom := errors.New("boom")
	ran := false
	m.RegisterShutdownHook("ok", func(context.Context) error { ran = true; return nil })
	m.RegisterShutdownHook("bad", func(context.Context) error { return boom })

	err := m.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "later hooks still run after a failure")
}

func TestManagerDetachesFromCancelledContext(t *testing.T) {
	m := NewManager(0)
	var hookErr error
	m.RegisterShutdownHook("ctx", func(ctx context.Context) error {
		hookErr = ctx.Err()
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.NoError(t, hookErr)
}
