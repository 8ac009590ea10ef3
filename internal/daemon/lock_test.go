// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLock(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireInstanceLock(dir)
	require.NoError(t, err)

	_, err = AcquireInstanceLock(dir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, first.Release())
	again, err := AcquireInstanceLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
