// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_ExclusiveAcquire(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	p := NewProfile(dir)

	require.NoError(t, p.Acquire())
	assert.ErrorIs(t, p.Acquire(), ErrProfileBusy)

	other := NewProfile(dir)
	assert.ErrorIs(t, other.Acquire(), ErrProfileBusy)

	require.NoError(t, p.Release())
	require.NoError(t, other.Acquire())
	require.NoError(t, other.Release())
}

func TestProfile_Clear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profile")
	p := NewProfile(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Default"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Default", "Cookies"), []byte("x"), 0o600))

	require.NoError(t, p.Acquire())
	assert.ErrorIs(t, p.Clear(), ErrProfileBusy)
	require.NoError(t, p.Release())

	require.NoError(t, p.Clear())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// the lock is released again afterwards
	require.NoError(t, p.Acquire())
	require.NoError(t, p.Release())
}
