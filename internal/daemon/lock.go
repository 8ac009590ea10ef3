// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFile = "streamcap.lock"

// InstanceLock guards a data directory against a second daemon.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes the lock in dataDir or returns ErrAlreadyRunning.
func AcquireInstanceLock(dataDir string) (*InstanceLock, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	l := flock.New(filepath.Join(dataDir, lockFile))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{lock: l}, nil
}

// Release drops the lock.
func (l *InstanceLock) Release() error {
	return l.lock.Unlock()
}
