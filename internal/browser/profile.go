// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const lockName = ".streamcap.lock"

// Profile is a browser user-data directory guarded by a file lock, so only
// one browser uses it at a time.
type Profile struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewProfile returns a Profile rooted at dir.
func NewProfile(dir string) *Profile {
	return &Profile{dir: dir, lock: flock.New(filepath.Join(filepath.Dir(filepath.Clean(dir)), filepath.Base(dir)+lockName))}
}

// Dir returns the profile directory.
func (p *Profile) Dir() string { return p.dir }

// Acquire takes the lock or returns ErrProfileBusy.
func (p *Profile) Acquire() error {
	if err := os.MkdirAll(p.dir, 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lock.Locked() {
		return ErrProfileBusy
	}
	ok, err := p.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire profile lock: %w", err)
	}
	if !ok {
		return ErrProfileBusy
	}
	return nil
}

// Release drops the lock.
func (p *Profile) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lock.Unlock()
}

// Clear wipes the profile contents (cookies, logins). It fails with
// ErrProfileBusy while a browser is using the profile.
func (p *Profile) Clear() error {
	if err := p.Acquire(); err != nil {
		return err
	}
	defer func() { _ = p.Release() }()

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("read profile dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(p.dir, e.Name())); err != nil {
			return fmt.Errorf("clear profile: %w", err)
		}
	}
	return nil
}
