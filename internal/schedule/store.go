// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Store persists schedules. Get and Delete of an unknown id return an error
// wrapping ErrScheduleNotFound.
type Store interface {
	List(ctx context.Context) ([]Schedule, error)
	Get(ctx context.Context, id string) (Schedule, error)
	Put(ctx context.Context, s Schedule) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// OpenStore creates a Store for backend. An empty backend selects sqlite,
// or memory when dir is empty.
func OpenStore(backend, dir string) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return OpenSqliteStore(filepath.Join(dir, "schedules.sqlite"))
	case "badger":
		if dir == "" {
			return nil, fmt.Errorf("badger schedule store needs a data directory")
		}
		return OpenBadgerStore(filepath.Join(dir, "schedules.badger"))
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown schedule store backend: %s (supported: sqlite, badger, memory)", backend)
	}
}

// MemoryStore keeps schedules in a map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Schedule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Schedule)}
}

func (m *MemoryStore) List(context.Context) ([]Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Schedule, 0, len(m.items))
	for _, s := range m.items {
		out = append(out, s.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[id]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return s.clone(), nil
}

func (m *MemoryStore) Put(_ context.Context, s Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	delete(m.items, id)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
