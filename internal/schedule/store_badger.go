// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerPrefix = "sched:"

// BadgerStore keeps schedules under "sched:<id>" as JSON.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens the badger directory at path. An empty path keeps
// everything in memory.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger schedule store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) List(_ context.Context) ([]Schedule, error) {
	var out []Schedule
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(badgerPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sch Schedule
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sch)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, sch)
		}
		return nil
	})
	return out, err
}

func (s *BadgerStore) Get(_ context.Context, id string) (Schedule, error) {
	var sch Schedule
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sch)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return sch, err
}

func (s *BadgerStore) Put(_ context.Context, sch Schedule) error {
	buf, err := json.Marshal(sch)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerPrefix+sch.ID), buf)
	})
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	key := []byte(badgerPrefix + id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return err
}
