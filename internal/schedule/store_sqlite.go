// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/streamcap/internal/log"
	"github.com/ManuGH/streamcap/internal/persistence/sqlite"
)

const sqliteSchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	status TEXT NOT NULL,
	next_check_ms INTEGER,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedules_next_check ON schedules(next_check_ms);
`

// SqliteStore keeps schedules as JSON documents in SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// OpenSqliteStore opens or creates the database at path.
func OpenSqliteStore(path string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create schedule store dir: %w", err)
	}
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := sqlite.Migrate(ctx, db, sqliteSchemaVersion, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schedule store: migration failed: %w", err)
	}
	if issues, err := sqlite.QuickCheck(ctx, db); err != nil || issues != nil {
		logger := log.WithComponent("schedule.store")
		logger.Warn().Err(err).
			Str(log.FieldPath, path).
			Str("issues", strings.Join(issues, "; ")).
			Msg("schedule database failed integrity check")
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) List(ctx context.Context) ([]Schedule, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT data FROM schedules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Schedule
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var sch Schedule
		if err := json.Unmarshal(data, &sch); err != nil {
			return nil, fmt.Errorf("decode schedule: %w", err)
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Get(ctx context.Context, id string) (Schedule, error) {
	var data []byte
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM schedules WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	if err != nil {
		return Schedule{}, err
	}
	var sch Schedule
	if err := json.Unmarshal(data, &sch); err != nil {
		return Schedule{}, fmt.Errorf("decode schedule %s: %w", id, err)
	}
	return sch, nil
}

func (s *SqliteStore) Put(ctx context.Context, sch Schedule) error {
	data, err := json.Marshal(sch)
	if err != nil {
		return err
	}
	var next sql.NullInt64
	if sch.NextCheck != nil {
		next = sql.NullInt64{Int64: sch.NextCheck.UnixMilli(), Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO schedules (id, data, status, next_check_ms, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		data = excluded.data,
		status = excluded.status,
		next_check_ms = excluded.next_check_ms,
		updated_at = excluded.updated_at
	`, sch.ID, data, string(sch.Status), next, sch.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
