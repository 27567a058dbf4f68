// SPDX-License-Identifier: MPL-2.0

// Package journal persists lifecycle transitions to SQLite so that the
// history of loads, failures and toggles survives restarts.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/modhost/modhost/internal/lifecycle"
	"github.com/modhost/modhost/pkg/module"

	_ "github.com/mattn/go-sqlite3"
)

const defaultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	module TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS transitions_module ON transitions (module, id);`

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

type (
	// Journal is a lifecycle.Recorder backed by a SQLite database.
	Journal struct {
		db     *sql.DB
		path   string
		closed atomic.Bool
	}

	// Query filters History. The zero value returns the latest entries of
	// every module.
	Query struct {
		Module module.ID
		Action lifecycle.Action
		// Limit caps the number of entries; zero means 50.
		Limit int
	}
)

var _ lifecycle.Recorder = (*Journal)(nil)

// Open opens or creates the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// A single connection serialises writers and keeps the WAL pragma in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("enable WAL on journal %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Record appends t.
func (j *Journal) Record(ctx context.Context, t lifecycle.Transition) error {
	if j.closed.Load() {
		return fmt.Errorf("record transition: %w", ErrClosed)
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO transitions (module, action, detail, at) VALUES (?, ?, ?, ?)`,
		string(t.Module), string(t.Action), t.Detail, t.At.UnixNano())
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// History returns matching transitions, newest first.
func (j *Journal) History(ctx context.Context, q Query) ([]lifecycle.Transition, error) {
	if j.closed.Load() {
		return nil, fmt.Errorf("query history: %w", ErrClosed)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	query := `SELECT module, action, detail, at FROM transitions WHERE 1 = 1`
	var args []any
	if q.Module != "" {
		query += ` AND module = ?`
		args = append(args, string(q.Module))
	}
	if q.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(q.Action))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []lifecycle.Transition
	for rows.Next() {
		var (
			t              lifecycle.Transition
			id, action, dt string
			at             int64
		)
		if err := rows.Scan(&id, &action, &dt, &at); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		t.Module = module.ID(id)
		t.Action = lifecycle.Action(action)
		t.Detail = dt
		t.At = time.Unix(0, at)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Prune deletes entries recorded before cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM transitions WHERE at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. Closing twice is a no-op.
func (j *Journal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	return j.db.Close()
}
