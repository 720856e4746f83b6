// Package journal keeps a durable history of session outcomes in SQLite.
// It is an audit trail only: nothing in it is ever replayed.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/logic/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	status      TEXT NOT NULL,
	printed     INTEGER NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL DEFAULT '',
	photo_path  TEXT NOT NULL DEFAULT '',
	qr_url      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sessions_started ON sessions(started_at);
`

// Journal is the session history store.
type Journal struct {
	db *sql.DB
}

// Open opens (and creates) the journal at path. ":memory:" is accepted.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	debug.Verbose("Journal opened: %s", path)
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores o. Store errors are logged, never returned: the journal
// must not change a session's outcome.
func (j *Journal) Record(ctx context.Context, o session.Outcome) {
	if err := j.Insert(ctx, o); err != nil {
		debug.Warn("Journal: %v", err)
	}
}

// Insert stores o, replacing any row with the same ID.
func (j *Journal) Insert(ctx context.Context, o session.Outcome) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(id, source, started_at, finished_at, status, printed, reason, photo_path, qr_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Source,
		o.Started.UTC().Format(time.RFC3339Nano),
		o.Finished.UTC().Format(time.RFC3339Nano),
		o.Status.String(), o.Printed, o.Reason, o.PhotoPath, o.QRURL,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", o.ID, err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]session.Outcome, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, source, started_at, finished_at, status, printed, reason, photo_path, qr_url
		FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Outcome
	for rows.Next() {
		var (
			o                 session.Outcome
			started, finished string
			status            string
		)
		if err := rows.Scan(&o.ID, &o.Source, &started, &finished, &status, &o.Printed, &o.Reason, &o.PhotoPath, &o.QRURL); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if o.Status, err = session.ParseStatus(status); err != nil {
			return nil, err
		}
		if o.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("session %s: started_at: %w", o.ID, err)
		}
		if o.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("session %s: finished_at: %w", o.ID, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Counts summarizes the history.
type Counts struct {
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
	Printed   int `json:"printed"`
}

// Counts returns the number of sessions per status.
func (j *Journal) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := j.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(status = 'skipped'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(status = 'completed'), 0),
			COALESCE(SUM(printed), 0)
		FROM sessions`).Scan(&c.Skipped, &c.Failed, &c.Completed, &c.Printed)
	if err != nil {
		return Counts{}, fmt.Errorf("count sessions: %w", err)
	}
	return c, nil
}
