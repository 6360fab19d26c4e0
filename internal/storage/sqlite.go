package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/guarzo/fbascout/internal/bulk"
	"github.com/guarzo/fbascout/internal/model"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("storage: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    state       TEXT    NOT NULL,
    succeeded   INTEGER NOT NULL DEFAULT 0,
    total       INTEGER NOT NULL DEFAULT 0,
    processed   INTEGER NOT NULL DEFAULT 0,
    cancelled   INTEGER NOT NULL DEFAULT 0,
    reason      TEXT    NOT NULL DEFAULT '',
    profile     TEXT    NOT NULL DEFAULT '{}',
    started_at  TEXT    NOT NULL,
    finished_at TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS run_items (
    run_id     TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position   INTEGER NOT NULL,
    identifier TEXT    NOT NULL,
    asin       TEXT    NOT NULL DEFAULT '',
    status     TEXT    NOT NULL,
    failure    TEXT    NOT NULL DEFAULT '',
    error      TEXT    NOT NULL DEFAULT '',
    score      REAL,
    analytics  TEXT,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_items_asin   ON run_items(asin);
`

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps the history of bulk runs in SQLite (pure Go driver).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. ":memory:" gives a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveReport stores a finished run with its items. Saving the same id again
// replaces the earlier copy.
func (s *SQLiteStore) SaveReport(ctx context.Context, rep *bulk.Report) error {
	if rep == nil || rep.ID == "" {
		return errors.New("storage: report without id")
	}

	profile, err := json.Marshal(rep.Profile)
	if err != nil {
		return fmt.Errorf("storage: encode profile: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM run_items WHERE run_id = ?`, `DELETE FROM runs WHERE id = ?`} {
		if _, err := tx.ExecContext(ctx, q, rep.ID); err != nil {
			return fmt.Errorf("storage: replace run: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, state, succeeded, total, processed, cancelled, reason, profile, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, string(rep.State), rep.Succeeded, rep.Total, len(rep.Items), boolInt(rep.Cancelled),
		rep.Reason, string(profile), formatTime(rep.StartedAt), formatTime(rep.FinishedAt),
	); err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_items (run_id, position, identifier, asin, status, failure, error, score, analytics)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare items: %w", err)
	}
	defer stmt.Close()

	for i, item := range rep.Items {
		var score sql.NullFloat64
		var analytics sql.NullString
		if item.Analytics != nil {
			data, err := json.Marshal(item.Analytics)
			if err != nil {
				return fmt.Errorf("storage: encode analytics for %s: %w", item.Identifier, err)
			}
			analytics = sql.NullString{String: string(data), Valid: true}
			score = sql.NullFloat64{Float64: item.Analytics.Score, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			rep.ID, i, item.Identifier, item.ASIN, string(item.Status),
			string(item.Failure), item.Error, score, analytics,
		); err != nil {
			return fmt.Errorf("storage: insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// GetReport loads a run and its items in their original order.
func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*bulk.Report, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, succeeded, total, cancelled, reason, profile, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	rep, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT identifier, asin, status, failure, error, analytics
		FROM run_items WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("storage: query items: %w", err)
	}
	defer rows.Close()

	rep.Items = []model.BulkItem{}
	for rows.Next() {
		var item model.BulkItem
		var status, failure string
		var analytics sql.NullString
		if err := rows.Scan(&item.Identifier, &item.ASIN, &status, &failure, &item.Error, &analytics); err != nil {
			return nil, fmt.Errorf("storage: scan item: %w", err)
		}
		item.Status = model.ItemStatus(status)
		item.Failure = model.FailureKind(failure)
		if analytics.Valid {
			var rec model.AnalyticsRecord
			if err := json.Unmarshal([]byte(analytics.String), &rec); err != nil {
				return nil, fmt.Errorf("storage: decode analytics: %w", err)
			}
			item.Analytics = &rec
		}
		rep.Items = append(rep.Items, item)
	}
	return rep, rows.Err()
}

// ListReports returns the most recent runs first, without their items.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]*bulk.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state, succeeded, total, cancelled, reason, profile, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var out []*bulk.Report
	for rows.Next() {
		rep, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// ASINHistory returns the analytics recorded for asin across runs, newest
// first. Failed items are skipped.
func (s *SQLiteStore) ASINHistory(ctx context.Context, asin string, limit int) ([]model.AnalyticsRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.analytics
		FROM run_items i JOIN runs r ON r.id = i.run_id
		WHERE i.asin = ? AND i.analytics IS NOT NULL
		ORDER BY r.started_at DESC LIMIT ?`, asin, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: asin history: %w", err)
	}
	defer rows.Close()

	var out []model.AnalyticsRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("storage: scan analytics: %w", err)
		}
		var rec model.AnalyticsRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("storage: decode analytics: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes runs that started before cutoff and reports how many went.
func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	c := formatTime(cutoff)
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM run_items WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, c); err != nil {
		return 0, fmt.Errorf("storage: prune items: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, c)
	if err != nil {
		return 0, fmt.Errorf("storage: prune: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*bulk.Report, error) {
	var rep bulk.Report
	var state, profile, started, finished string
	var cancelled int
	if err := row.Scan(&rep.ID, &state, &rep.Succeeded, &rep.Total, &cancelled, &rep.Reason,
		&profile, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("storage: scan run: %w", err)
	}
	rep.State = bulk.State(state)
	rep.Cancelled = cancelled != 0
	if err := json.Unmarshal([]byte(profile), &rep.Profile); err != nil {
		return nil, fmt.Errorf("storage: decode profile: %w", err)
	}
	rep.StartedAt = parseTime(started)
	rep.FinishedAt = parseTime(finished)
	return &rep, nil
}

// Times are stored as fixed-width UTC text so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z")
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
