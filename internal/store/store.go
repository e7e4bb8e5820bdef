// Package store archives completed simulation runs in a SQLite
// database. It is pure output archival: simulation state (topology,
// ARP cache) is never persisted.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/lan-simulator/results"
)

// ErrRunNotFound reports that no archived run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Fixed-width UTC layout so string ordering matches chronological
// ordering in SQL.
const timeLayout = "2006-01-02 15:04:05.000000000"

// RunRecord is one archived run. Batch is populated by GetRun and left
// nil by ListRuns.
type RunRecord struct {
	RunID      string
	Scenario   string
	StartedAt  time.Time
	FinishedAt time.Time
	Events     int
	Succeeded  int
	Failed     int
	Batch      *results.Batch
}

// Store persists result batches in a SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the archive at path and migrates its
// schema. Pass ":memory:" for an ephemeral archive.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	// Single connection: the archive has one writer, and in-memory
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate archive: %w", err)
	}
	return s, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return "file::memory:?_pragma=busy_timeout(5000)"
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		events INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		results JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun archives a completed batch. Saving a run ID that already
// exists overwrites the previous record.
func (s *Store) SaveRun(ctx context.Context, batch *results.Batch) error {
	if batch == nil || batch.RunID == "" {
		return errors.New("batch has no run ID")
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	started := time.Now().UTC()
	if batch.StartedAt != nil {
		started = batch.StartedAt.UTC()
	}
	summary := results.Summarize(batch.Logs)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, scenario, started_at, finished_at, events, succeeded, failed, results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			scenario = excluded.scenario,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			events = excluded.events,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			results = excluded.results
	`, batch.RunID, batch.Scenario,
		started.Format(timeLayout), time.Now().UTC().Format(timeLayout),
		summary.Events, summary.Succeeded, summary.Failed, payload)

	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", batch.RunID, err)
	}
	return nil
}

// GetRun loads one archived run, batch included.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var (
		rec               RunRecord
		started, finished string
		payload           []byte
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, scenario, started_at, finished_at, events, succeeded, failed, results
		FROM runs WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.Scenario, &started, &finished,
		&rec.Events, &rec.Succeeded, &rec.Failed, &payload)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	if rec.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}

	batch, err := results.DecodeBatch(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	rec.Batch = batch
	return &rec, nil
}

// ListRuns returns summary rows for the most recent runs, newest
// first. A non-positive limit defaults to 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, scenario, started_at, finished_at, events, succeeded, failed
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec               RunRecord
			started, finished string
		)
		if err := rows.Scan(&rec.RunID, &rec.Scenario, &started, &finished,
			&rec.Events, &rec.Succeeded, &rec.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}

// Size reports the archive file's on-disk size, zero for in-memory
// archives.
func (s *Store) Size() int64 {
	if s.path == ":memory:" {
		return 0
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func parseTime(v string) (time.Time, error) {
	ts, err := time.ParseInLocation(timeLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse archive timestamp %q: %w", v, err)
	}
	return ts, nil
}
