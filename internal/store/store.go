// Package store keeps a local SQLite ledger of document jobs submitted to the
// service: uploads, dry-run parses and the status reads made while waiting
// on them. The ledger is informational. The service remains the source of
// truth for job state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/logging"
)

// Job is one submitted document job and its last observed state.
type Job struct {
	// ID is the service-assigned JobId.
	ID         string
	Collection string
	FileName   string
	// Source is the locator the document was read from.
	Source string
	// DryRun marks parse-only jobs.
	DryRun    bool
	Status    string
	Completed bool
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ledger records jobs and their status. Implementations must be safe for
// concurrent use.
type Ledger interface {
	// Record inserts a job, or replaces the row with the same ID.
	Record(ctx context.Context, j Job) error
	// Observe updates a job's status. Unknown IDs are ignored.
	Observe(ctx context.Context, jobID string, status adbpg.JobStatus)
	// Recent returns the n most recently created jobs, newest first.
	Recent(ctx context.Context, n int) ([]Job, error)
	// Get returns one job, or sql.ErrNoRows wrapped.
	Get(ctx context.Context, id string) (*Job, error)
	// Ping checks the database connection.
	Ping(ctx context.Context) error
	// Close releases any resources held by the ledger.
	Close() error
}

// SQLiteStore is a Ledger backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

var _ Ledger = (*SQLiteStore)(nil)

// DefaultDBPath returns ~/.adbpg/jobs.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".adbpg")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "jobs.db"), nil
}

// OpenFromEnv opens the ledger named by ADBPG_JOBS_DB, or the default path.
// It returns nil, nil when ADBPG_JOBS_DB is "disabled".
func OpenFromEnv() (*SQLiteStore, error) {
	path := os.Getenv("ADBPG_JOBS_DB")
	if path == "disabled" {
		return nil, nil
	}
	if path == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return Open(path)
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS jobs (
    id          TEXT    PRIMARY KEY,
    collection  TEXT    NOT NULL,
    file_name   TEXT    NOT NULL DEFAULT '',
    source      TEXT    NOT NULL DEFAULT '',
    dry_run     INTEGER NOT NULL DEFAULT 0,
    status      TEXT    NOT NULL DEFAULT '',
    completed   INTEGER NOT NULL DEFAULT 0,
    error       TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,  -- Unix timestamp (nanoseconds)
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record inserts j. CreatedAt defaults to now.
func (s *SQLiteStore) Record(ctx context.Context, j Job) error {
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	const q = `
INSERT OR REPLACE INTO jobs
    (id, collection, file_name, source, dry_run, status, completed, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		j.ID, j.Collection, j.FileName, j.Source, j.DryRun,
		j.Status, j.Completed, j.Error, j.CreatedAt.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: record %s: %w", j.ID, err)
	}
	return nil
}

// Observe implements jobs.Observer. Failures are logged, never returned.
func (s *SQLiteStore) Observe(ctx context.Context, jobID string, status adbpg.JobStatus) {
	const q = `UPDATE jobs SET status = ?, completed = ?, error = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, status.Status, status.Completed, status.Error, time.Now().UnixNano(), jobID)
	if err != nil {
		logging.FromContext(ctx).Warn("store: observe failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
}

const selectJob = `SELECT id, collection, file_name, source, dry_run, status, completed, error, created_at, updated_at FROM jobs`

// Recent returns the n most recently created jobs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJob+` ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Get returns the job with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, selectJob+` WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return j, nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(r scanner) (*Job, error) {
	var (
		j                Job
		created, updated int64
	)
	err := r.Scan(&j.ID, &j.Collection, &j.FileName, &j.Source, &j.DryRun,
		&j.Status, &j.Completed, &j.Error, &created, &updated)
	if err != nil {
		return nil, err
	}
	j.CreatedAt = time.Unix(0, created)
	j.UpdatedAt = time.Unix(0, updated)
	return &j, nil
}
