// Package history persists a ledger of backup runs in SQLite, one row
// per run. The ledger is diagnostic only; the engine never consults it
// for correctness decisions.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Run is one recorded backup run.
type Run struct {
	Seq            int64
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	Kind           string // "full" or "incremental"
	Snapshot       string
	Parent         string
	EstimatedBytes int64
	Outcome        string // "success" or "failed"
	ErrorKind      string
	Error          string
}

// Store is the run ledger.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// DefaultPath returns the standard ledger location, honoring
// XDG_STATE_HOME.
func DefaultPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "berm", "history.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "berm-history.db")
	}
	return filepath.Join(home, ".local", "state", "berm", "history.db")
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			seq             INTEGER PRIMARY KEY,
			run_id          TEXT NOT NULL,
			started_at      TEXT NOT NULL,
			finished_at     TEXT NOT NULL,
			kind            TEXT NOT NULL,
			snapshot        TEXT NOT NULL,
			parent          TEXT NOT NULL DEFAULT '',
			estimated_bytes INTEGER NOT NULL DEFAULT 0,
			outcome         TEXT NOT NULL,
			error_kind      TEXT NOT NULL DEFAULT '',
			error           TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}
	return nil
}

// Append records one finished run.
func (s *Store) Append(r Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, started_at, finished_at, kind, snapshot,
			parent, estimated_bytes, outcome, error_kind, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Kind, r.Snapshot, r.Parent, r.EstimatedBytes,
		r.Outcome, r.ErrorKind, r.Error)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// Recent returns the newest n runs, newest first.
func (s *Store) Recent(n int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT seq, run_id, started_at, finished_at, kind, snapshot,
			parent, estimated_bytes, outcome, error_kind, error
		FROM runs ORDER BY seq DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.Seq, &r.RunID, &started, &finished, &r.Kind,
			&r.Snapshot, &r.Parent, &r.EstimatedBytes, &r.Outcome,
			&r.ErrorKind, &r.Error); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
