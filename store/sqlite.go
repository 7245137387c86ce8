// ABOUTME: SQLite-backed history of completed council runs, keyed by ULID.
// ABOUTME: A queryable log for the history command, not the source of truth for conversations.

package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// RunRecord is one completed deliberation run.
type RunRecord struct {
	ID         string
	Mode       string
	Question   string
	Synthesis  string
	ModelCount int
	CreatedAt  time.Time
}

// RunHistory indexes completed runs in SQLite.
type RunHistory struct {
	db *sql.DB
}

// OpenRunHistory opens or creates the run-history database at path.
func OpenRunHistory(path string) (*RunHistory, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			question TEXT NOT NULL,
			synthesis TEXT NOT NULL,
			model_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &RunHistory{db: db}, nil
}

// Close closes the database connection.
func (h *RunHistory) Close() error {
	return h.db.Close()
}

// NewRunID returns a fresh ULID for stamping a run.
func NewRunID() string {
	return ulid.Make().String()
}

// Record inserts a completed run. A zero CreatedAt is stamped with now; an
// empty ID gets a fresh ULID. Returns the run id.
func (h *RunHistory) Record(rec RunRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = NewRunID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := h.db.Exec(
		`INSERT INTO runs (run_id, mode, question, synthesis, model_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Mode,
		rec.Question,
		rec.Synthesis,
		rec.ModelCount,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return rec.ID, nil
}

// Recent returns the most recent runs, newest first.
func (h *RunHistory) Recent(limit int) ([]RunRecord, error) {
	rows, err := h.db.Query(
		`SELECT run_id, mode, question, synthesis, model_count, created_at
		 FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.Question, &rec.Synthesis, &rec.ModelCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns a single run by id.
func (h *RunHistory) Get(id string) (*RunRecord, error) {
	row := h.db.QueryRow(
		`SELECT run_id, mode, question, synthesis, model_count, created_at
		 FROM runs WHERE run_id = ?`, id)

	var rec RunRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Mode, &rec.Question, &rec.Synthesis, &rec.ModelCount, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse run timestamp: %w", err)
	}
	rec.CreatedAt = parsed
	return &rec, nil
}
