package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists bindings to a single SQLite file, for hosts that
// want durability without standing up a database server — local
// development, single-process deployments, or embedded use.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens path (use ":memory:" for an ephemeral database),
// creates its schema if absent, and enables WAL mode for concurrent reads.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enabling WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}

	s := &SQLiteStore{sqlStore{
		db: db,
		upsertCheckpoint: `INSERT INTO workflow_checkpoints (label, step, bindings) VALUES (?, ?, ?)
			ON CONFLICT(label) DO UPDATE SET step = excluded.step, bindings = excluded.bindings`,
	}}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stepsTable := `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			bindings TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (run_id, step)
		)`
	if _, err := s.db.ExecContext(ctx, stepsTable); err != nil {
		return fmt.Errorf("store: creating workflow_steps: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_run_id ON workflow_steps (run_id)`); err != nil {
		return fmt.Errorf("store: creating idx_run_id: %w", err)
	}

	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL UNIQUE,
			step INTEGER NOT NULL,
			bindings TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`
	if _, err := s.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("store: creating workflow_checkpoints: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveStep(ctx context.Context, runID string, step int, nodeID string, bindings map[string]any) error {
	return s.saveStep(ctx, runID, step, nodeID, bindings)
}

func (s *SQLiteStore) LoadLatest(ctx context.Context, runID string) (map[string]any, int, error) {
	return s.loadLatest(ctx, runID)
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, label string, bindings map[string]any, step int) error {
	return s.saveCheckpoint(ctx, label, bindings, step)
}

func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, label string) (map[string]any, int, error) {
	return s.loadCheckpoint(ctx, label)
}

// Close releases the underlying connection.
func (s *SQLiteStore) Close() error { return s.close() }
