package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// sqlStore implements Store against any database/sql driver whose schema
// was created by the dialect-specific wrapper (MySQLStore, SQLiteStore).
// Both wrappers share this query layer; only CREATE TABLE and the
// checkpoint upsert statement differ by dialect.
type sqlStore struct {
	db *sql.DB

	// upsertCheckpoint is the dialect-specific insert-or-update statement
	// for workflow_checkpoints; MySQL and SQLite spell "upsert" differently.
	upsertCheckpoint string
}

func (s *sqlStore) saveStep(ctx context.Context, runID string, step int, nodeID string, bindings map[string]any) error {
	data, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("store: marshaling bindings: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflow_steps (run_id, step, node_id, bindings) VALUES (?, ?, ?, ?)`,
		runID, step, nodeID, string(data))
	if err != nil {
		return fmt.Errorf("store: saving step: %w", err)
	}
	return nil
}

func (s *sqlStore) loadLatest(ctx context.Context, runID string) (map[string]any, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT step, bindings FROM workflow_steps WHERE run_id = ? ORDER BY step DESC LIMIT 1`, runID)

	var step int
	var data string
	if err := row.Scan(&step, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("store: loading latest step: %w", err)
	}

	var bindings map[string]any
	if err := json.Unmarshal([]byte(data), &bindings); err != nil {
		return nil, 0, fmt.Errorf("store: unmarshaling bindings: %w", err)
	}
	return bindings, step, nil
}

func (s *sqlStore) saveCheckpoint(ctx context.Context, label string, bindings map[string]any, step int) error {
	data, err := json.Marshal(bindings)
	if err != nil {
		return fmt.Errorf("store: marshaling bindings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.upsertCheckpoint, label, step, string(data))
	if err != nil {
		return fmt.Errorf("store: saving checkpoint: %w", err)
	}
	return nil
}

func (s *sqlStore) loadCheckpoint(ctx context.Context, label string) (map[string]any, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT step, bindings FROM workflow_checkpoints WHERE label = ?`, label)

	var step int
	var data string
	if err := row.Scan(&step, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("store: loading checkpoint: %w", err)
	}

	var bindings map[string]any
	if err := json.Unmarshal([]byte(data), &bindings); err != nil {
		return nil, 0, fmt.Errorf("store: unmarshaling bindings: %w", err)
	}
	return bindings, step, nil
}

func (s *sqlStore) close() error {
	return s.db.Close()
}
