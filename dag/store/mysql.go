package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists bindings to a MySQL/MariaDB database, for hosts
// that run several driver instances against shared, durable storage.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore opens dsn, creates its schema if absent, and returns a
// ready MySQLStore. DSN format: "user:pass@tcp(host:3306)/dbname".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: pinging mysql: %w", err)
	}

	m := &MySQLStore{sqlStore{
		db: db,
		upsertCheckpoint: `INSERT INTO workflow_checkpoints (label, step, bindings) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE step = VALUES(step), bindings = VALUES(bindings)`,
	}}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	stepsTable := `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			bindings JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_run_id (run_id),
			UNIQUE KEY unique_run_step (run_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	if _, err := m.db.ExecContext(ctx, stepsTable); err != nil {
		return fmt.Errorf("store: creating workflow_steps: %w", err)
	}

	checkpointsTable := `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			label VARCHAR(255) NOT NULL UNIQUE,
			step INT NOT NULL,
			bindings JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
	if _, err := m.db.ExecContext(ctx, checkpointsTable); err != nil {
		return fmt.Errorf("store: creating workflow_checkpoints: %w", err)
	}
	return nil
}

func (m *MySQLStore) SaveStep(ctx context.Context, runID string, step int, nodeID string, bindings map[string]any) error {
	return m.saveStep(ctx, runID, step, nodeID, bindings)
}

func (m *MySQLStore) LoadLatest(ctx context.Context, runID string) (map[string]any, int, error) {
	return m.loadLatest(ctx, runID)
}

func (m *MySQLStore) SaveCheckpoint(ctx context.Context, label string, bindings map[string]any, step int) error {
	return m.saveCheckpoint(ctx, label, bindings, step)
}

func (m *MySQLStore) LoadCheckpoint(ctx context.Context, label string) (map[string]any, int, error) {
	return m.loadCheckpoint(ctx, label)
}

// Close releases the underlying connection pool.
func (m *MySQLStore) Close() error { return m.close() }
