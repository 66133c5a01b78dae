package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore archives snapshots in MySQL (or Aurora MySQL) so several server
// processes can share history.
//
//	st, err := store.NewMySQLStore[workflow.WorkflowRecord]("user:pass@tcp(localhost:3306)/research?parseTime=true")
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// NewMySQLStore connects, verifies the connection and migrates the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m := &MySQLStore[S]{db: db, now: time.Now}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	snapshots := `
		CREATE TABLE IF NOT EXISTS workflow_snapshots (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			stage VARCHAR(64) NOT NULL,
			state JSON NOT NULL,
			saved_at BIGINT NOT NULL,
			UNIQUE KEY unique_workflow_step (workflow_id, step)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, snapshots); err != nil {
		return fmt.Errorf("failed to create workflow_snapshots table: %w", err)
	}
	return nil
}

func (m *MySQLStore[S]) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// SaveStep upserts the snapshot for (workflowID, step).
func (m *MySQLStore[S]) SaveStep(ctx context.Context, workflowID string, step int, stage string, state S) error {
	if m.isClosed() {
		return errClosed
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO workflow_snapshots (workflow_id, step, stage, state, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			stage = VALUES(stage),
			state = VALUES(state),
			saved_at = VALUES(saved_at)
	`
	if _, err := m.db.ExecContext(ctx, query, workflowID, step, stage, stateJSON, m.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest returns the highest step saved for workflowID.
func (m *MySQLStore[S]) LoadLatest(ctx context.Context, workflowID string) (state S, step int, err error) {
	if m.isClosed() {
		return state, 0, errClosed
	}

	query := `
		SELECT step, state FROM workflow_snapshots
		WHERE workflow_id = ?
		ORDER BY step DESC
		LIMIT 1
	`
	var stateJSON []byte
	err = m.db.QueryRowContext(ctx, query, workflowID).Scan(&step, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// History returns every snapshot of workflowID ordered by step.
func (m *MySQLStore[S]) History(ctx context.Context, workflowID string) ([]StepRecord[S], error) {
	if m.isClosed() {
		return nil, errClosed
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT step, stage, state, saved_at FROM workflow_snapshots
		WHERE workflow_id = ?
		ORDER BY step ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanHistory[S](rows)
}

// Ping verifies the database is reachable.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if m.isClosed() {
		return errClosed
	}
	return m.db.PingContext(ctx)
}

// Stats exposes connection pool statistics.
func (m *MySQLStore[S]) Stats() sql.DBStats {
	return m.db.Stats()
}

// Close closes the connection pool. Calling Close twice is a no-op.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}
