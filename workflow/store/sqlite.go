package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore archives snapshots in a single SQLite file using the pure-Go
// modernc driver. Suited to a single server process; WAL mode lets status
// readers proceed while a run writes.
//
//	st, err := store.NewSQLiteStore[workflow.WorkflowRecord]("./research-team.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
//
// ":memory:" gives a throwaway database for tests.
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path, now: time.Now}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	snapshots := `
		CREATE TABLE IF NOT EXISTS workflow_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			stage TEXT NOT NULL,
			state TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			UNIQUE(workflow_id, step)
		)
	`
	if _, err := s.db.ExecContext(ctx, snapshots); err != nil {
		return fmt.Errorf("failed to create workflow_snapshots table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_snapshots_workflow ON workflow_snapshots(workflow_id, step)"); err != nil {
		return fmt.Errorf("failed to create idx_snapshots_workflow: %w", err)
	}
	return nil
}

func (s *SQLiteStore[S]) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SaveStep upserts the snapshot for (workflowID, step).
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, workflowID string, step int, stage string, state S) error {
	if s.isClosed() {
		return errClosed
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO workflow_snapshots (workflow_id, step, stage, state, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(workflow_id, step) DO UPDATE SET
			stage = excluded.stage,
			state = excluded.state,
			saved_at = excluded.saved_at
	`
	if _, err := s.db.ExecContext(ctx, query, workflowID, step, stage, string(stateJSON), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save step: %w", err)
	}
	return nil
}

// LoadLatest returns the highest step saved for workflowID.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, workflowID string) (state S, step int, err error) {
	if s.isClosed() {
		return state, 0, errClosed
	}

	query := `
		SELECT step, state FROM workflow_snapshots
		WHERE workflow_id = ?
		ORDER BY step DESC
		LIMIT 1
	`
	var stateJSON string
	err = s.db.QueryRowContext(ctx, query, workflowID).Scan(&step, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return state, 0, ErrNotFound
	}
	if err != nil {
		return state, 0, fmt.Errorf("failed to load latest step: %w", err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		var zero S
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// History returns every snapshot of workflowID ordered by step.
func (s *SQLiteStore[S]) History(ctx context.Context, workflowID string) ([]StepRecord[S], error) {
	if s.isClosed() {
		return nil, errClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, stage, state, saved_at FROM workflow_snapshots
		WHERE workflow_id = ?
		ORDER BY step ASC
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	return scanHistory[S](rows)
}

// Close closes the database. Calling Close twice is a no-op.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the database location passed to NewSQLiteStore.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}

// scanHistory reads (step, stage, state, saved_at) rows from any
// database/sql backed store and closes rows.
func scanHistory[S any](rows *sql.Rows) ([]StepRecord[S], error) {
	defer func() { _ = rows.Close() }()

	var out []StepRecord[S]
	for rows.Next() {
		var (
			rec       StepRecord[S]
			stateJSON []byte
			savedAt   int64
		)
		if err := rows.Scan(&rec.Step, &rec.Stage, &stateJSON, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		if err := json.Unmarshal(stateJSON, &rec.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
		rec.SavedAt = time.UnixMilli(savedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
