// Package store archives workflow record snapshots.
//
// The engine saves one snapshot per pipeline step plus a terminal snapshot,
// so a run's progress can be inspected after the in-memory registry has
// forgotten it (TTL eviction or process restart).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot exists for a workflow.
var ErrNotFound = errors.New("not found")

// errClosed is returned by database-backed stores after Close.
var errClosed = errors.New("store is closed")

// Store persists per-step snapshots of type S keyed by workflow ID.
//
// Implementations must be safe for concurrent use. Saving the same
// (workflowID, step) pair twice replaces the earlier snapshot, which is how
// the engine overwrites the last stage snapshot with the terminal record.
type Store[S any] interface {
	// SaveStep stores state as the snapshot of workflowID at step, produced
	// by stage ("workflow" for records written outside a stage).
	SaveStep(ctx context.Context, workflowID string, step int, stage string, state S) error

	// LoadLatest returns the snapshot with the highest step for workflowID,
	// or ErrNotFound.
	LoadLatest(ctx context.Context, workflowID string) (state S, step int, err error)

	// History returns every snapshot of workflowID ordered by step, or
	// ErrNotFound when there are none.
	History(ctx context.Context, workflowID string) ([]StepRecord[S], error)
}

// StepRecord is one archived snapshot.
type StepRecord[S any] struct {
	Step    int       `json:"step"`
	Stage   string    `json:"stage"`
	State   S         `json:"state"`
	SavedAt time.Time `json:"saved_at"`
}
