package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore keeps snapshots in process memory. It is the default archive and
// the one used in tests; contents are lost when the process exits.
type MemStore[S any] struct {
	mu    sync.RWMutex
	steps map[string][]StepRecord[S]
	now   func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps: make(map[string][]StepRecord[S]),
		now:   time.Now,
	}
}

// SaveStep stores or replaces the snapshot for (workflowID, step).
func (m *MemStore[S]) SaveStep(_ context.Context, workflowID string, step int, stage string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := StepRecord[S]{Step: step, Stage: stage, State: state, SavedAt: m.now()}
	records := m.steps[workflowID]
	for i := range records {
		if records[i].Step == step {
			records[i] = record
			return nil
		}
	}
	m.steps[workflowID] = append(records, record)
	return nil
}

// LoadLatest returns the highest step saved for workflowID. Out of order
// saves are handled.
func (m *MemStore[S]) LoadLatest(_ context.Context, workflowID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.steps[workflowID]
	if len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Step > latest.Step {
			latest = record
		}
	}
	return latest.State, latest.Step, nil
}

// History returns a step-ordered copy of workflowID's snapshots.
func (m *MemStore[S]) History(_ context.Context, workflowID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.steps[workflowID]
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	out := make([]StepRecord[S], len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}
