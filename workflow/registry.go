package workflow

import (
	"context"
	"sort"
	"sync"
	"time"
)

// run is the registry entry of one workflow. Only the goroutine executing
// the run writes rec; readers take snapshots under mu.
type run struct {
	mu     sync.RWMutex
	rec    WorkflowRecord
	cancel context.CancelFunc
	done   chan struct{}
}

func newRun(rec WorkflowRecord, cancel context.CancelFunc) *run {
	return &run{rec: rec, cancel: cancel, done: make(chan struct{})}
}

// snapshot returns a copy of the current record.
func (r *run) snapshot() WorkflowRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rec.clone()
}

// update applies fn to the record under the write lock and returns a copy
// of the result.
func (r *run) update(fn func(rec *WorkflowRecord)) WorkflowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.rec)
	return r.rec.clone()
}

func (r *run) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// registry maps workflow IDs to their runs. Finished runs are evicted ttl
// after they end; a zero ttl keeps them for the life of the process.
type registry struct {
	mu   sync.RWMutex
	runs map[string]*run
	ttl  time.Duration
	now  func() time.Time
}

func newRegistry(ttl time.Duration, now func() time.Time) *registry {
	return &registry{runs: make(map[string]*run), ttl: ttl, now: now}
}

// add registers r under id. It returns false if id is already taken.
func (g *registry) add(id string, r *run) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked()
	if _, exists := g.runs[id]; exists {
		return false
	}
	g.runs[id] = r
	return true
}

func (g *registry) get(id string) (*run, bool) {
	g.mu.RLock()
	r, ok := g.runs[id]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if g.expired(r) {
		g.mu.Lock()
		if g.runs[id] == r {
			delete(g.runs, id)
		}
		g.mu.Unlock()
		return nil, false
	}
	return r, true
}

// list returns live runs ordered by start time, then ID.
func (g *registry) list() []*run {
	g.mu.Lock()
	g.sweepLocked()
	runs := make([]*run, 0, len(g.runs))
	for _, r := range g.runs {
		runs = append(runs, r)
	}
	g.mu.Unlock()

	recs := make(map[*run]WorkflowRecord, len(runs))
	for _, r := range runs {
		recs[r] = r.snapshot()
	}
	sort.Slice(runs, func(i, j int) bool {
		a, b := recs[runs[i]], recs[runs[j]]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.WorkflowID < b.WorkflowID
	})
	return runs
}

func (g *registry) expired(r *run) bool {
	if g.ttl <= 0 || !r.finished() {
		return false
	}
	r.mu.RLock()
	end := r.rec.EndTime
	r.mu.RUnlock()
	return !end.IsZero() && g.now().Sub(end) >= g.ttl
}

func (g *registry) sweepLocked() {
	if g.ttl <= 0 {
		return
	}
	for id, r := range g.runs {
		if g.expired(r) {
			delete(g.runs, id)
		}
	}
}
