package workflow

import (
	"sort"
	"sync"
	"time"
)

// WorkerMetrics aggregates every invocation of one worker.
type WorkerMetrics struct {
	WorkerName       string        `json:"worker_name"`
	Stage            Stage         `json:"stage"`
	TotalTasks       int           `json:"total_tasks"`
	SuccessfulTasks  int           `json:"successful_tasks"`
	SuccessRate      float64       `json:"success_rate"`
	AvgExecutionTime time.Duration `json:"average_execution_time"`
	LastExecution    time.Time     `json:"last_execution"`
}

// SystemMetrics is the engine-wide view returned by Engine.SystemMetrics.
type SystemMetrics struct {
	TotalWorkflows     int             `json:"total_workflows"`
	ActiveWorkflows    int             `json:"active_workflows"`
	CompletedWorkflows int             `json:"completed_workflows"`
	FailedWorkflows    int             `json:"failed_workflows"`
	Workers            []WorkerMetrics `json:"workers"`
}

// stats accumulates worker results across runs. Per-run workers keep their
// own history too, but it dies with the run.
type stats struct {
	mu      sync.Mutex
	workers map[string]*workerAgg

	started, completed, failed int
}

type workerAgg struct {
	stage     Stage
	total     int
	succeeded int
	elapsed   time.Duration
	last      time.Time
}

func newStats() *stats {
	return &stats{workers: make(map[string]*workerAgg)}
}

func (s *stats) recordResult(res WorkerResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agg, ok := s.workers[res.WorkerName]
	if !ok {
		agg = &workerAgg{stage: res.Stage}
		s.workers[res.WorkerName] = agg
	}
	agg.total++
	if res.Status == WorkerCompleted {
		agg.succeeded++
	}
	agg.elapsed += res.ExecutionTime
	if res.Timestamp.After(agg.last) {
		agg.last = res.Timestamp
	}
}

func (s *stats) runStarted() {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()
}

func (s *stats) runEnded(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch status {
	case StatusCompleted:
		s.completed++
	case StatusFailed:
		s.failed++
	}
}

func (s *stats) snapshot() SystemMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := SystemMetrics{
		TotalWorkflows:     s.started,
		ActiveWorkflows:    s.started - s.completed - s.failed,
		CompletedWorkflows: s.completed,
		FailedWorkflows:    s.failed,
		Workers:            make([]WorkerMetrics, 0, len(s.workers)),
	}
	for name, agg := range s.workers {
		wm := WorkerMetrics{
			WorkerName:      name,
			Stage:           agg.stage,
			TotalTasks:      agg.total,
			SuccessfulTasks: agg.succeeded,
			LastExecution:   agg.last,
		}
		if agg.total > 0 {
			wm.SuccessRate = float64(agg.succeeded) / float64(agg.total)
			wm.AvgExecutionTime = agg.elapsed / time.Duration(agg.total)
		}
		m.Workers = append(m.Workers, wm)
	}
	sort.Slice(m.Workers, func(i, j int) bool {
		a, b := m.Workers[i], m.Workers[j]
		if a.Stage.Step() != b.Stage.Step() {
			return a.Stage.Step() < b.Stage.Step()
		}
		return a.WorkerName < b.WorkerName
	})
	return m
}
