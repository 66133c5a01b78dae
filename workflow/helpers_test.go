package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/research-team/workflow/store"
)

// stubWorker succeeds with a canned payload for its stage unless fn says
// otherwise.
type stubWorker struct {
	name  string
	stage Stage
	fn    func(ctx context.Context, in StageInput) (WorkerResult, error)
	calls atomic.Int32
}

func (w *stubWorker) Name() string { return w.name }

func (w *stubWorker) Process(ctx context.Context, in StageInput) (WorkerResult, error) {
	w.calls.Add(1)
	if w.fn != nil {
		return w.fn(ctx, in)
	}
	return okResult(w.stage, in), nil
}

func (w *stubWorker) Describe() Capability {
	return Capability{Name: w.name, Description: "stub " + string(w.stage)}
}

func okResult(stage Stage, in StageInput) WorkerResult {
	topic := in.Request.Topic
	var out Output
	switch stage {
	case StageResearch:
		out.Research = &ResearchOutput{
			Topic:    topic,
			Sources:  []string{"https://academic-source.com/" + topic, "https://news-source.com/" + topic},
			Queries:  []string{topic},
			Findings: ResearchFindings{MainFindings: []string{topic + " finding"}},
		}
	case StageAnalysis:
		out.Analysis = &AnalysisOutput{
			Insights:        []string{"insight on " + in.Research.Topic},
			Recommendations: []Recommendation{{Action: "invest in " + topic, Priority: 1}},
			Confidence:      0.45,
		}
	case StageContent:
		out.Content = &ContentOutput{
			Title:     topic + " report",
			Report:    "A short report about " + topic,
			WordCount: 5,
		}
	case StageQuality:
		out.Quality = &QualityOutput{Overall: 91.5, Grade: "A-", Approved: true, ApprovalStatus: ApprovalApproved}
	}
	return WorkerResult{Status: WorkerCompleted, Output: out, ExecutionTime: time.Millisecond, Timestamp: time.Now()}
}

func errResult(msg string) WorkerResult {
	return WorkerResult{Status: WorkerError, Output: ErrorOutput(msg), ExecutionTime: time.Millisecond}
}

// stubTeam hands out the same workers to every run. Tests that run
// concurrently only use stateless fn hooks.
type stubTeam struct {
	workers map[Stage]*stubWorker
}

func newStubTeam() *stubTeam {
	t := &stubTeam{workers: make(map[Stage]*stubWorker)}
	for _, stage := range Stages {
		t.workers[stage] = &stubWorker{name: string(stage) + "_worker", stage: stage}
	}
	return t
}

func (t *stubTeam) on(stage Stage, fn func(ctx context.Context, in StageInput) (WorkerResult, error)) *stubTeam {
	t.workers[stage].fn = fn
	return t
}

func (t *stubTeam) factory() TeamFactory {
	return func() Team {
		return Team{
			Researcher: t.workers[StageResearch],
			Analyst:    t.workers[StageAnalysis],
			Writer:     t.workers[StageContent],
			Reviewer:   t.workers[StageQuality],
		}
	}
}

func (t *stubTeam) calls(stage Stage) int {
	return int(t.workers[stage].calls.Load())
}

// fakeClock advances by tick on every reading.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), tick: 10 * time.Millisecond}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.tick)
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("store unavailable")

type storeRecord = store.StepRecord[WorkflowRecord]

// failingStore rejects every call.
type failingStore struct{}

func (failingStore) SaveStep(context.Context, string, int, string, WorkflowRecord) error {
	return errStoreDown
}

func (failingStore) LoadLatest(context.Context, string) (WorkflowRecord, int, error) {
	return WorkflowRecord{}, 0, errStoreDown
}

func (failingStore) History(context.Context, string) ([]storeRecord, error) {
	return nil, errStoreDown
}
