package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/model"
)

// base carries the state every worker shares: its identity, the generator,
// and the status and history of its invocations.
type base struct {
	name  string
	stage workflow.Stage
	gen   model.Generator
	cfg   Config
	emit  emit.Emitter
	now   func() time.Time

	mu      sync.Mutex
	status  workflow.WorkerStatus
	history []workflow.WorkerResult
}

func newBase(name string, stage workflow.Stage, deps Deps, cfg Config) *base {
	deps = deps.withDefaults()
	return &base{
		name:   name,
		stage:  stage,
		gen:    deps.Generator,
		cfg:    cfg,
		emit:   deps.Emitter,
		now:    deps.Clock,
		status: workflow.WorkerIdle,
	}
}

// Name returns the worker name.
func (b *base) Name() string {
	return b.name
}

// Status returns the state of the latest invocation.
func (b *base) Status() workflow.WorkerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// History returns every result this worker has produced, oldest first.
func (b *base) History() []workflow.WorkerResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]workflow.WorkerResult, len(b.history))
	copy(out, b.history)
	return out
}

// Metrics summarizes History.
func (b *base) Metrics() workflow.WorkerMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := workflow.WorkerMetrics{WorkerName: b.name, Stage: b.stage, TotalTasks: len(b.history)}
	var elapsed time.Duration
	for _, res := range b.history {
		if !res.Failed() {
			m.SuccessfulTasks++
		}
		elapsed += res.ExecutionTime
		m.LastExecution = res.Timestamp
	}
	if m.TotalTasks > 0 {
		m.SuccessRate = float64(m.SuccessfulTasks) / float64(m.TotalTasks)
		m.AvgExecutionTime = elapsed / time.Duration(m.TotalTasks)
	}
	return m
}

// invocation tracks one Process call.
type invocation struct {
	id      string
	started time.Time
	meta    map[string]interface{}
}

func (b *base) begin(in workflow.StageInput) *invocation {
	b.mu.Lock()
	b.status = workflow.WorkerWorking
	b.mu.Unlock()

	started := b.now()
	return &invocation{
		id:      ulid.Make().String(),
		started: started,
		meta: map[string]interface{}{
			"workflow_id": in.Request.WorkflowID,
		},
	}
}

func (b *base) finish(inv *invocation, out workflow.Output, status workflow.WorkerStatus) workflow.WorkerResult {
	end := b.now()
	inv.meta["invocation_id"] = inv.id
	res := workflow.WorkerResult{
		WorkerName:    b.name,
		Stage:         b.stage,
		Status:        status,
		Output:        out,
		Metadata:      inv.meta,
		ExecutionTime: end.Sub(inv.started),
		Timestamp:     end,
	}

	b.mu.Lock()
	b.status = status
	b.history = append(b.history, res)
	b.mu.Unlock()
	return res
}

func (b *base) succeed(inv *invocation, out workflow.Output) workflow.WorkerResult {
	return b.finish(inv, out, workflow.WorkerCompleted)
}

func (b *base) fail(inv *invocation, err error) workflow.WorkerResult {
	var pe *model.ProviderError
	if errors.As(err, &pe) {
		inv.meta["error_code"] = pe.Code
	}
	return b.finish(inv, workflow.ErrorOutput(err.Error()), workflow.WorkerError)
}

// invalid records a rejected invocation and returns the error Process must
// return.
func (b *base) invalid(field, msg string) error {
	b.mu.Lock()
	b.status = workflow.WorkerError
	b.mu.Unlock()
	return &workflow.InvalidInputError{Worker: b.name, Field: field, Message: msg}
}

// generate calls the model and reports failures as generation_error events.
func (b *base) generate(ctx context.Context, in workflow.StageInput, purpose, prompt string, maxTokens int) (string, error) {
	out, err := b.gen.Generate(ctx, prompt, maxTokens)
	if err == nil && trimFences(out) == "" {
		err = model.Unusable("", "empty reply")
	}
	if err != nil {
		b.emit.Emit(emit.Event{
			WorkflowID: in.Request.WorkflowID,
			Step:       b.stage.Step(),
			Stage:      string(b.stage),
			Msg:        "generation_error",
			Meta: map[string]interface{}{
				"worker":  b.name,
				"purpose": purpose,
				"error":   err.Error(),
			},
		})
		return "", fmt.Errorf("%s generation failed: %w", purpose, err)
	}
	return out, nil
}
