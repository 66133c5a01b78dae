package workflow

import (
	"context"
	"time"
)

// WorkerResult is the outcome of one worker invocation. It is immutable
// once returned.
//
// Status is WorkerError exactly when Output carries only its Error field.
// ExecutionTime is the wall-clock duration of the Process call and is set
// on failures too.
type WorkerResult struct {
	WorkerName    string                 `json:"worker_name"`
	Stage         Stage                  `json:"stage"`
	Status        WorkerStatus           `json:"status"`
	Output        Output                 `json:"output"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Failed reports whether the invocation ended in error.
func (r WorkerResult) Failed() bool {
	return r.Status == WorkerError
}

// StageInput is what a worker receives: the original request plus the
// outputs of every stage that ran before it. Fields of later stages are
// always nil.
type StageInput struct {
	Request  Request
	Research *ResearchOutput
	Analysis *AnalysisOutput
	Content  *ContentOutput
}

// merge folds a completed stage's output into the input of the next stage.
func (in StageInput) merge(out Output) StageInput {
	if out.Research != nil {
		in.Research = out.Research
	}
	if out.Analysis != nil {
		in.Analysis = out.Analysis
	}
	if out.Content != nil {
		in.Content = out.Content
	}
	return in
}

// Worker implements one pipeline stage.
//
// Process must not return generation failures as errors: they are reported
// in-band as a WorkerResult with Status WorkerError and Output.Error set.
// The only error Process may return is *InvalidInputError, before any
// external call is made. The engine converts that into a stage failure.
type Worker interface {
	Name() string
	Process(ctx context.Context, in StageInput) (WorkerResult, error)
}

// Capability describes a worker for introspection.
type Capability struct {
	Name           string                 `json:"name"`
	Stage          Stage                  `json:"stage"`
	Description    string                 `json:"description,omitempty"`
	RequiredInputs []string               `json:"required_inputs,omitempty"`
	Capabilities   []string               `json:"capabilities,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

// Describer is implemented by workers that can describe themselves.
type Describer interface {
	Describe() Capability
}

// Team is the set of workers for one run.
type Team struct {
	Researcher Worker
	Analyst    Worker
	Writer     Worker
	Reviewer   Worker
}

// Worker returns the worker for stage, or nil.
func (t Team) Worker(stage Stage) Worker {
	switch stage {
	case StageResearch:
		return t.Researcher
	case StageAnalysis:
		return t.Analyst
	case StageContent:
		return t.Writer
	case StageQuality:
		return t.Reviewer
	}
	return nil
}

// TeamFactory builds a fresh Team. The engine calls it once per run so
// run-scoped worker state is never shared between concurrent runs.
type TeamFactory func() Team
