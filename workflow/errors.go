package workflow

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for workflow IDs the engine does not know.
var ErrNotFound = errors.New("workflow not found")

// ErrNotReady is returned by Result while a workflow is still running.
var ErrNotReady = errors.New("results not ready yet")

// EngineError reports a request the engine refused to run or an internal
// failure outside any stage.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Engine error codes.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeDuplicateWorkflow = "DUPLICATE_WORKFLOW"
	CodeStoreError        = "STORE_ERROR"
)

// InvalidInputError is returned by a worker whose required input is missing.
// It is the only error Worker.Process may return.
type InvalidInputError struct {
	Worker  string
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "missing required input"
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: invalid input %q: %s", e.Worker, e.Field, msg)
	}
	return fmt.Sprintf("%s: invalid input: %s", e.Worker, msg)
}

// Stage failure kinds.
const (
	FailureWorker       = "worker_error"
	FailureInvalidInput = "invalid_input"
	FailurePanic        = "panic"
	FailureCancelled    = "cancelled"
	FailureOrphaned     = "orphaned"
)

// StageError describes why a run ended Failed. Step is the pipeline
// position of Stage. For cancelled runs Stage is the stage that was about to
// start and no result for it is recorded.
type StageError struct {
	Stage   Stage  `json:"stage"`
	Step    int    `json:"step"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (step %d) failed: %s", e.Stage, e.Step, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
