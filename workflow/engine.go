package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/store"
)

// storeTimeout bounds a single snapshot write.
const storeTimeout = 10 * time.Second

// Engine sequences the four pipeline stages and tracks every run it starts.
//
// An Engine is safe for concurrent use. Each run gets its own Team from the
// factory and its own record, so concurrent runs never share worker state.
type Engine struct {
	team  TeamFactory
	cfg   engineConfig
	runs  *registry
	stats *stats
}

// New creates an Engine that builds a fresh Team for every run.
func New(team TeamFactory, opts ...Option) (*Engine, error) {
	if team == nil {
		return nil, &EngineError{Message: "team factory is required", Code: CodeInvalidRequest}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Engine{
		team:  team,
		cfg:   cfg,
		runs:  newRegistry(cfg.registryTTL, cfg.now),
		stats: newStats(),
	}, nil
}

// Run executes a workflow to completion and returns its final record.
//
// The returned error is non-nil only when the request is rejected before
// anything runs. A run that fails at some stage is reported through the
// record: Status is Failed, Error names the stage, and WorkerResults holds
// every stage up to and including the failing one.
//
// Cancelling ctx stops the run before the next stage starts; the stage in
// flight is allowed to finish.
func (e *Engine) Run(ctx context.Context, req Request) (WorkflowRecord, error) {
	req, err := e.prepare(req)
	if err != nil {
		return WorkflowRecord{}, err
	}

	r, runCtx, err := e.register(ctx, req)
	if err != nil {
		return WorkflowRecord{}, err
	}

	e.execute(runCtx, r, req)
	return r.snapshot(), nil
}

// Submit starts a workflow in the background and returns its ID. The run
// is detached from ctx's cancellation; use Cancel to stop it.
func (e *Engine) Submit(ctx context.Context, req Request) (string, error) {
	req, err := e.prepare(req)
	if err != nil {
		return "", err
	}

	r, runCtx, err := e.register(context.WithoutCancel(ctx), req)
	if err != nil {
		return "", err
	}

	go e.execute(runCtx, r, req)
	return req.WorkflowID, nil
}

// Status returns the current record of a run. Runs no longer held in
// memory are loaded from the store when one is configured.
func (e *Engine) Status(ctx context.Context, workflowID string) (WorkflowRecord, error) {
	if r, ok := e.runs.get(workflowID); ok {
		return r.snapshot(), nil
	}
	return e.archived(ctx, workflowID)
}

// Result returns the report of a finished run: a FinalOutput for Completed
// runs and a PartialOutput for Failed ones. It returns ErrNotReady while
// the run is in progress and ErrNotFound for unknown IDs.
func (e *Engine) Result(ctx context.Context, workflowID string) (Report, error) {
	rec, err := e.Status(ctx, workflowID)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(rec)
}

// Wait blocks until the run finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context, workflowID string) (WorkflowRecord, error) {
	r, ok := e.runs.get(workflowID)
	if !ok {
		return e.archived(ctx, workflowID)
	}

	select {
	case <-r.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return WorkflowRecord{}, ctx.Err()
	}
}

// Cancel asks a running workflow to stop before its next stage. Cancelling
// a finished run is a no-op.
func (e *Engine) Cancel(workflowID string) error {
	r, ok := e.runs.get(workflowID)
	if !ok {
		return ErrNotFound
	}
	r.cancel()
	return nil
}

// List summarizes every run held in memory, oldest first.
func (e *Engine) List() []WorkflowSummary {
	runs := e.runs.list()
	out := make([]WorkflowSummary, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.snapshot().summary())
	}
	return out
}

// Capabilities describes the workers of a freshly built team, in pipeline
// order.
func (e *Engine) Capabilities() []Capability {
	team := e.team()
	caps := make([]Capability, 0, len(Stages))
	for _, stage := range Stages {
		w := team.Worker(stage)
		if w == nil {
			continue
		}
		c := Capability{Name: w.Name()}
		if d, ok := w.(Describer); ok {
			c = d.Describe()
		}
		c.Stage = stage
		caps = append(caps, c)
	}
	return caps
}

// SystemMetrics reports run counts and per-worker performance since the
// engine was created.
func (e *Engine) SystemMetrics() SystemMetrics {
	return e.stats.snapshot()
}

func (e *Engine) prepare(req Request) (Request, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return req, &EngineError{Message: "topic is required", Code: CodeInvalidRequest}
	}

	req.Options = req.Options.WithDefaults(e.cfg.defaults)
	if t := req.Options.QualityThreshold; t != nil && (*t < 0 || *t > 100) {
		return req, &EngineError{Message: fmt.Sprintf("quality threshold %v out of range", *t), Code: CodeInvalidRequest}
	}
	if req.Options.MaxResearchSources < 0 {
		return req, &EngineError{Message: "max research sources must be positive", Code: CodeInvalidRequest}
	}
	if e.cfg.validate != nil {
		if err := e.cfg.validate(req); err != nil {
			return req, &EngineError{Message: err.Error(), Code: CodeInvalidRequest}
		}
	}

	if req.WorkflowID == "" {
		req.WorkflowID = e.cfg.newID()
	}
	return req, nil
}

func (e *Engine) register(parent context.Context, req Request) (*run, context.Context, error) {
	ctx, cancel := context.WithCancel(parent)
	r := newRun(WorkflowRecord{
		WorkflowID:    req.WorkflowID,
		Topic:         req.Topic,
		Options:       req.Options,
		Status:        StatusInitialized,
		WorkerResults: []WorkerResult{},
		StartTime:     e.cfg.now(),
	}, cancel)

	if !e.runs.add(req.WorkflowID, r) {
		cancel()
		return nil, nil, &EngineError{
			Message: "workflow already exists: " + req.WorkflowID,
			Code:    CodeDuplicateWorkflow,
		}
	}

	e.stats.runStarted()
	e.cfg.metrics.WorkflowStarted()
	return r, ctx, nil
}

// execute runs the pipeline for r. It is the only writer of r's record.
func (e *Engine) execute(ctx context.Context, r *run, req Request) {
	defer close(r.done)
	defer r.cancel()
	defer e.cfg.metrics.WorkflowFinished()

	id := req.WorkflowID
	team := e.team()
	in := StageInput{Request: req}

	e.emit(id, 0, "", "workflow_start", map[string]interface{}{
		"topic":       req.Topic,
		"depth":       string(req.Options.Depth),
		"report_type": string(req.Options.ReportType),
	})

	for i, stage := range Stages {
		step := i + 1

		if err := ctx.Err(); err != nil {
			e.fail(r, &StageError{
				Stage:   stage,
				Step:    step,
				Kind:    FailureCancelled,
				Message: "workflow cancelled",
				Cause:   err,
			})
			return
		}

		r.update(func(rec *WorkflowRecord) {
			rec.Status = StatusRunning
			rec.CurrentStep = step
		})

		w := team.Worker(stage)
		workerName := string(stage)
		if w != nil {
			workerName = w.Name()
		}
		e.emit(id, step, stage, "stage_start", map[string]interface{}{"worker": workerName})

		res, serr := e.invoke(ctx, w, workerName, stage, step, in)

		e.stats.recordResult(res)
		e.cfg.metrics.RecordStageLatency(stage, res.ExecutionTime, res.Status)

		rec := r.update(func(rec *WorkflowRecord) {
			rec.WorkerResults = append(rec.WorkerResults, res)
		})

		if serr != nil {
			e.emit(id, step, stage, "stage_error", map[string]interface{}{
				"worker":      res.WorkerName,
				"kind":        serr.Kind,
				"error":       serr.Message,
				"duration_ms": res.ExecutionTime.Milliseconds(),
			})
			e.fail(r, serr)
			return
		}

		e.save(rec, string(stage))
		e.emit(id, step, stage, "stage_end", map[string]interface{}{
			"worker":      res.WorkerName,
			"status":      string(res.Status),
			"duration_ms": res.ExecutionTime.Milliseconds(),
		})

		in = in.merge(res.Output)
	}

	e.complete(r)
}

// invoke calls one worker and turns every way it can fail into an Error
// result plus a StageError. The worker context ignores run cancellation so
// cancellation only takes effect between stages.
func (e *Engine) invoke(ctx context.Context, w Worker, name string, stage Stage, step int, in StageInput) (res WorkerResult, serr *StageError) {
	started := e.cfg.now()

	if w == nil {
		msg := "no worker configured for stage " + string(stage)
		return e.errorResult(name, stage, msg, started), &StageError{Stage: stage, Step: step, Kind: FailureWorker, Message: msg}
	}

	workerCtx := context.WithoutCancel(ctx)
	if e.cfg.stageTimeout > 0 {
		var cancel context.CancelFunc
		workerCtx, cancel = context.WithTimeout(workerCtx, e.cfg.stageTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprintf("worker panicked: %v", p)
			res = e.errorResult(name, stage, msg, started)
			serr = &StageError{Stage: stage, Step: step, Kind: FailurePanic, Message: msg}
		}
	}()

	out, err := w.Process(workerCtx, in)
	if err != nil {
		kind := FailureWorker
		var invalid *InvalidInputError
		if errors.As(err, &invalid) {
			kind = FailureInvalidInput
		}
		return e.errorResult(name, stage, err.Error(), started),
			&StageError{Stage: stage, Step: step, Kind: kind, Message: err.Error(), Cause: err}
	}

	res = e.normalize(out, name, stage, started)
	if res.Status == WorkerError {
		return res, &StageError{Stage: stage, Step: step, Kind: FailureWorker, Message: res.Output.Error}
	}
	return res, nil
}

// normalize enforces the WorkerResult invariants on whatever a worker
// returned: the result is tagged with its stage, Completed results carry
// exactly their stage's payload, and Error results carry only the message.
func (e *Engine) normalize(res WorkerResult, name string, stage Stage, started time.Time) WorkerResult {
	if res.WorkerName == "" {
		res.WorkerName = name
	}
	res.Stage = stage
	if res.ExecutionTime <= 0 {
		res.ExecutionTime = e.cfg.now().Sub(started)
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = started
	}

	switch res.Status {
	case WorkerCompleted:
		switch {
		case res.Output.Error != "":
			res.Status = WorkerError
			res.Output = ErrorOutput(res.Output.Error)
		case !res.Output.For(stage):
			res.Status = WorkerError
			res.Output = ErrorOutput(fmt.Sprintf("worker returned no %s output", stage))
		default:
			res.Output = res.Output.only(stage)
		}
	case WorkerError:
		res.Output = ErrorOutput(res.Output.Error)
	default:
		msg := fmt.Sprintf("worker returned non-terminal status %q", res.Status)
		res.Status = WorkerError
		res.Output = ErrorOutput(msg)
	}
	return res
}

func (e *Engine) errorResult(name string, stage Stage, msg string, started time.Time) WorkerResult {
	return WorkerResult{
		WorkerName:    name,
		Stage:         stage,
		Status:        WorkerError,
		Output:        ErrorOutput(msg),
		ExecutionTime: e.cfg.now().Sub(started),
		Timestamp:     started,
	}
}

func (e *Engine) fail(r *run, serr *StageError) {
	end := e.cfg.now()
	rec := r.update(func(rec *WorkflowRecord) {
		rec.Status = StatusFailed
		rec.Error = serr
		rec.EndTime = end
		rec.TotalExecutionTime = end.Sub(rec.StartTime)
	})

	e.save(rec, terminalStage(rec))
	e.stats.runEnded(StatusFailed)
	e.cfg.metrics.RecordWorkflow(StatusFailed)

	msg := "workflow_failed"
	if serr.Kind == FailureCancelled {
		msg = "workflow_cancelled"
	} else {
		e.cfg.metrics.IncrementStageFailures(serr.Stage)
	}
	e.emit(rec.WorkflowID, rec.CurrentStep, "", msg, map[string]interface{}{
		"failed_stage": string(serr.Stage),
		"kind":         serr.Kind,
		"error":        serr.Message,
		"duration_ms":  rec.TotalExecutionTime.Milliseconds(),
	})
}

func (e *Engine) complete(r *run) {
	end := e.cfg.now()
	rec := r.update(func(rec *WorkflowRecord) {
		rec.Status = StatusCompleted
		rec.EndTime = end
		rec.TotalExecutionTime = end.Sub(rec.StartTime)
	})

	e.save(rec, terminalStage(rec))
	e.stats.runEnded(StatusCompleted)
	e.cfg.metrics.RecordWorkflow(StatusCompleted)

	meta := map[string]interface{}{
		"duration_ms": rec.TotalExecutionTime.Milliseconds(),
	}
	if res, ok := rec.Result(StageQuality); ok && res.Output.Quality != nil {
		meta["quality_score"] = res.Output.Quality.Overall
		meta["approved"] = res.Output.Quality.Approved
		e.cfg.metrics.ObserveQualityScore(res.Output.Quality.Overall)
	}
	e.emit(rec.WorkflowID, rec.CurrentStep, "", "workflow_complete", meta)
}

// save archives rec at its current step. Store failures are reported as
// events and never affect the run.
func (e *Engine) save(rec WorkflowRecord, stage string) {
	if e.cfg.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := e.cfg.store.SaveStep(ctx, rec.WorkflowID, rec.CurrentStep, stage, rec); err != nil {
		e.emit(rec.WorkflowID, rec.CurrentStep, "", "store_error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (e *Engine) archived(ctx context.Context, workflowID string) (WorkflowRecord, error) {
	if e.cfg.store == nil {
		return WorkflowRecord{}, ErrNotFound
	}
	rec, _, err := e.cfg.store.LoadLatest(ctx, workflowID)
	if errors.Is(err, store.ErrNotFound) {
		return WorkflowRecord{}, ErrNotFound
	}
	if err != nil {
		return WorkflowRecord{}, &EngineError{Message: "load archived workflow: " + err.Error(), Code: CodeStoreError}
	}
	if !rec.Status.Terminal() {
		rec = orphaned(rec)
	}
	return rec, nil
}

// orphaned marks a stored snapshot of an unfinished run as Failed. The
// registry only evicts finished runs, so a non-terminal snapshot that is
// not in memory was left behind by a process that stopped mid-run. The
// failed stage is the one after the last recorded result.
func orphaned(rec WorkflowRecord) WorkflowRecord {
	next := len(rec.WorkerResults)
	if next >= len(Stages) {
		next = len(Stages) - 1
	}
	rec.Status = StatusFailed
	rec.Error = &StageError{
		Stage:   Stages[next],
		Step:    next + 1,
		Kind:    FailureOrphaned,
		Message: "workflow was interrupted before it finished",
	}
	return rec
}

func (e *Engine) emit(workflowID string, step int, stage Stage, msg string, meta map[string]interface{}) {
	e.cfg.emitter.Emit(emit.Event{
		WorkflowID: workflowID,
		Step:       step,
		Stage:      string(stage),
		Msg:        msg,
		Meta:       meta,
	})
}

// terminalStage names the snapshot written when a run ends: the stage of
// the step it stopped at, or "workflow" if no stage started.
func terminalStage(rec WorkflowRecord) string {
	if rec.CurrentStep >= 1 && rec.CurrentStep <= len(Stages) {
		return string(Stages[rec.CurrentStep-1])
	}
	return "workflow"
}
