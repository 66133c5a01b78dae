package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/store"
)

func TestEngine_New(t *testing.T) {
	t.Run("nil team factory", func(t *testing.T) {
		var engineErr *EngineError
		if _, err := New(nil); !errors.As(err, &engineErr) {
			t.Fatalf("err = %v, want *EngineError", err)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		team := newStubTeam().factory()
		tests := []struct {
			name string
			opt  Option
		}{
			{"nil emitter", WithEmitter(nil)},
			{"negative stage timeout", WithStageTimeout(-time.Second)},
			{"negative ttl", WithRegistryTTL(-time.Second)},
			{"nil clock", WithClock(nil)},
			{"nil id generator", WithIDGenerator(nil)},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := New(team, tt.opt); err == nil {
					t.Error("expected error")
				}
			})
		}
	})
}

func TestEngine_Run_AllStagesComplete(t *testing.T) {
	team := newStubTeam()
	clock := newFakeClock()
	engine, err := New(team.factory(), WithClock(clock.Now), WithIDGenerator(func() string { return "wf-1" }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := engine.Run(context.Background(), Request{Topic: "  Renewable Energy  "})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %q, want wf-1", rec.WorkflowID)
	}
	if rec.Topic != "Renewable Energy" {
		t.Errorf("Topic = %q, want trimmed topic", rec.Topic)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
	if rec.CurrentStep != 4 {
		t.Errorf("CurrentStep = %d, want 4", rec.CurrentStep)
	}
	if rec.Error != nil {
		t.Errorf("Error = %v, want nil", rec.Error)
	}
	if len(rec.WorkerResults) != 4 {
		t.Fatalf("len(WorkerResults) = %d, want 4", len(rec.WorkerResults))
	}
	for i, res := range rec.WorkerResults {
		if res.Stage != Stages[i] {
			t.Errorf("WorkerResults[%d].Stage = %s, want %s", i, res.Stage, Stages[i])
		}
		if res.Status != WorkerCompleted {
			t.Errorf("WorkerResults[%d].Status = %s", i, res.Status)
		}
		if !res.Output.For(res.Stage) {
			t.Errorf("WorkerResults[%d] has no %s payload", i, res.Stage)
		}
	}
	if rec.TotalExecutionTime <= 0 {
		t.Errorf("TotalExecutionTime = %v, want > 0", rec.TotalExecutionTime)
	}
	if !rec.EndTime.After(rec.StartTime) {
		t.Error("EndTime should be after StartTime")
	}
	if rec.Options.Depth != DepthMedium || rec.Options.ReportType != ReportComprehensive {
		t.Errorf("Options = %+v, want defaults applied", rec.Options)
	}
}

func TestEngine_Run_AppliesDefaultOptions(t *testing.T) {
	var got RunOptions
	team := newStubTeam().on(StageResearch, func(_ context.Context, in StageInput) (WorkerResult, error) {
		got = in.Request.Options
		return okResult(StageResearch, in), nil
	})
	engine, _ := New(team.factory())

	_, err := engine.Run(context.Background(), Request{
		Topic:   "AI",
		Options: RunOptions{Depth: DepthDeep, FocusAreas: []string{"healthcare"}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Depth != DepthDeep {
		t.Errorf("Depth = %s, want deep", got.Depth)
	}
	if got.ReportType != ReportComprehensive {
		t.Errorf("ReportType = %s, want comprehensive_report", got.ReportType)
	}
	if got.Audience != "general" {
		t.Errorf("Audience = %q, want general", got.Audience)
	}
	if got.QualityThreshold == nil || *got.QualityThreshold != 0.8 || got.MaxResearchSources != 3 {
		t.Errorf("threshold/sources = %v/%d", got.QualityThreshold, got.MaxResearchSources)
	}
	if len(got.FocusAreas) != 1 || got.FocusAreas[0] != "healthcare" {
		t.Errorf("FocusAreas = %v", got.FocusAreas)
	}
}

func TestEngine_Run_StageInputsSeeOnlyEarlierOutputs(t *testing.T) {
	type seen struct{ research, analysis, content bool }
	observed := make(map[Stage]seen)
	var mu sync.Mutex

	team := newStubTeam()
	for _, stage := range Stages {
		stage := stage
		team.on(stage, func(_ context.Context, in StageInput) (WorkerResult, error) {
			mu.Lock()
			observed[stage] = seen{in.Research != nil, in.Analysis != nil, in.Content != nil}
			mu.Unlock()
			return okResult(stage, in), nil
		})
	}

	engine, _ := New(team.factory())
	if _, err := engine.Run(context.Background(), Request{Topic: "Ocean Shipping"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := map[Stage]seen{
		StageResearch: {false, false, false},
		StageAnalysis: {true, false, false},
		StageContent:  {true, true, false},
		StageQuality:  {true, true, true},
	}
	for stage, w := range want {
		if observed[stage] != w {
			t.Errorf("%s saw %+v, want %+v", stage, observed[stage], w)
		}
	}
}

func TestEngine_Run_FailFastKeepsPartialResults(t *testing.T) {
	for k, failing := range Stages {
		failedStep := k + 1
		t.Run(string(failing), func(t *testing.T) {
			team := newStubTeam().on(failing, func(context.Context, StageInput) (WorkerResult, error) {
				return errResult("generation failed: quota exceeded"), nil
			})
			engine, _ := New(team.factory())

			rec, err := engine.Run(context.Background(), Request{Topic: "Gene Therapy"})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if rec.Status != StatusFailed {
				t.Errorf("Status = %s, want failed", rec.Status)
			}
			if rec.CurrentStep != failedStep {
				t.Errorf("CurrentStep = %d, want %d", rec.CurrentStep, failedStep)
			}
			if len(rec.WorkerResults) != failedStep {
				t.Fatalf("len(WorkerResults) = %d, want %d", len(rec.WorkerResults), failedStep)
			}
			for i, res := range rec.WorkerResults {
				want := WorkerCompleted
				if i == k {
					want = WorkerError
				}
				if res.Status != want {
					t.Errorf("WorkerResults[%d].Status = %s, want %s", i, res.Status, want)
				}
			}
			last := rec.WorkerResults[k]
			if last.Output.Error != "generation failed: quota exceeded" {
				t.Errorf("error output = %q", last.Output.Error)
			}
			if last.Output.For(failing) {
				t.Error("error result must carry only the error field")
			}
			for _, later := range Stages[failedStep:] {
				if _, ok := rec.Result(later); ok {
					t.Errorf("stage %s should be absent", later)
				}
				if team.calls(later) != 0 {
					t.Errorf("stage %s worker should not run", later)
				}
			}
			if rec.Error == nil || rec.Error.Stage != failing || rec.Error.Step != failedStep {
				t.Errorf("Error = %+v, want stage %s step %d", rec.Error, failing, failedStep)
			}
			if rec.Error != nil && rec.Error.Kind != FailureWorker {
				t.Errorf("Error.Kind = %s, want %s", rec.Error.Kind, FailureWorker)
			}
		})
	}
}

func TestEngine_Run_InvalidInputBecomesStageFailure(t *testing.T) {
	team := newStubTeam().on(StageAnalysis, func(context.Context, StageInput) (WorkerResult, error) {
		return WorkerResult{}, &InvalidInputError{Worker: "analysis_worker", Field: "research", Message: "research output is required"}
	})
	engine, _ := New(team.factory())

	rec, err := engine.Run(context.Background(), Request{Topic: "Edge Computing"})
	if err != nil {
		t.Fatalf("Run returned %v; invalid input must not escape the engine", err)
	}
	if rec.Status != StatusFailed || rec.CurrentStep != 2 {
		t.Fatalf("Status/Step = %s/%d, want failed/2", rec.Status, rec.CurrentStep)
	}
	if rec.Error.Kind != FailureInvalidInput {
		t.Errorf("Kind = %s, want %s", rec.Error.Kind, FailureInvalidInput)
	}
	var invalid *InvalidInputError
	if !errors.As(rec.Error, &invalid) || invalid.Field != "research" {
		t.Errorf("StageError should unwrap to the InvalidInputError, got %v", rec.Error.Cause)
	}

	res, ok := rec.Result(StageAnalysis)
	if !ok || res.Status != WorkerError || !strings.Contains(res.Output.Error, "research output is required") {
		t.Errorf("analysis result = %+v", res)
	}
	if res.WorkerName != "analysis_worker" {
		t.Errorf("WorkerName = %q", res.WorkerName)
	}
}

func TestEngine_Run_RecoversWorkerPanic(t *testing.T) {
	team := newStubTeam().on(StageContent, func(context.Context, StageInput) (WorkerResult, error) {
		panic("template missing")
	})
	engine, _ := New(team.factory())

	rec, err := engine.Run(context.Background(), Request{Topic: "Robotics"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Status != StatusFailed || rec.Error.Kind != FailurePanic {
		t.Fatalf("Status/Kind = %s/%v", rec.Status, rec.Error)
	}
	res, _ := rec.Result(StageContent)
	if !strings.Contains(res.Output.Error, "template missing") {
		t.Errorf("error = %q", res.Output.Error)
	}
}

func TestEngine_Run_NormalizesWorkerResults(t *testing.T) {
	tests := []struct {
		name    string
		result  WorkerResult
		wantErr string
	}{
		{
			name:    "completed without payload",
			result:  WorkerResult{Status: WorkerCompleted},
			wantErr: "worker returned no research output",
		},
		{
			name:    "non-terminal status",
			result:  WorkerResult{Status: WorkerWorking},
			wantErr: `non-terminal status "working"`,
		},
		{
			name:    "completed with error text",
			result:  WorkerResult{Status: WorkerCompleted, Output: Output{Error: "partial garbage"}},
			wantErr: "partial garbage",
		},
		{
			name:    "error without message",
			result:  WorkerResult{Status: WorkerError, Output: Output{Research: &ResearchOutput{}}},
			wantErr: "unknown error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			team := newStubTeam().on(StageResearch, func(context.Context, StageInput) (WorkerResult, error) {
				return tt.result, nil
			})
			engine, _ := New(team.factory())

			rec, _ := engine.Run(context.Background(), Request{Topic: "Batteries"})
			res, ok := rec.Result(StageResearch)
			if !ok {
				t.Fatal("research result missing")
			}
			if res.Status != WorkerError {
				t.Errorf("Status = %s, want error", res.Status)
			}
			if !strings.Contains(res.Output.Error, tt.wantErr) {
				t.Errorf("Output.Error = %q, want it to contain %q", res.Output.Error, tt.wantErr)
			}
			if res.Output.Research != nil {
				t.Error("error result must not carry a payload")
			}
			if res.ExecutionTime <= 0 {
				t.Error("ExecutionTime should be set")
			}
		})
	}
}

func TestEngine_Run_DropsForeignPayloads(t *testing.T) {
	team := newStubTeam().on(StageResearch, func(ctx context.Context, in StageInput) (WorkerResult, error) {
		res := okResult(StageResearch, in)
		res.Output.Quality = &QualityOutput{Overall: 100}
		return res, nil
	})
	engine, _ := New(team.factory())

	rec, _ := engine.Run(context.Background(), Request{Topic: "Fusion"})
	res, _ := rec.Result(StageResearch)
	if res.Output.Quality != nil {
		t.Error("research result should keep only its own payload")
	}
}

func TestEngine_Run_QualityGateIsAdvisory(t *testing.T) {
	team := newStubTeam().on(StageQuality, func(context.Context, StageInput) (WorkerResult, error) {
		return WorkerResult{
			Status: WorkerCompleted,
			Output: Output{Quality: &QualityOutput{Overall: 60, Grade: "D", Threshold: 80, Approved: false, ApprovalStatus: ApprovalNeedsImprovement}},
		}, nil
	})
	engine, _ := New(team.factory())

	rec, err := engine.Run(context.Background(), Request{Topic: "Space Tourism"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed", rec.Status)
	}

	report, err := BuildReport(rec)
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if report.Final == nil || report.Final.Quality.Approved {
		t.Errorf("Final quality = %+v, want approved=false", report.Final)
	}
}

func TestEngine_Run_RejectsInvalidRequests(t *testing.T) {
	validator := func(req Request) error {
		if req.Options.Depth != DepthBasic && req.Options.Depth != DepthMedium && req.Options.Depth != DepthDeep {
			return fmt.Errorf("unknown depth %q", req.Options.Depth)
		}
		return nil
	}
	team := newStubTeam()
	engine, _ := New(team.factory(), WithRequestValidator(validator))

	tests := []struct {
		name string
		req  Request
	}{
		{"empty topic", Request{Topic: "   "}},
		{"threshold above 100", Request{Topic: "x", Options: RunOptions{QualityThreshold: Threshold(120)}}},
		{"negative threshold", Request{Topic: "x", Options: RunOptions{QualityThreshold: Threshold(-0.1)}}},
		{"negative sources", Request{Topic: "x", Options: RunOptions{MaxResearchSources: -2}}},
		{"validator rejects", Request{Topic: "x", Options: RunOptions{Depth: "extreme"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Run(context.Background(), tt.req)
			var engineErr *EngineError
			if !errors.As(err, &engineErr) || engineErr.Code != CodeInvalidRequest {
				t.Errorf("err = %v, want INVALID_REQUEST", err)
			}
		})
	}

	if team.calls(StageResearch) != 0 {
		t.Error("no worker should run for rejected requests")
	}
	if got := engine.SystemMetrics().TotalWorkflows; got != 0 {
		t.Errorf("TotalWorkflows = %d, want 0", got)
	}
}

func TestEngine_Run_DuplicateWorkflowID(t *testing.T) {
	engine, _ := New(newStubTeam().factory())

	if _, err := engine.Run(context.Background(), Request{WorkflowID: "fixed", Topic: "a"}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	_, err := engine.Run(context.Background(), Request{WorkflowID: "fixed", Topic: "b"})
	var engineErr *EngineError
	if !errors.As(err, &engineErr) || engineErr.Code != CodeDuplicateWorkflow {
		t.Errorf("err = %v, want DUPLICATE_WORKFLOW", err)
	}
}

func TestEngine_Run_ProgressIsMonotonic(t *testing.T) {
	emitter := emit.NewBufferedEmitter()
	var engine *Engine
	var steps []int

	team := newStubTeam()
	for _, stage := range Stages {
		stage := stage
		team.on(stage, func(ctx context.Context, in StageInput) (WorkerResult, error) {
			rec, err := engine.Status(ctx, in.Request.WorkflowID)
			if err == nil {
				steps = append(steps, rec.CurrentStep)
			}
			return okResult(stage, in), nil
		})
	}
	engine, _ = New(team.factory(), WithEmitter(emitter), WithIDGenerator(func() string { return "mono" }))

	rec, _ := engine.Run(context.Background(), Request{Topic: "Supply Chains"})
	steps = append(steps, rec.CurrentStep)

	if want := []int{1, 2, 3, 4, 4}; fmt.Sprint(steps) != fmt.Sprint(want) {
		t.Errorf("observed steps %v, want %v", steps, want)
	}

	prev := 0
	for _, ev := range emitter.GetHistory("mono") {
		if ev.Step < prev || ev.Step > 4 {
			t.Errorf("event %s step %d after %d", ev.Msg, ev.Step, prev)
		}
		prev = ev.Step
	}
}

func TestEngine_Run_EmitsEvents(t *testing.T) {
	emitter := emit.NewBufferedEmitter()
	team := newStubTeam().on(StageContent, func(context.Context, StageInput) (WorkerResult, error) {
		return errResult("writer offline"), nil
	})
	engine, _ := New(team.factory(), WithEmitter(emitter), WithIDGenerator(func() string { return "ev" }))

	if _, err := engine.Run(context.Background(), Request{Topic: "Drones"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var msgs []string
	for _, ev := range emitter.GetHistory("ev") {
		msgs = append(msgs, ev.Msg)
	}
	want := []string{
		"workflow_start",
		"stage_start", "stage_end",
		"stage_start", "stage_end",
		"stage_start", "stage_error",
		"workflow_failed",
	}
	if strings.Join(msgs, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v", msgs, want)
	}

	errs := emitter.GetHistoryWithFilter("ev", emit.HistoryFilter{Msg: "stage_error"})
	if len(errs) != 1 || errs[0].Stage != "content" || errs[0].Meta["error"] != "writer offline" {
		t.Errorf("stage_error events = %+v", errs)
	}
}

func TestEngine_SubmitStatusResult(t *testing.T) {
	release := make(chan struct{})
	team := newStubTeam().on(StageAnalysis, func(_ context.Context, in StageInput) (WorkerResult, error) {
		<-release
		return okResult(StageAnalysis, in), nil
	})
	engine, _ := New(team.factory())
	ctx := context.Background()

	if _, err := engine.Status(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status(missing) = %v, want ErrNotFound", err)
	}
	if _, err := engine.Result(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Result(missing) = %v, want ErrNotFound", err)
	}

	id, err := engine.Submit(ctx, Request{Topic: "Urban Farming"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id == "" {
		t.Fatal("Submit returned empty ID")
	}

	waitFor(t, func() bool { return team.calls(StageAnalysis) == 1 })

	rec, err := engine.Status(ctx, id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rec.Status != StatusRunning || rec.CurrentStep != 2 {
		t.Errorf("Status/Step = %s/%d, want running/2", rec.Status, rec.CurrentStep)
	}
	if _, err := engine.Result(ctx, id); !errors.Is(err, ErrNotReady) {
		t.Errorf("Result while running = %v, want ErrNotReady", err)
	}

	close(release)
	rec, err = engine.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Fatalf("Status = %s, want completed", rec.Status)
	}

	report, err := engine.Result(ctx, id)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if report.Final == nil || report.Partial != nil {
		t.Fatalf("report = %+v, want final only", report)
	}
	if report.Final.Metadata.FinalWordCount != 5 {
		t.Errorf("FinalWordCount = %d, want 5", report.Final.Metadata.FinalWordCount)
	}
}

func TestEngine_Submit_DetachedFromCallerContext(t *testing.T) {
	engine, _ := New(newStubTeam().factory())
	ctx, cancel := context.WithCancel(context.Background())

	id, err := engine.Submit(ctx, Request{Topic: "Detached"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cancel()

	rec, err := engine.Wait(context.Background(), id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
}

func TestEngine_Cancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	emitter := emit.NewBufferedEmitter()

	team := newStubTeam().on(StageResearch, func(ctx context.Context, in StageInput) (WorkerResult, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return errResult("worker saw cancellation"), nil
		}
		return okResult(StageResearch, in), nil
	})
	engine, _ := New(team.factory(), WithEmitter(emitter))

	if err := engine.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel(missing) = %v, want ErrNotFound", err)
	}

	id, _ := engine.Submit(context.Background(), Request{Topic: "Cancellable"})
	<-started
	if err := engine.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	rec, _ := engine.Wait(context.Background(), id)
	if rec.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", rec.Status)
	}
	if rec.CurrentStep != 1 {
		t.Errorf("CurrentStep = %d, want 1", rec.CurrentStep)
	}
	if rec.Error == nil || rec.Error.Kind != FailureCancelled || rec.Error.Stage != StageAnalysis {
		t.Errorf("Error = %+v, want cancelled before analysis", rec.Error)
	}
	if !errors.Is(rec.Error, context.Canceled) {
		t.Error("cancelled StageError should unwrap to context.Canceled")
	}
	if len(rec.WorkerResults) != 1 || rec.WorkerResults[0].Status != WorkerCompleted {
		t.Errorf("in-flight stage should finish normally, got %+v", rec.WorkerResults)
	}
	if team.calls(StageAnalysis) != 0 {
		t.Error("analysis should not start after cancel")
	}
	if evs := emitter.GetHistoryWithFilter(id, emit.HistoryFilter{Msg: "workflow_cancelled"}); len(evs) != 1 {
		t.Errorf("workflow_cancelled events = %d, want 1", len(evs))
	}

	if err := engine.Cancel(id); err != nil {
		t.Errorf("Cancel on finished run = %v, want nil", err)
	}
}

func TestEngine_Run_CancelledBeforeStart(t *testing.T) {
	team := newStubTeam()
	engine, _ := New(team.factory())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec, err := engine.Run(ctx, Request{Topic: "Never"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Status != StatusFailed || rec.CurrentStep != 0 || len(rec.WorkerResults) != 0 {
		t.Errorf("record = %s step %d results %d", rec.Status, rec.CurrentStep, len(rec.WorkerResults))
	}
	if rec.Error == nil || rec.Error.Stage != StageResearch || rec.Error.Step != 1 {
		t.Errorf("Error = %+v", rec.Error)
	}

	report, err := BuildReport(rec)
	if err != nil || report.Partial == nil {
		t.Fatalf("BuildReport = %+v, %v", report, err)
	}
	if report.Summary.TotalStepsCompleted != 0 {
		t.Errorf("TotalStepsCompleted = %d", report.Summary.TotalStepsCompleted)
	}
}

func TestEngine_StageTimeout(t *testing.T) {
	team := newStubTeam().on(StageResearch, func(ctx context.Context, in StageInput) (WorkerResult, error) {
		select {
		case <-ctx.Done():
			return errResult("generation timed out"), nil
		case <-time.After(2 * time.Second):
			return okResult(StageResearch, in), nil
		}
	})
	engine, _ := New(team.factory(), WithStageTimeout(20*time.Millisecond))

	rec, _ := engine.Run(context.Background(), Request{Topic: "Slow"})
	if rec.Status != StatusFailed || rec.CurrentStep != 1 {
		t.Fatalf("Status/Step = %s/%d, want failed/1", rec.Status, rec.CurrentStep)
	}
	res, _ := rec.Result(StageResearch)
	if res.Output.Error != "generation timed out" {
		t.Errorf("error = %q", res.Output.Error)
	}
}

func TestEngine_ConcurrentRunsAreIsolated(t *testing.T) {
	engine, _ := New(newStubTeam().factory())
	ctx := context.Background()

	topics := make([]string, 12)
	ids := make([]string, len(topics))
	for i := range topics {
		topics[i] = fmt.Sprintf("topic-%02d", i)
		id, err := engine.Submit(ctx, Request{Topic: topics[i]})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		ids[i] = id
	}

	for i, id := range ids {
		rec, err := engine.Wait(ctx, id)
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if rec.Topic != topics[i] || rec.Status != StatusCompleted {
			t.Errorf("run %s: topic %q status %s", id, rec.Topic, rec.Status)
		}
		research, _ := rec.Result(StageResearch)
		if research.Output.Research.Topic != topics[i] {
			t.Errorf("run %s research topic = %q", id, research.Output.Research.Topic)
		}
		content, _ := rec.Result(StageContent)
		for j, other := range topics {
			if j != i && strings.Contains(content.Output.Content.Report, other) {
				t.Errorf("run %s report mentions %s", id, other)
			}
		}
	}

	if got := len(engine.List()); got != len(topics) {
		t.Errorf("List() = %d entries, want %d", got, len(topics))
	}
}

func TestEngine_StoreSnapshots(t *testing.T) {
	st := store.NewMemStore[WorkflowRecord]()
	engine, _ := New(newStubTeam().factory(), WithStore(st), WithIDGenerator(func() string { return "snap" }))

	if _, err := engine.Run(context.Background(), Request{Topic: "Archive"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	history, err := st.History(context.Background(), "snap")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("len(history) = %d, want 4", len(history))
	}
	for i, h := range history {
		if h.Step != i+1 || h.Stage != string(Stages[i]) {
			t.Errorf("history[%d] = step %d stage %s", i, h.Step, h.Stage)
		}
		if len(h.State.WorkerResults) != i+1 {
			t.Errorf("history[%d] has %d results, want %d", i, len(h.State.WorkerResults), i+1)
		}
	}

	latest, step, err := st.LoadLatest(context.Background(), "snap")
	if err != nil || step != 4 || latest.Status != StatusCompleted {
		t.Errorf("LoadLatest = %s step %d err %v, want completed at 4", latest.Status, step, err)
	}
}

func TestEngine_StoreErrorsDoNotFailRuns(t *testing.T) {
	emitter := emit.NewBufferedEmitter()
	engine, _ := New(newStubTeam().factory(),
		WithStore(failingStore{}),
		WithEmitter(emitter),
		WithIDGenerator(func() string { return "flaky" }),
	)

	rec, err := engine.Run(context.Background(), Request{Topic: "Resilience"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", rec.Status)
	}
	if evs := emitter.GetHistoryWithFilter("flaky", emit.HistoryFilter{Msg: "store_error"}); len(evs) != 5 {
		t.Errorf("store_error events = %d, want 5", len(evs))
	}

	var engineErr *EngineError
	if _, err := engine.Status(context.Background(), "unknown"); !errors.As(err, &engineErr) || engineErr.Code != CodeStoreError {
		t.Errorf("Status(unknown) = %v, want STORE_ERROR", err)
	}
}

func TestEngine_RegistryTTLFallsBackToStore(t *testing.T) {
	clock := newFakeClock()
	st := store.NewMemStore[WorkflowRecord]()
	engine, _ := New(newStubTeam().factory(),
		WithClock(clock.Now),
		WithRegistryTTL(time.Hour),
		WithStore(st),
		WithIDGenerator(func() string { return "ttl" }),
	)
	ctx := context.Background()

	if _, err := engine.Run(ctx, Request{Topic: "Eviction"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(engine.List()) != 1 {
		t.Fatal("run should be listed before the TTL expires")
	}

	clock.Advance(2 * time.Hour)

	if len(engine.List()) != 0 {
		t.Error("run should be evicted after the TTL")
	}
	rec, err := engine.Status(ctx, "ttl")
	if err != nil {
		t.Fatalf("Status after eviction: %v", err)
	}
	if rec.Status != StatusCompleted || len(rec.WorkerResults) != 4 {
		t.Errorf("archived record = %s with %d results", rec.Status, len(rec.WorkerResults))
	}
	if report, err := engine.Result(ctx, "ttl"); err != nil || report.Final == nil {
		t.Errorf("Result after eviction = %+v, %v", report, err)
	}
	if err := engine.Cancel("ttl"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel after eviction = %v, want ErrNotFound", err)
	}
}

func TestEngine_InterruptedRunFromStoreIsFailed(t *testing.T) {
	st := store.NewMemStore[WorkflowRecord]()
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	left := WorkflowRecord{
		WorkflowID:  "gone",
		Topic:       "Restarted mid-run",
		Status:      StatusRunning,
		CurrentStep: 2,
		StartTime:   start,
		WorkerResults: []WorkerResult{
			{WorkerName: "researcher", Stage: StageResearch, Status: WorkerCompleted, Timestamp: start},
			{WorkerName: "analyst", Stage: StageAnalysis, Status: WorkerCompleted, Timestamp: start},
		},
	}
	if err := st.SaveStep(ctx, left.WorkflowID, 2, string(StageAnalysis), left); err != nil {
		t.Fatalf("SaveStep: %v", err)
	}

	// A fresh engine has nothing in memory, as after a process restart.
	engine, _ := New(newStubTeam().factory(), WithStore(st))

	rec, err := engine.Status(ctx, "gone")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if rec.Status != StatusFailed {
		t.Fatalf("Status = %s, want %s", rec.Status, StatusFailed)
	}
	if rec.Error == nil || rec.Error.Kind != FailureOrphaned {
		t.Fatalf("Error = %+v, want kind %s", rec.Error, FailureOrphaned)
	}
	if rec.Error.Stage != StageContent || rec.Error.Step != 3 {
		t.Errorf("failed at %s/%d, want %s/3", rec.Error.Stage, rec.Error.Step, StageContent)
	}

	report, err := engine.Result(ctx, "gone")
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if report.Partial == nil || len(report.Partial.Results) != 2 {
		t.Fatalf("Result = %+v, want a partial report with 2 results", report)
	}
	if report.Partial.FailedStage != StageContent {
		t.Errorf("FailedStage = %s, want %s", report.Partial.FailedStage, StageContent)
	}
	if _, err := engine.Wait(ctx, "gone"); err != nil {
		t.Errorf("Wait: %v", err)
	}

	// The stored snapshot itself is left untouched.
	raw, _, err := st.LoadLatest(ctx, "gone")
	if err != nil || raw.Status != StatusRunning {
		t.Errorf("stored snapshot = %s, %v", raw.Status, err)
	}
}

func TestEngine_RegistryTTLWithoutStore(t *testing.T) {
	clock := newFakeClock()
	engine, _ := New(newStubTeam().factory(), WithClock(clock.Now), WithRegistryTTL(time.Minute))

	rec, _ := engine.Run(context.Background(), Request{Topic: "Forgotten"})
	clock.Advance(time.Hour)

	if _, err := engine.Status(context.Background(), rec.WorkflowID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Status = %v, want ErrNotFound", err)
	}
}

func TestEngine_CapabilitiesAndSystemMetrics(t *testing.T) {
	team := newStubTeam().on(StageQuality, func(context.Context, StageInput) (WorkerResult, error) {
		return errResult("reviewer unavailable"), nil
	})
	engine, _ := New(team.factory())

	caps := engine.Capabilities()
	if len(caps) != 4 {
		t.Fatalf("len(Capabilities) = %d, want 4", len(caps))
	}
	for i, c := range caps {
		if c.Stage != Stages[i] || c.Description == "" {
			t.Errorf("caps[%d] = %+v", i, c)
		}
	}

	_, _ = engine.Run(context.Background(), Request{Topic: "one"})
	_, _ = engine.Run(context.Background(), Request{Topic: "two"})

	m := engine.SystemMetrics()
	if m.TotalWorkflows != 2 || m.FailedWorkflows != 2 || m.ActiveWorkflows != 0 || m.CompletedWorkflows != 0 {
		t.Errorf("workflow counts = %+v", m)
	}
	if len(m.Workers) != 4 {
		t.Fatalf("len(Workers) = %d, want 4", len(m.Workers))
	}
	research := m.Workers[0]
	if research.Stage != StageResearch || research.TotalTasks != 2 || research.SuccessRate != 1 {
		t.Errorf("research metrics = %+v", research)
	}
	quality := m.Workers[3]
	if quality.TotalTasks != 2 || quality.SuccessfulTasks != 0 || quality.SuccessRate != 0 {
		t.Errorf("quality metrics = %+v", quality)
	}
	if quality.AvgExecutionTime <= 0 {
		t.Errorf("AvgExecutionTime = %v", quality.AvgExecutionTime)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
