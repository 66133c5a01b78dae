package workflow

import "time"

// WorkflowRecord is the state of one run.
//
// WorkerResults only grows, in pipeline order. Once Status is Completed or
// Failed the record is frozen.
type WorkflowRecord struct {
	WorkflowID         string         `json:"workflow_id"`
	Topic              string         `json:"topic"`
	Options            RunOptions     `json:"options"`
	Status             Status         `json:"status"`
	CurrentStep        int            `json:"current_step"`
	WorkerResults      []WorkerResult `json:"worker_results"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
	TotalExecutionTime time.Duration  `json:"total_execution_time"`
	Error              *StageError    `json:"error,omitempty"`
}

// Result returns the recorded result for stage.
func (r WorkflowRecord) Result(stage Stage) (WorkerResult, bool) {
	for _, res := range r.WorkerResults {
		if res.Stage == stage {
			return res, true
		}
	}
	return WorkerResult{}, false
}

// CompletedStages lists the stages whose result is Completed, in order.
func (r WorkflowRecord) CompletedStages() []Stage {
	stages := make([]Stage, 0, len(r.WorkerResults))
	for _, res := range r.WorkerResults {
		if res.Status == WorkerCompleted {
			stages = append(stages, res.Stage)
		}
	}
	return stages
}

// clone returns a copy that shares no mutable slices with r. Stage outputs
// are shared: they are never modified after a worker returns them.
func (r WorkflowRecord) clone() WorkflowRecord {
	c := r
	c.WorkerResults = append([]WorkerResult(nil), r.WorkerResults...)
	c.Options.FocusAreas = append([]string(nil), r.Options.FocusAreas...)
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return c
}

// WorkflowSummary is a compact view of a run for listings.
type WorkflowSummary struct {
	WorkflowID         string        `json:"workflow_id"`
	Topic              string        `json:"topic"`
	Status             Status        `json:"status"`
	CurrentStep        int           `json:"current_step"`
	StartTime          time.Time     `json:"start_time"`
	TotalExecutionTime time.Duration `json:"total_execution_time"`
}

func (r WorkflowRecord) summary() WorkflowSummary {
	return WorkflowSummary{
		WorkflowID:         r.WorkflowID,
		Topic:              r.Topic,
		Status:             r.Status,
		CurrentStep:        r.CurrentStep,
		StartTime:          r.StartTime,
		TotalExecutionTime: r.TotalExecutionTime,
	}
}
