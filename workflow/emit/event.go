package emit

// Event is an observability record emitted while a workflow runs.
//
// Workflow-level events (workflow_start, workflow_complete, workflow_failed,
// workflow_cancelled) carry an empty Stage and the step reached so far.
// Stage-level events (stage_start, stage_end, stage_error) carry the stage
// name and its 1-indexed pipeline position. Workers emit generation_error
// and search_error for failures they absorb.
type Event struct {
	// WorkflowID identifies the run that emitted this event.
	WorkflowID string

	// Step is the pipeline position (1..4). Zero before the first stage starts.
	Step int

	// Stage is the pipeline stage name, empty for workflow-level events.
	Stage string

	// Msg is the event name, e.g. "stage_start".
	Msg string

	// Meta carries event specific data. Common keys:
	//   - "topic": workflow topic
	//   - "worker": producing worker name
	//   - "status": worker or workflow status
	//   - "duration_ms": elapsed milliseconds
	//   - "error": error message
	Meta map[string]interface{}
}
