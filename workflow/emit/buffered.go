package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by workflow ID.
//
// It backs tests and the per-workflow event history exposed by the API.
// Memory grows with history; call Clear once a workflow's events are no
// longer needed.
//
//	emitter := emit.NewBufferedEmitter()
//	engine, _ := workflow.New(team, workflow.WithEmitter(emitter))
//	rec, _ := engine.Run(ctx, req)
//	errs := emitter.GetHistoryWithFilter(rec.WorkflowID, emit.HistoryFilter{Msg: "stage_error"})
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// HistoryFilter selects events from a workflow's history. Empty fields match
// everything; set fields are combined with AND.
type HistoryFilter struct {
	Stage   string // exact stage name
	Msg     string // exact event name
	MinStep *int   // step >= MinStep
	MaxStep *int   // step <= MaxStep
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit appends the event to its workflow's history.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.WorkflowID] = append(b.events[event.WorkflowID], event)
}

// GetHistory returns a copy of all events for workflowID in emission order.
// The result is never nil.
func (b *BufferedEmitter) GetHistory(workflowID string) []Event {
	return b.GetHistoryWithFilter(workflowID, HistoryFilter{})
}

// GetHistoryWithFilter returns a copy of the events for workflowID that
// match filter, in emission order. The result is never nil.
func (b *BufferedEmitter) GetHistoryWithFilter(workflowID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Event, 0, len(b.events[workflowID]))
	for _, event := range b.events[workflowID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

func (f HistoryFilter) matches(event Event) bool {
	if f.Stage != "" && event.Stage != f.Stage {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// Clear drops the history of workflowID, or of every workflow when
// workflowID is empty.
func (b *BufferedEmitter) Clear(workflowID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if workflowID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, workflowID)
}
