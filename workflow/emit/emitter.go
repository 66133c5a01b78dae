// Package emit provides event emission and observability for workflow runs.
package emit

// Emitter receives observability events from the workflow engine and its
// workers.
//
// Implementations must be safe for concurrent use: independent workflow runs
// emit from their own goroutines. Emit must not block the pipeline for long
// and must never panic; backend failures are swallowed or reported out of band.
type Emitter interface {
	// Emit sends one event to the backend.
	Emit(event Event)
}

// MultiEmitter fans each event out to several emitters in order.
//
// Nil entries are skipped, so optional backends can be passed unconditionally:
//
//	emitter := emit.NewMultiEmitter(
//	    emit.NewLogEmitter(os.Stderr, jsonLogs),
//	    otelEmitter, // may be nil when tracing is disabled
//	)
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter returns an Emitter that forwards to every non-nil emitter.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	kept := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return &MultiEmitter{emitters: kept}
}

// Emit forwards the event to each configured emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
