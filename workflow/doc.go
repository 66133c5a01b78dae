// Package workflow runs the four-stage research report pipeline.
//
// A run turns a topic into a report by invoking four workers in a fixed
// order: research, analysis, content and quality. Each worker sees the
// original request plus every earlier stage's output, never a later one.
// The pipeline is fail-fast: the first stage that returns an Error result
// ends the run as Failed, and every stage recorded up to that point is kept
// so callers get a partial result instead of nothing.
//
// # Basic usage
//
//	engine, err := workflow.New(worker.NewTeamFactory(gen, search, worker.DefaultConfig()),
//	    workflow.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rec, err := engine.Run(ctx, workflow.Request{Topic: "Renewable Energy"})
//	if err != nil {
//	    log.Fatal(err) // invalid request; stage failures live in rec
//	}
//	fmt.Println(rec.Status, rec.CurrentStep)
//
// # Asynchronous runs
//
// Submit starts a run in the background and returns its ID. Status reports
// progress and Result returns the FinalOutput once the run is Completed, the
// PartialOutput once it is Failed, ErrNotReady while it is still running and
// ErrNotFound for IDs the engine has never seen.
//
//	id, _ := engine.Submit(ctx, workflow.Request{Topic: "Quantum Networking"})
//	rec, _ := engine.Wait(ctx, id)
//	report, _ := engine.Result(ctx, id)
//
// # Observability
//
// The engine emits emit.Event values for run and stage milestones, updates
// optional Prometheus metrics, and archives a snapshot of the record after
// every stage when a store.Store is configured.
package workflow
