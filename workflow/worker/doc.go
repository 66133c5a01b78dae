// Package worker implements the four pipeline workers: Researcher,
// Analyst, Writer and Reviewer.
//
// Workers reach a language model only through model.Generator and the web
// only through tool.Searcher, so the whole pipeline runs offline against
// model.MockGenerator and tool.MockSearch:
//
//	factory := worker.NewTeamFactory(worker.Deps{
//	    Generator: gen,
//	    Searcher:  search,
//	    Emitter:   emitter,
//	}, worker.DefaultConfig())
//
//	engine, err := workflow.New(factory,
//	    workflow.WithRequestValidator(worker.ValidateRequest(worker.DefaultConfig())),
//	)
//
// Generation failures never escape Process as errors. They become a
// WorkerResult with status error and the message in Output.Error. A missing
// upstream output is the only error Process returns.
package worker
