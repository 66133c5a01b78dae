package worker

import (
	"time"

	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/model"
	"github.com/dshills/research-team/workflow/tool"
)

// Deps are the external capabilities workers call.
type Deps struct {
	Generator model.Generator
	Searcher  tool.Searcher

	// Emitter receives generation_error and search_error events.
	// Defaults to a NullEmitter.
	Emitter emit.Emitter

	// Clock defaults to time.Now.
	Clock func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Emitter == nil {
		d.Emitter = emit.NewNullEmitter()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Searcher == nil {
		d.Searcher = &tool.MockSearch{}
	}
	return d
}

// NewTeamFactory returns a factory building a fresh Researcher, Analyst,
// Writer and Reviewer for each run. Every generator attempt is bounded by
// cfg.GenerationTimeout and retried per cfg.Retry.
func NewTeamFactory(deps Deps, cfg Config) workflow.TeamFactory {
	deps.Generator = model.WithRetry(model.WithTimeout(deps.Generator, cfg.GenerationTimeout), cfg.Retry)
	return func() workflow.Team {
		return workflow.Team{
			Researcher: NewResearcher(deps, cfg),
			Analyst:    NewAnalyst(deps, cfg),
			Writer:     NewWriter(deps, cfg),
			Reviewer:   NewReviewer(deps, cfg),
		}
	}
}
