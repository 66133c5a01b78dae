package worker

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/tool"
)

// Researcher gathers sources for the topic and synthesizes findings.
//
// It asks the model for search queries, runs them against the Searcher in
// parallel, buckets the snippets by source type and asks the model to
// synthesize the bucketed material into ResearchFindings. Individual search
// failures are skipped; a generation failure fails the stage.
type Researcher struct {
	*base
	search tool.Searcher
}

// NewResearcher creates a Researcher.
func NewResearcher(deps Deps, cfg Config) *Researcher {
	deps = deps.withDefaults()
	return &Researcher{
		base:   newBase("Researcher", workflow.StageResearch, deps, cfg),
		search: deps.Searcher,
	}
}

// Describe implements workflow.Describer.
func (r *Researcher) Describe() workflow.Capability {
	return workflow.Capability{
		Name:           r.name,
		Stage:          r.stage,
		Description:    "Generates search queries, gathers sources and synthesizes research findings",
		RequiredInputs: []string{"topic"},
		Capabilities:   []string{"query_generation", "web_search", "source_classification", "findings_synthesis"},
		Config: map[string]interface{}{
			"search_backend":     r.search.Name(),
			"max_queries":        r.cfg.MaxQueries,
			"results_per_query":  r.cfg.ResultsPerQuery,
			"search_concurrency": r.cfg.SearchConcurrency,
		},
	}
}

// Process implements workflow.Worker.
func (r *Researcher) Process(ctx context.Context, in workflow.StageInput) (workflow.WorkerResult, error) {
	topic := strings.TrimSpace(in.Request.Topic)
	if topic == "" {
		return workflow.WorkerResult{}, r.invalid("topic", "topic is empty")
	}
	opts := in.Request.Options
	inv := r.begin(in)

	reply, err := r.generate(ctx, in, "query", queryPrompt(topic, opts, r.cfg.MaxQueries), r.cfg.MaxTokens)
	if err != nil {
		return r.fail(inv, err), nil
	}
	queries := r.selectQueries(topic, opts, reply)

	results, failed := r.runSearches(ctx, in, queries)
	summary := summarize(results)
	sources := uniqueSources(results)

	reply, err = r.generate(ctx, in, "synthesis", synthesisPrompt(topic, opts, summary), r.cfg.MaxTokens)
	if err != nil {
		return r.fail(inv, err), nil
	}
	findings, structured := parseFindings(reply, summary)

	inv.meta["queries_executed"] = len(queries)
	inv.meta["failed_searches"] = failed
	inv.meta["sources_found"] = len(sources)
	inv.meta["search_backend"] = r.search.Name()
	inv.meta["structured_synthesis"] = structured

	return r.succeed(inv, workflow.Output{Research: &workflow.ResearchOutput{
		Topic:    topic,
		Findings: findings,
		Sources:  sources,
		Queries:  queries,
		Summary:  summary,
	}}), nil
}

// selectQueries keeps up to MaxQueries generated queries, tops them up to
// MinQueries with fallbacks and then trims to the run's source budget.
func (r *Researcher) selectQueries(topic string, opts workflow.RunOptions, reply string) []string {
	queries := dedupe(listItems(reply))
	if len(queries) > r.cfg.MaxQueries {
		queries = queries[:r.cfg.MaxQueries]
	}
	if len(queries) < r.cfg.MinQueries {
		queries = dedupe(append(queries, fallbackQueries(topic, opts)...))
		if len(queries) > r.cfg.MinQueries {
			queries = queries[:r.cfg.MinQueries]
		}
	}
	if limit := opts.MaxResearchSources; limit >= 0 && len(queries) > limit {
		queries = queries[:limit]
	}
	return queries
}

func fallbackQueries(topic string, opts workflow.RunOptions) []string {
	out := []string{topic}
	for _, area := range opts.FocusAreas {
		out = append(out, topic+" "+area)
	}
	return append(out, topic+" latest developments", topic+" challenges and opportunities")
}

// runSearches runs every query with bounded parallelism. Results keep query
// order. Failed queries are reported and skipped.
func (r *Researcher) runSearches(ctx context.Context, in workflow.StageInput, queries []string) ([]tool.SearchResult, int) {
	slots := make([][]tool.SearchResult, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	if r.cfg.SearchConcurrency > 0 {
		g.SetLimit(r.cfg.SearchConcurrency)
	}
	for i, q := range queries {
		g.Go(func() error {
			slots[i], errs[i] = r.search.Search(ctx, q, r.cfg.ResultsPerQuery)
			return nil
		})
	}
	_ = g.Wait()

	var (
		results []tool.SearchResult
		failed  int
	)
	for i, err := range errs {
		if err != nil {
			failed++
			r.emit.Emit(emit.Event{
				WorkflowID: in.Request.WorkflowID,
				Step:       r.stage.Step(),
				Stage:      string(r.stage),
				Msg:        "search_error",
				Meta: map[string]interface{}{
					"worker": r.name,
					"query":  queries[i],
					"error":  err.Error(),
				},
			})
			continue
		}
		results = append(results, slots[i]...)
	}
	return results, failed
}

func summarize(results []tool.SearchResult) workflow.ContentSummary {
	s := workflow.ContentSummary{SourceDiversity: map[string]int{}}
	for _, res := range results {
		kind := res.SourceType
		if kind == "" {
			kind = tool.ClassifySource(res.URL)
		}
		s.SourceDiversity[kind]++

		snippet := strings.TrimSpace(res.Snippet)
		if snippet == "" {
			continue
		}
		switch kind {
		case tool.SourceAcademic:
			s.KeyPoints = append(s.KeyPoints, snippet)
		case tool.SourceIndustry:
			s.Statistics = append(s.Statistics, snippet)
		case tool.SourceNews:
			s.RecentDevelopments = append(s.RecentDevelopments, snippet)
		default:
			s.ExpertOpinions = append(s.ExpertOpinions, snippet)
		}
	}
	return s
}

func uniqueSources(results []tool.SearchResult) []string {
	urls := make([]string, 0, len(results))
	for _, res := range results {
		urls = append(urls, res.URL)
	}
	return dedupe(urls)
}

type findingsReply struct {
	MainFindings    []string `json:"main_findings"`
	CurrentTrends   []string `json:"current_trends"`
	ExpertConsensus string   `json:"expert_consensus"`
	DataInsights    string   `json:"data_insights"`
	KnowledgeGaps   []string `json:"knowledge_gaps"`
}

// parseFindings decodes the synthesis reply. A reply that is not JSON falls
// back to its bullet lines as main findings, with trends and data insights
// taken from the content summary. The bool reports whether JSON was used.
func parseFindings(reply string, summary workflow.ContentSummary) (workflow.ResearchFindings, bool) {
	var fr findingsReply
	if err := decodeJSON(reply, &fr); err == nil {
		return workflow.ResearchFindings{
			MainFindings:    dedupe(fr.MainFindings),
			CurrentTrends:   dedupe(fr.CurrentTrends),
			ExpertConsensus: strings.TrimSpace(fr.ExpertConsensus),
			DataInsights:    strings.TrimSpace(fr.DataInsights),
			KnowledgeGaps:   dedupe(fr.KnowledgeGaps),
		}, true
	}

	main := bulletItems(reply)
	if len(main) == 0 {
		main = listItems(reply)
		if len(main) > 5 {
			main = main[:5]
		}
	}
	f := workflow.ResearchFindings{
		MainFindings:  dedupe(main),
		CurrentTrends: append([]string(nil), summary.RecentDevelopments...),
	}
	if len(summary.Statistics) > 0 {
		f.DataInsights = strings.Join(summary.Statistics, " ")
	}
	if len(summary.ExpertOpinions) > 0 {
		f.ExpertConsensus = fmt.Sprintf("%d sources offered expert commentary", len(summary.ExpertOpinions))
	}
	return f, false
}
