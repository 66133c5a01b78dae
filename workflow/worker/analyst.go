package worker

import (
	"context"
	"sort"
	"strings"

	"github.com/dshills/research-team/workflow"
)

// Trend directions.
const (
	TrendEmerging  = "emerging"
	TrendGrowing   = "growing"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// Analyst turns research findings into insights, trends, gaps and
// prioritized recommendations.
type Analyst struct {
	*base
}

// NewAnalyst creates an Analyst.
func NewAnalyst(deps Deps, cfg Config) *Analyst {
	return &Analyst{base: newBase("Analyst", workflow.StageAnalysis, deps, cfg)}
}

// Describe implements workflow.Describer.
func (a *Analyst) Describe() workflow.Capability {
	return workflow.Capability{
		Name:           a.name,
		Stage:          a.stage,
		Description:    "Extracts insights, classifies trends and ranks strategic recommendations",
		RequiredInputs: []string{"research"},
		Capabilities:   []string{"insight_extraction", "trend_classification", "gap_analysis", "recommendation_ranking"},
		Config: map[string]interface{}{
			"confidence_weights": a.cfg.Confidence,
		},
	}
}

// Process implements workflow.Worker.
func (a *Analyst) Process(ctx context.Context, in workflow.StageInput) (workflow.WorkerResult, error) {
	if in.Research == nil {
		return workflow.WorkerResult{}, a.invalid("research", "research findings are required")
	}
	inv := a.begin(in)

	reply, err := a.generate(ctx, in, "analysis", analysisPrompt(in.Request.Topic, in.Request.Options, in.Research), a.cfg.MaxTokens)
	if err != nil {
		return a.fail(inv, err), nil
	}

	out, structured := parseAnalysis(reply, in.Research.Findings)
	out.Confidence = Confidence(in.Research.Findings, a.cfg.Confidence)

	inv.meta["structured_analysis"] = structured
	inv.meta["recommendations"] = len(out.Recommendations)
	return a.succeed(inv, workflow.Output{Analysis: &out}), nil
}

// Confidence scores findings by which fields are present. The result is in
// [0,1] and depends on nothing but the findings and weights.
func Confidence(f workflow.ResearchFindings, w ConfidenceWeights) float64 {
	var c float64
	if len(f.MainFindings) > 0 {
		c += w.MainFindings
	}
	if len(f.CurrentTrends) > 0 {
		c += w.CurrentTrends
	}
	if strings.TrimSpace(f.ExpertConsensus) != "" {
		c += w.ExpertConsensus
	}
	if strings.TrimSpace(f.DataInsights) != "" {
		c += w.DataInsights
	}
	if len(f.KnowledgeGaps) > 0 {
		c += w.KnowledgeGaps
	}
	return round2(clamp(c, 0, 1))
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// ClassifyDirection normalizes a free-form trend direction.
func ClassifyDirection(s string) string {
	l := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(l, "emerg"), strings.Contains(l, "new"), strings.Contains(l, "nascent"):
		return TrendEmerging
	case strings.Contains(l, "grow"), strings.Contains(l, "increas"), strings.Contains(l, "rising"), strings.Contains(l, "accelerat"):
		return TrendGrowing
	case strings.Contains(l, "declin"), strings.Contains(l, "decreas"), strings.Contains(l, "falling"), strings.Contains(l, "shrink"):
		return TrendDeclining
	default:
		return TrendStable
	}
}

type analysisReply struct {
	Insights []string `json:"insights"`
	Trends   []struct {
		Name      string `json:"name"`
		Direction string `json:"direction"`
		Evidence  string `json:"evidence"`
	} `json:"trends"`
	Gaps            []string                  `json:"gaps"`
	Recommendations []workflow.Recommendation `json:"recommendations"`
	Risks           []string                  `json:"risks"`
	Opportunities   []string                  `json:"opportunities"`
	Narrative       string                    `json:"narrative"`
}

// parseAnalysis decodes the analysis reply. Without JSON the reply's bullet
// lines become insights, the research trends are kept as emerging and each
// knowledge gap becomes a recommendation to close it.
func parseAnalysis(reply string, findings workflow.ResearchFindings) (workflow.AnalysisOutput, bool) {
	var ar analysisReply
	if err := decodeJSON(reply, &ar); err == nil {
		out := workflow.AnalysisOutput{
			Insights:      dedupe(ar.Insights),
			Gaps:          dedupe(ar.Gaps),
			Risks:         dedupe(ar.Risks),
			Opportunities: dedupe(ar.Opportunities),
			Narrative:     strings.TrimSpace(ar.Narrative),
		}
		for _, t := range ar.Trends {
			if strings.TrimSpace(t.Name) == "" {
				continue
			}
			out.Trends = append(out.Trends, workflow.Trend{
				Name:      strings.TrimSpace(t.Name),
				Direction: ClassifyDirection(t.Direction),
				Evidence:  strings.TrimSpace(t.Evidence),
			})
		}
		out.Recommendations = rankRecommendations(ar.Recommendations)
		return out, true
	}

	out := workflow.AnalysisOutput{
		Insights:  bulletItems(reply),
		Gaps:      append([]string(nil), findings.KnowledgeGaps...),
		Narrative: trimFences(reply),
	}
	if len(out.Insights) == 0 {
		out.Insights = append([]string(nil), findings.MainFindings...)
	}
	for _, t := range findings.CurrentTrends {
		out.Trends = append(out.Trends, workflow.Trend{Name: t, Direction: TrendEmerging})
	}
	recs := make([]workflow.Recommendation, 0, len(findings.KnowledgeGaps))
	for _, gap := range findings.KnowledgeGaps {
		recs = append(recs, workflow.Recommendation{
			Action:      "Close the knowledge gap: " + gap,
			Rationale:   "Identified as missing from current research",
			Impact:      "medium",
			Difficulty:  "medium",
			TimeHorizon: "medium-term",
		})
	}
	out.Recommendations = rankRecommendations(recs)
	return out, false
}

// rankRecommendations drops empty actions, assigns missing priorities after
// the highest given one, and sorts by priority keeping reply order on ties.
func rankRecommendations(recs []workflow.Recommendation) []workflow.Recommendation {
	out := make([]workflow.Recommendation, 0, len(recs))
	maxPriority := 0
	for _, r := range recs {
		r.Action = strings.TrimSpace(r.Action)
		if r.Action == "" {
			continue
		}
		if r.Priority > maxPriority {
			maxPriority = r.Priority
		}
		out = append(out, r)
	}
	for i := range out {
		if out[i].Priority <= 0 {
			maxPriority++
			out[i].Priority = maxPriority
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}
