package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/research-team/workflow"
)

// Score sources reported in QualityOutput.ScoreSource.
const (
	ScoreSourceModel     = "model"
	ScoreSourceHeuristic = "heuristic"
)

// Reviewer scores the pipeline output and decides approval against the
// run's quality threshold. Approval is advisory: a rejected report still
// completes the run.
//
// Missing upstream outputs score zero on the criteria that depend on them
// instead of failing the stage.
type Reviewer struct {
	*base
}

// NewReviewer creates a Reviewer.
func NewReviewer(deps Deps, cfg Config) *Reviewer {
	return &Reviewer{base: newBase("Reviewer", workflow.StageQuality, deps, cfg)}
}

// Describe implements workflow.Describer.
func (r *Reviewer) Describe() workflow.Capability {
	return workflow.Capability{
		Name:           r.name,
		Stage:          r.stage,
		Description:    "Scores the report on five criteria, grades it and checks the approval threshold",
		RequiredInputs: []string{"content"},
		Capabilities:   []string{"quality_scoring", "grading", "improvement_suggestions"},
		Config: map[string]interface{}{
			"criteria_weights":  r.cfg.Criteria,
			"suggestion_cutoff": r.cfg.SuggestionCutoff,
		},
	}
}

// Process implements workflow.Worker.
func (r *Reviewer) Process(ctx context.Context, in workflow.StageInput) (workflow.WorkerResult, error) {
	inv := r.begin(in)
	topic := in.Request.Topic

	digest := reviewDigest{Topic: topic}
	var report string
	if in.Research != nil {
		digest.Findings = len(in.Research.Findings.MainFindings)
		digest.Sources = len(in.Research.Sources)
	}
	if in.Analysis != nil {
		digest.Recommendations = len(in.Analysis.Recommendations)
	}
	if in.Content != nil {
		digest.Sections = in.Content.Sections
		digest.WordCount = in.Content.WordCount
		digest.TargetLength = in.Content.TargetLength
		report = in.Content.Report
	}

	reply, err := r.generate(ctx, in, "review", reviewPrompt(topic, digest, report), r.cfg.MaxTokens)
	if err != nil {
		return r.fail(inv, err), nil
	}

	heuristic := HeuristicScores(in, r.cfg)
	criteria, summary, source := mergeScores(reply, heuristic)

	q := &workflow.QualityOutput{
		Criteria:    criteria,
		Phases:      phaseScores(criteria),
		Overall:     OverallScore(criteria, r.cfg.Criteria),
		Threshold:   in.Request.Options.ThresholdScore(),
		ScoreSource: source,
	}
	q.Grade = r.cfg.Grade(q.Overall)
	q.Approved = q.Overall >= q.Threshold
	q.ApprovalStatus = workflow.ApprovalNeedsImprovement
	if q.Approved {
		q.ApprovalStatus = workflow.ApprovalApproved
	}
	q.Suggestions = suggestions(topic, q.Phases, r.cfg.SuggestionCutoff)
	q.Summary = summary
	if q.Summary == "" {
		q.Summary = fmt.Sprintf("Quality assessment of %s analysis completed with overall score of %.1f%%", topic, q.Overall)
	}

	inv.meta["overall_score"] = q.Overall
	inv.meta["approved"] = q.Approved
	inv.meta["score_source"] = source
	return r.succeed(inv, workflow.Output{Quality: q}), nil
}

// OverallScore is the weighted mean of the criteria rounded to one decimal.
func OverallScore(c workflow.CriteriaScores, w CriteriaWeights) float64 {
	total := w.sum()
	if total <= 0 {
		return 0
	}
	weighted := c.Accuracy*w.Accuracy +
		c.Completeness*w.Completeness +
		c.Clarity*w.Clarity +
		c.Structure*w.Structure +
		c.Actionability*w.Actionability
	return round1(clamp(weighted/total, 0, 100))
}

// HeuristicScores computes criteria from the pipeline outputs alone.
//
//   - accuracy: sources and main findings, each saturating at five
//   - completeness: word count against the target length
//   - clarity: average sentence length, full marks up to twenty words
//   - structure: share of planned sections present as headings
//   - actionability: recommendations, saturating at five
func HeuristicScores(in workflow.StageInput, cfg Config) workflow.CriteriaScores {
	var c workflow.CriteriaScores
	if in.Research != nil {
		sources := clamp(float64(len(in.Research.Sources))/5, 0, 1)
		findings := clamp(float64(len(in.Research.Findings.MainFindings))/5, 0, 1)
		c.Accuracy = 100 * (sources + findings) / 2
	}

	recs := 0
	if in.Analysis != nil {
		recs = len(in.Analysis.Recommendations)
	}
	if in.Content != nil {
		target := in.Content.TargetLength
		if target <= 0 {
			target = cfg.MinContentLength
		}
		if target > 0 {
			c.Completeness = 100 * clamp(float64(in.Content.WordCount)/float64(target), 0, 1)
		}
		c.Clarity = clarity(in.Content.Report)
		c.Structure = structure(in.Content.Report, in.Content.Sections)
		if recs == 0 {
			recs = len(in.Content.Recommendations)
		}
	}
	c.Actionability = 100 * clamp(float64(recs)/5, 0, 1)

	c.Accuracy = round1(c.Accuracy)
	c.Completeness = round1(c.Completeness)
	c.Clarity = round1(c.Clarity)
	c.Structure = round1(c.Structure)
	c.Actionability = round1(c.Actionability)
	return c
}

func clarity(report string) float64 {
	words := len(strings.Fields(report))
	if words == 0 {
		return 0
	}
	sentences := strings.Count(report, ".") + strings.Count(report, "!") + strings.Count(report, "?")
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(words) / float64(sentences)
	if avg <= 20 {
		return 100
	}
	return clamp(100-(avg-20)*3, 0, 100)
}

func structure(report string, sections []string) float64 {
	if len(sections) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, h := range headings(report) {
		present[strings.ToLower(h)] = true
	}
	found := 0
	for _, s := range sections {
		if present[strings.ToLower(s)] {
			found++
		}
	}
	return 100 * float64(found) / float64(len(sections))
}

type reviewReply struct {
	Accuracy      *float64 `json:"accuracy"`
	Completeness  *float64 `json:"completeness"`
	Clarity       *float64 `json:"clarity"`
	Structure     *float64 `json:"structure"`
	Actionability *float64 `json:"actionability"`
	Summary       string   `json:"summary"`
}

// mergeScores takes the model's scores where it gave them and the heuristic
// elsewhere. Every score is clamped to [0,100].
func mergeScores(reply string, heuristic workflow.CriteriaScores) (workflow.CriteriaScores, string, string) {
	var rr reviewReply
	if err := decodeJSON(reply, &rr); err != nil {
		return heuristic, "", ScoreSourceHeuristic
	}
	used := false
	pick := func(model *float64, fallback float64) float64 {
		if model == nil {
			return fallback
		}
		used = true
		return round1(clamp(*model, 0, 100))
	}
	c := workflow.CriteriaScores{
		Accuracy:      pick(rr.Accuracy, heuristic.Accuracy),
		Completeness:  pick(rr.Completeness, heuristic.Completeness),
		Clarity:       pick(rr.Clarity, heuristic.Clarity),
		Structure:     pick(rr.Structure, heuristic.Structure),
		Actionability: pick(rr.Actionability, heuristic.Actionability),
	}
	if !used {
		return heuristic, strings.TrimSpace(rr.Summary), ScoreSourceHeuristic
	}
	return c, strings.TrimSpace(rr.Summary), ScoreSourceModel
}

func phaseScores(c workflow.CriteriaScores) workflow.PhaseScores {
	return workflow.PhaseScores{
		Research: c.Accuracy,
		Analysis: c.Actionability,
		Content:  round1((c.Completeness + c.Clarity + c.Structure) / 3),
	}
}

func suggestions(topic string, p workflow.PhaseScores, cutoff float64) []workflow.Suggestion {
	var out []workflow.Suggestion
	if p.Research < cutoff {
		out = append(out, workflow.Suggestion{
			Area:       "Research",
			Priority:   "Medium",
			Suggestion: fmt.Sprintf("Expand research sources for %s to include more academic and international perspectives", topic),
		})
	}
	if p.Analysis < cutoff {
		out = append(out, workflow.Suggestion{
			Area:       "Analysis",
			Priority:   "High",
			Suggestion: fmt.Sprintf("Develop additional scenarios and stress-test assumptions for %s analysis", topic),
		})
	}
	if p.Content < cutoff {
		out = append(out, workflow.Suggestion{
			Area:       "Content",
			Priority:   "Low",
			Suggestion: fmt.Sprintf("Add visual elements and charts to enhance %s presentation", topic),
		})
	}
	return out
}
