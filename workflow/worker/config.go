package worker

import (
	"fmt"
	"sort"
	"time"

	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/model"
)

// ConfidenceWeights are the increments the Analyst adds to its confidence
// for each findings field that is present.
type ConfidenceWeights struct {
	MainFindings    float64 `json:"main_findings"`
	CurrentTrends   float64 `json:"current_trends"`
	ExpertConsensus float64 `json:"expert_consensus"`
	DataInsights    float64 `json:"data_insights"`
	KnowledgeGaps   float64 `json:"knowledge_gaps"`
}

// CriteriaWeights weight the Reviewer's criteria in the overall score.
type CriteriaWeights struct {
	Accuracy      float64 `json:"accuracy"`
	Completeness  float64 `json:"completeness"`
	Clarity       float64 `json:"clarity"`
	Structure     float64 `json:"structure"`
	Actionability float64 `json:"actionability"`
}

func (w CriteriaWeights) sum() float64 {
	return w.Accuracy + w.Completeness + w.Clarity + w.Structure + w.Actionability
}

// GradeBand maps a minimum overall score to a letter grade.
type GradeBand struct {
	Min   float64 `json:"min"`
	Grade string  `json:"grade"`
}

// Config holds the tunables and lookup tables shared by the workers.
type Config struct {
	// MaxTokens is the generation budget for a regular call.
	MaxTokens int

	// ReportTokenLimit caps the budget of the Writer's report call.
	ReportTokenLimit int

	// GenerationTimeout bounds each generator call. Zero disables it.
	GenerationTimeout time.Duration

	// Retry repeats generator calls that fail with a retryable provider
	// error. The zero value makes a single attempt.
	Retry model.RetryPolicy

	// MaxQueries caps how many generated queries are kept.
	MaxQueries int

	// MinQueries is the floor topped up with fallback queries.
	MinQueries int

	// ResultsPerQuery is the limit passed to the Searcher.
	ResultsPerQuery int

	// SearchConcurrency bounds parallel search calls.
	SearchConcurrency int

	// MinContentLength is the word count of a "comprehensive" report.
	MinContentLength int

	// SuggestionCutoff is the phase score below which the Reviewer suggests
	// improvements.
	SuggestionCutoff float64

	Confidence ConfidenceWeights
	Criteria   CriteriaWeights
	Grades     []GradeBand

	// BaseLengths is the target word count per report type before the
	// depth multiplier is applied.
	BaseLengths map[workflow.ReportType]int

	// DepthMultipliers scale BaseLengths.
	DepthMultipliers map[workflow.Depth]float64

	// Sections lists the section titles of each report type.
	Sections map[workflow.ReportType][]string

	// DepthSections are appended to the type's sections for a depth.
	DepthSections map[workflow.Depth][]string
}

// DefaultConfig returns the stock tables.
func DefaultConfig() Config {
	return Config{
		MaxTokens:         800,
		ReportTokenLimit:  4096,
		GenerationTimeout: 30 * time.Second,
		MaxQueries:        5,
		MinQueries:        3,
		ResultsPerQuery:   3,
		SearchConcurrency: 3,
		MinContentLength:  500,
		SuggestionCutoff:  90,
		Confidence: ConfidenceWeights{
			MainFindings:    0.25,
			CurrentTrends:   0.2,
			ExpertConsensus: 0.2,
			DataInsights:    0.2,
			KnowledgeGaps:   0.15,
		},
		Criteria: CriteriaWeights{
			Accuracy:      0.3,
			Completeness:  0.2,
			Clarity:       0.15,
			Structure:     0.15,
			Actionability: 0.2,
		},
		Grades: []GradeBand{
			{97, "A+"}, {93, "A"}, {90, "A-"},
			{87, "B+"}, {83, "B"}, {80, "B-"},
			{77, "C+"}, {73, "C"}, {70, "C-"},
			{60, "D"},
		},
		BaseLengths: map[workflow.ReportType]int{
			workflow.ReportSummary:         400,
			workflow.ReportComprehensive:   1500,
			workflow.ReportAnalysis:        1000,
			workflow.ReportExecutiveBrief:  600,
			workflow.ReportResearchSummary: 800,
		},
		DepthMultipliers: map[workflow.Depth]float64{
			workflow.DepthBasic:  0.6,
			workflow.DepthMedium: 1.0,
			workflow.DepthDeep:   1.6,
		},
		Sections: map[workflow.ReportType][]string{
			workflow.ReportSummary: {
				"Overview", "Key Findings", "Recommendations",
			},
			workflow.ReportComprehensive: {
				"Executive Summary", "Introduction", "Research Findings",
				"Analysis and Insights", "Strategic Recommendations", "Conclusion",
			},
			workflow.ReportAnalysis: {
				"Executive Summary", "Trend Analysis", "Gap Analysis",
				"Risks and Opportunities", "Recommendations",
			},
			workflow.ReportExecutiveBrief: {
				"Executive Summary", "Key Insights", "Recommended Actions",
			},
			workflow.ReportResearchSummary: {
				"Overview", "Research Findings", "Knowledge Gaps", "Sources",
			},
		},
		DepthSections: map[workflow.Depth][]string{
			workflow.DepthDeep: {"Methodology", "Future Scenarios"},
		},
	}
}

// TargetLength returns the target word count for a depth and report type.
// Unknown keys fall back to the comprehensive base and a multiplier of 1.
func (c Config) TargetLength(depth workflow.Depth, reportType workflow.ReportType) int {
	base, ok := c.BaseLengths[reportType]
	if !ok {
		base = c.BaseLengths[workflow.ReportComprehensive]
	}
	mult, ok := c.DepthMultipliers[depth]
	if !ok {
		mult = 1
	}
	return int(float64(base)*mult + 0.5)
}

// SectionTitles returns the sections of a report for a depth and type.
func (c Config) SectionTitles(depth workflow.Depth, reportType workflow.ReportType) []string {
	sections, ok := c.Sections[reportType]
	if !ok {
		sections = c.Sections[workflow.ReportComprehensive]
	}
	out := make([]string, 0, len(sections)+len(c.DepthSections[depth]))
	out = append(out, sections...)
	return append(out, c.DepthSections[depth]...)
}

// Grade maps an overall score to a letter grade.
func (c Config) Grade(score float64) string {
	for _, band := range c.Grades {
		if score >= band.Min {
			return band.Grade
		}
	}
	return "F"
}

// ValidateRequest returns a validator that accepts only depths and report
// types present in cfg's tables.
func ValidateRequest(cfg Config) func(workflow.Request) error {
	return func(req workflow.Request) error {
		if _, ok := cfg.DepthMultipliers[req.Options.Depth]; !ok {
			return fmt.Errorf("unknown depth %q (valid: %v)", req.Options.Depth, sortedKeys(cfg.DepthMultipliers))
		}
		if _, ok := cfg.BaseLengths[req.Options.ReportType]; !ok {
			return fmt.Errorf("unknown report type %q (valid: %v)", req.Options.ReportType, sortedKeys(cfg.BaseLengths))
		}
		return nil
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
