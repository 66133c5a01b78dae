package workflow

// ResearchFindings is the synthesized findings bundle of the research stage.
// Every field is optional: the Analyst scores its confidence by which ones
// are present.
type ResearchFindings struct {
	MainFindings    []string `json:"main_findings,omitempty"`
	CurrentTrends   []string `json:"current_trends,omitempty"`
	ExpertConsensus string   `json:"expert_consensus,omitempty"`
	DataInsights    string   `json:"data_insights,omitempty"`
	KnowledgeGaps   []string `json:"knowledge_gaps,omitempty"`
}

// ContentSummary buckets search snippets by source type.
type ContentSummary struct {
	KeyPoints          []string       `json:"key_points,omitempty"`
	Statistics         []string       `json:"statistics,omitempty"`
	ExpertOpinions     []string       `json:"expert_opinions,omitempty"`
	RecentDevelopments []string       `json:"recent_developments,omitempty"`
	SourceDiversity    map[string]int `json:"source_diversity,omitempty"`
}

// ResearchOutput is produced by the research stage.
type ResearchOutput struct {
	Topic    string           `json:"topic"`
	Findings ResearchFindings `json:"findings"`
	Sources  []string         `json:"sources"`
	Queries  []string         `json:"queries"`
	Summary  ContentSummary   `json:"content_summary"`
}

// Trend is a classified market or research trend.
type Trend struct {
	Name      string `json:"name"`
	Direction string `json:"direction"` // emerging, growing, stable, declining
	Evidence  string `json:"evidence,omitempty"`
}

// Recommendation is one prioritized action. Priority 1 is the highest.
type Recommendation struct {
	Action      string `json:"action"`
	Rationale   string `json:"rationale"`
	Impact      string `json:"impact"`
	Difficulty  string `json:"difficulty"`
	TimeHorizon string `json:"time_horizon"`
	Priority    int    `json:"priority"`
}

// AnalysisOutput is produced by the analysis stage.
type AnalysisOutput struct {
	Insights        []string         `json:"insights"`
	Trends          []Trend          `json:"trends"`
	Gaps            []string         `json:"gaps"`
	Recommendations []Recommendation `json:"recommendations"`
	Risks           []string         `json:"risks,omitempty"`
	Opportunities   []string         `json:"opportunities,omitempty"`
	Narrative       string           `json:"narrative,omitempty"`
	Confidence      float64          `json:"confidence"`
}

// QualityIndicators flag coarse properties of the generated report.
type QualityIndicators struct {
	Comprehensive bool `json:"comprehensive"`
	Structured    bool `json:"structured"`
	Actionable    bool `json:"actionable"`
}

// ContentOutput is produced by the content stage.
type ContentOutput struct {
	Title            string            `json:"title"`
	ExecutiveSummary string            `json:"executive_summary"`
	Sections         []string          `json:"sections"`
	Report           string            `json:"report"`
	WordCount        int               `json:"word_count"`
	TargetLength     int               `json:"target_length"`
	ReadingMinutes   int               `json:"reading_minutes"`
	Recommendations  []string          `json:"recommendations,omitempty"`
	Indicators       QualityIndicators `json:"quality_indicators"`
	Depth            Depth             `json:"depth"`
	ReportType       ReportType        `json:"report_type"`
}

// CriteriaScores are the per-criterion quality scores on a 0-100 scale.
type CriteriaScores struct {
	Accuracy      float64 `json:"accuracy"`
	Completeness  float64 `json:"completeness"`
	Clarity       float64 `json:"clarity"`
	Structure     float64 `json:"structure"`
	Actionability float64 `json:"actionability"`
}

// PhaseScores break the quality score down by upstream stage.
type PhaseScores struct {
	Research float64 `json:"research"`
	Analysis float64 `json:"analysis"`
	Content  float64 `json:"content"`
}

// Suggestion is an improvement hint for a weak phase.
type Suggestion struct {
	Area       string `json:"area"`
	Priority   string `json:"priority"`
	Suggestion string `json:"suggestion"`
}

// Approval statuses reported in QualityOutput.ApprovalStatus.
const (
	ApprovalApproved         = "approved"
	ApprovalNeedsImprovement = "needs_improvement"
)

// QualityOutput is produced by the quality stage.
type QualityOutput struct {
	Criteria       CriteriaScores `json:"criteria"`
	Phases         PhaseScores    `json:"phases"`
	Overall        float64        `json:"overall_score"`
	Grade          string         `json:"grade"`
	Approved       bool           `json:"approved"`
	Threshold      float64        `json:"threshold"`
	ApprovalStatus string         `json:"approval_status"`
	Suggestions    []Suggestion   `json:"suggestions,omitempty"`
	Summary        string         `json:"summary,omitempty"`

	// ScoreSource is "model" when the scores came from the generator and
	// "heuristic" when they were computed locally.
	ScoreSource string `json:"score_source"`
}

// Output holds exactly one stage's output, or Error alone when the
// invocation failed.
type Output struct {
	Research *ResearchOutput `json:"research,omitempty"`
	Analysis *AnalysisOutput `json:"analysis,omitempty"`
	Content  *ContentOutput  `json:"content,omitempty"`
	Quality  *QualityOutput  `json:"quality,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// ErrorOutput returns an Output carrying only msg.
func ErrorOutput(msg string) Output {
	if msg == "" {
		msg = "unknown error"
	}
	return Output{Error: msg}
}

// For returns true when o carries the payload produced by stage.
func (o Output) For(stage Stage) bool {
	switch stage {
	case StageResearch:
		return o.Research != nil
	case StageAnalysis:
		return o.Analysis != nil
	case StageContent:
		return o.Content != nil
	case StageQuality:
		return o.Quality != nil
	}
	return false
}

// only returns o with every payload except stage's cleared.
func (o Output) only(stage Stage) Output {
	switch stage {
	case StageResearch:
		return Output{Research: o.Research}
	case StageAnalysis:
		return Output{Analysis: o.Analysis}
	case StageContent:
		return Output{Content: o.Content}
	case StageQuality:
		return Output{Quality: o.Quality}
	}
	return Output{}
}
