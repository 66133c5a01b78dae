package workflow

import (
	"encoding/json"
	"time"
)

// WorkflowMetadata summarizes a completed run.
type WorkflowMetadata struct {
	TotalSourcesAnalyzed int           `json:"total_sources_analyzed"`
	TotalRecommendations int           `json:"total_recommendations"`
	FinalWordCount       int           `json:"final_word_count"`
	OverallQualityScore  float64       `json:"overall_quality_score"`
	GeneratedAt          time.Time     `json:"generated_at"`
	TotalExecutionTime   time.Duration `json:"total_execution_time"`
}

// FinalOutput is the aggregate of a Completed run: one section per stage
// plus run-level metadata.
type FinalOutput struct {
	WorkflowID string           `json:"workflow_id"`
	Topic      string           `json:"topic"`
	Research   ResearchOutput   `json:"research"`
	Analysis   AnalysisOutput   `json:"analysis"`
	Content    ContentOutput    `json:"content"`
	Quality    QualityOutput    `json:"quality"`
	Metadata   WorkflowMetadata `json:"workflow_metadata"`
}

// PartialOutput is what a Failed run still offers: every stage that
// completed before the failure and the reason it stopped.
type PartialOutput struct {
	WorkflowID      string         `json:"workflow_id"`
	Topic           string         `json:"topic"`
	Status          Status         `json:"status"`
	Error           string         `json:"error"`
	FailedStage     Stage          `json:"failed_stage"`
	FailedStep      int            `json:"failed_step"`
	CompletedStages []Stage        `json:"completed_stages"`
	Results         []WorkerResult `json:"partial_results"`
}

// StagePerformance is the timing and outcome of one stage.
type StagePerformance struct {
	ExecutionTime time.Duration `json:"execution_time"`
	Status        WorkerStatus  `json:"status"`
	OutputSize    int           `json:"output_size"`
}

// QualityMetrics is the quality verdict carried in an ExecutionSummary.
type QualityMetrics struct {
	OverallScore float64 `json:"overall_score"`
	Grade        string  `json:"grade"`
	Approved     bool    `json:"approved"`
}

// ExecutionSummary reports how far a run got and how each stage performed.
type ExecutionSummary struct {
	TotalStepsCompleted int                        `json:"total_steps_completed"`
	FailedAtStep        int                        `json:"failed_at_step,omitempty"`
	SuccessRate         float64                    `json:"success_rate"`
	StagePerformance    map[Stage]StagePerformance `json:"stage_performance"`
	QualityMetrics      *QualityMetrics            `json:"quality_metrics,omitempty"`
}

// Report is returned by Engine.Result for a finished run. Exactly one of
// Final and Partial is set.
type Report struct {
	Final   *FinalOutput     `json:"final,omitempty"`
	Partial *PartialOutput   `json:"partial,omitempty"`
	Summary ExecutionSummary `json:"execution_summary"`
}

// BuildReport projects a terminal record. It returns ErrNotReady for a
// record that is still in progress.
func BuildReport(rec WorkflowRecord) (Report, error) {
	switch rec.Status {
	case StatusCompleted:
		final, ok := buildFinal(rec)
		if !ok {
			return Report{Partial: buildPartial(rec), Summary: summarize(rec)}, nil
		}
		return Report{Final: final, Summary: summarize(rec)}, nil
	case StatusFailed:
		return Report{Partial: buildPartial(rec), Summary: summarize(rec)}, nil
	default:
		return Report{}, ErrNotReady
	}
}

func buildFinal(rec WorkflowRecord) (*FinalOutput, bool) {
	var in StageInput
	var quality *QualityOutput
	for _, res := range rec.WorkerResults {
		in = in.merge(res.Output)
		if res.Output.Quality != nil {
			quality = res.Output.Quality
		}
	}
	if in.Research == nil || in.Analysis == nil || in.Content == nil || quality == nil {
		return nil, false
	}

	generatedAt := rec.EndTime
	if generatedAt.IsZero() {
		generatedAt = rec.StartTime.Add(rec.TotalExecutionTime)
	}

	return &FinalOutput{
		WorkflowID: rec.WorkflowID,
		Topic:      rec.Topic,
		Research:   *in.Research,
		Analysis:   *in.Analysis,
		Content:    *in.Content,
		Quality:    *quality,
		Metadata: WorkflowMetadata{
			TotalSourcesAnalyzed: len(in.Research.Sources),
			TotalRecommendations: len(in.Analysis.Recommendations),
			FinalWordCount:       in.Content.WordCount,
			OverallQualityScore:  quality.Overall,
			GeneratedAt:          generatedAt,
			TotalExecutionTime:   rec.TotalExecutionTime,
		},
	}, true
}

func buildPartial(rec WorkflowRecord) *PartialOutput {
	p := &PartialOutput{
		WorkflowID:      rec.WorkflowID,
		Topic:           rec.Topic,
		Status:          rec.Status,
		CompletedStages: rec.CompletedStages(),
		Results:         make([]WorkerResult, 0, len(rec.WorkerResults)),
	}
	for _, res := range rec.WorkerResults {
		if res.Status == WorkerCompleted {
			p.Results = append(p.Results, res)
		}
	}
	if rec.Error != nil {
		p.Error = rec.Error.Message
		p.FailedStage = rec.Error.Stage
		p.FailedStep = rec.Error.Step
	}
	return p
}

func summarize(rec WorkflowRecord) ExecutionSummary {
	s := ExecutionSummary{
		StagePerformance: make(map[Stage]StagePerformance, len(rec.WorkerResults)),
	}
	for _, res := range rec.WorkerResults {
		if res.Status == WorkerCompleted {
			s.TotalStepsCompleted++
		}
		size := 0
		if raw, err := json.Marshal(res.Output); err == nil {
			size = len(raw)
		}
		s.StagePerformance[res.Stage] = StagePerformance{
			ExecutionTime: res.ExecutionTime,
			Status:        res.Status,
			OutputSize:    size,
		}
		if q := res.Output.Quality; q != nil {
			s.QualityMetrics = &QualityMetrics{OverallScore: q.Overall, Grade: q.Grade, Approved: q.Approved}
		}
	}
	if rec.Status == StatusFailed && rec.Error != nil {
		s.FailedAtStep = rec.Error.Step
	}
	s.SuccessRate = float64(s.TotalStepsCompleted) / float64(len(Stages))
	return s
}
