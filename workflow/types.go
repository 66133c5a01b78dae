package workflow

import (
	"math"
	"strings"
)

// Stage names one step of the pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageResearch Stage = "research"
	StageAnalysis Stage = "analysis"
	StageContent  Stage = "content"
	StageQuality  Stage = "quality"
)

// Stages lists the pipeline in execution order.
var Stages = []Stage{StageResearch, StageAnalysis, StageContent, StageQuality}

// Step returns the 1-indexed pipeline position of s, or 0 for an unknown stage.
func (s Stage) Step() int {
	for i, stage := range Stages {
		if stage == s {
			return i + 1
		}
	}
	return 0
}

// Status is the lifecycle state of a workflow run.
type Status string

// Workflow statuses. Paused is part of the model but never entered by the
// default pipeline.
const (
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusPaused      Status = "paused"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// WorkerStatus is the lifecycle of a single worker invocation.
type WorkerStatus string

// Worker statuses.
const (
	WorkerIdle      WorkerStatus = "idle"
	WorkerWorking   WorkerStatus = "working"
	WorkerCompleted WorkerStatus = "completed"
	WorkerError     WorkerStatus = "error"
)

// Depth controls how thorough the research and how long the report is.
type Depth string

// Research depths.
const (
	DepthBasic  Depth = "basic"
	DepthMedium Depth = "medium"
	DepthDeep   Depth = "deep"
)

// ReportType selects the report structure and base length.
type ReportType string

// Built-in report types. Workers may accept more through their tables.
const (
	ReportSummary         ReportType = "summary"
	ReportComprehensive   ReportType = "comprehensive_report"
	ReportAnalysis        ReportType = "analysis"
	ReportExecutiveBrief  ReportType = "executive_brief"
	ReportResearchSummary ReportType = "research_summary"
)

// RunOptions tune a single run.
type RunOptions struct {
	Depth      Depth      `json:"depth"`
	ReportType ReportType `json:"report_type"`
	Audience   string     `json:"audience"`
	FocusAreas []string   `json:"focus_areas,omitempty"`

	// QualityThreshold gates QualityOutput.Approved. Values in [0,1] are
	// fractions of the 0-100 score scale; values above 1 are taken as
	// already on that scale. Nil means unset; an explicit 0 approves every
	// report.
	QualityThreshold *float64 `json:"quality_threshold,omitempty"`

	// MaxResearchSources caps the search queries the Researcher executes.
	MaxResearchSources int `json:"max_research_sources"`
}

// DefaultQualityThreshold applies when neither the request nor the engine
// defaults set a threshold.
const DefaultQualityThreshold = 0.8

// Threshold returns a QualityThreshold option set to v.
func Threshold(v float64) *float64 {
	return &v
}

// DefaultOptions returns the options used for fields a request leaves empty.
func DefaultOptions() RunOptions {
	return RunOptions{
		Depth:              DepthMedium,
		ReportType:         ReportComprehensive,
		Audience:           "general",
		QualityThreshold:   Threshold(DefaultQualityThreshold),
		MaxResearchSources: 3,
	}
}

// WithDefaults fills unset fields of o from defaults. String and count
// fields are unset when empty or zero; QualityThreshold only when nil.
func (o RunOptions) WithDefaults(defaults RunOptions) RunOptions {
	if o.Depth == "" {
		o.Depth = defaults.Depth
	}
	if o.ReportType == "" {
		o.ReportType = defaults.ReportType
	}
	if strings.TrimSpace(o.Audience) == "" {
		o.Audience = defaults.Audience
	}
	switch {
	case o.QualityThreshold != nil:
		o.QualityThreshold = Threshold(*o.QualityThreshold)
	case defaults.QualityThreshold != nil:
		o.QualityThreshold = Threshold(*defaults.QualityThreshold)
	}
	if o.MaxResearchSources == 0 {
		o.MaxResearchSources = defaults.MaxResearchSources
	}
	if len(o.FocusAreas) > 0 {
		o.FocusAreas = append([]string(nil), o.FocusAreas...)
	}
	return o
}

// ThresholdScore returns the approval threshold on the 0-100 scale. An
// unset threshold scores as DefaultQualityThreshold.
func (o RunOptions) ThresholdScore() float64 {
	t := DefaultQualityThreshold
	if o.QualityThreshold != nil {
		t = *o.QualityThreshold
	}
	if t <= 1 {
		return math.Round(t*100*1e6) / 1e6
	}
	return t
}

// Request starts a workflow run.
type Request struct {
	// WorkflowID is optional. The engine generates one when empty.
	WorkflowID string     `json:"workflow_id,omitempty"`
	Topic      string     `json:"topic"`
	Options    RunOptions `json:"options"`
}
