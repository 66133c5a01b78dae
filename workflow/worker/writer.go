package worker

import (
	"context"
	"strings"

	"github.com/dshills/research-team/workflow"
)

const wordsPerMinute = 200

// Writer drafts the report from the research and analysis outputs.
type Writer struct {
	*base
}

// NewWriter creates a Writer.
func NewWriter(deps Deps, cfg Config) *Writer {
	return &Writer{base: newBase("Writer", workflow.StageContent, deps, cfg)}
}

// Describe implements workflow.Describer.
func (w *Writer) Describe() workflow.Capability {
	return workflow.Capability{
		Name:           w.name,
		Stage:          w.stage,
		Description:    "Drafts a structured Markdown report sized to the requested depth and type",
		RequiredInputs: []string{"research", "analysis"},
		Capabilities:   []string{"report_writing", "executive_summary", "section_planning"},
		Config: map[string]interface{}{
			"base_lengths":       w.cfg.BaseLengths,
			"depth_multipliers":  w.cfg.DepthMultipliers,
			"min_content_length": w.cfg.MinContentLength,
		},
	}
}

// Process implements workflow.Worker.
func (w *Writer) Process(ctx context.Context, in workflow.StageInput) (workflow.WorkerResult, error) {
	if in.Research == nil {
		return workflow.WorkerResult{}, w.invalid("research", "research findings are required")
	}
	if in.Analysis == nil {
		return workflow.WorkerResult{}, w.invalid("analysis", "analysis results are required")
	}
	opts := in.Request.Options
	inv := w.begin(in)

	target := w.cfg.TargetLength(opts.Depth, opts.ReportType)
	sections := w.cfg.SectionTitles(opts.Depth, opts.ReportType)

	prompt := reportPrompt(in.Request.Topic, opts, sections, target, in.Research, in.Analysis)
	reply, err := w.generate(ctx, in, "report", prompt, w.reportTokens(target))
	if err != nil {
		return w.fail(inv, err), nil
	}
	report := trimFences(reply)

	out := &workflow.ContentOutput{
		Title:            reportTitle(report, in.Request.Topic),
		ExecutiveSummary: executiveSummary(report),
		Sections:         sections,
		Report:           report,
		WordCount:        len(strings.Fields(report)),
		TargetLength:     target,
		Depth:            opts.Depth,
		ReportType:       opts.ReportType,
	}
	out.ReadingMinutes = max(1, out.WordCount/wordsPerMinute)
	for _, r := range in.Analysis.Recommendations {
		out.Recommendations = append(out.Recommendations, r.Action)
	}
	out.Indicators = workflow.QualityIndicators{
		Comprehensive: out.WordCount >= w.cfg.MinContentLength,
		Structured:    len(headings(report)) >= 3,
		Actionable:    len(out.Recommendations) > 0,
	}

	inv.meta["word_count"] = out.WordCount
	inv.meta["target_length"] = target
	return w.succeed(inv, workflow.Output{Content: out}), nil
}

// reportTokens sizes the report call to the target length.
func (w *Writer) reportTokens(target int) int {
	tokens := target * 4 / 3
	if tokens < w.cfg.MaxTokens {
		tokens = w.cfg.MaxTokens
	}
	if w.cfg.ReportTokenLimit > 0 && tokens > w.cfg.ReportTokenLimit {
		tokens = w.cfg.ReportTokenLimit
	}
	return tokens
}

func reportTitle(report, topic string) string {
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if t := strings.TrimSpace(line[2:]); t != "" {
				return t
			}
		}
	}
	return "Comprehensive Analysis: " + topic
}

// headings returns the level two section titles of a Markdown report.
func headings(report string) []string {
	var out []string
	for _, line := range strings.Split(report, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "## ") {
			out = append(out, strings.TrimSpace(line[3:]))
		}
	}
	return out
}

// executiveSummary returns the body of the "Executive Summary" section, or
// the first paragraph when the report has none.
func executiveSummary(report string) string {
	lines := strings.Split(report, "\n")
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(t, "#") || !strings.EqualFold(strings.TrimSpace(strings.TrimLeft(t, "#")), "executive summary") {
			continue
		}
		var body []string
		for _, next := range lines[i+1:] {
			next = strings.TrimSpace(next)
			if strings.HasPrefix(next, "#") {
				break
			}
			if next != "" {
				body = append(body, next)
			}
		}
		if len(body) > 0 {
			return strings.Join(body, " ")
		}
	}

	var para []string
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			if len(para) > 0 {
				break
			}
			continue
		}
		para = append(para, t)
	}
	return strings.Join(para, " ")
}
