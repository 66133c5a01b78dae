// Package render formats workflow records and reports for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.yaml.in/yaml/v2"

	"github.com/dshills/research-team/workflow"
)

// Format selects the output encoding.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: text, json, yaml)", s)
	}
}

// Renderer writes values in one format.
type Renderer struct {
	out    io.Writer
	format Format
}

// New creates a Renderer writing to out.
func New(out io.Writer, format Format) *Renderer {
	return &Renderer{out: out, format: format}
}

// Report renders the result of a finished run.
func (r *Renderer) Report(rep workflow.Report) error {
	if r.format != FormatText {
		return r.encode(rep)
	}
	var sb strings.Builder
	switch {
	case rep.Final != nil:
		writeFinal(&sb, rep.Final)
	case rep.Partial != nil:
		writePartial(&sb, rep.Partial)
	}
	writeSummary(&sb, rep.Summary)
	_, err := io.WriteString(r.out, sb.String())
	return err
}

// Record renders the status of a run.
func (r *Renderer) Record(rec workflow.WorkflowRecord) error {
	if r.format != FormatText {
		return r.encode(rec)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", color.CyanString("Workflow"), rec.WorkflowID)
	fmt.Fprintf(&sb, "  Topic:   %s\n", rec.Topic)
	fmt.Fprintf(&sb, "  Status:  %s\n", statusString(rec.Status))
	fmt.Fprintf(&sb, "  Step:    %d/%d\n", rec.CurrentStep, len(workflow.Stages))
	for _, res := range rec.WorkerResults {
		fmt.Fprintf(&sb, "  %s %-10s %-10s %s\n", resultIcon(res), res.Stage, res.WorkerName, FormatDuration(res.ExecutionTime))
	}
	if rec.Error != nil {
		fmt.Fprintf(&sb, "  %s %s\n", color.RedString("Error:"), rec.Error.Message)
	}
	_, err := io.WriteString(r.out, sb.String())
	return err
}

// Capabilities renders the worker descriptions.
func (r *Renderer) Capabilities(caps []workflow.Capability) error {
	if r.format != FormatText {
		return r.encode(caps)
	}
	var sb strings.Builder
	sb.WriteString(color.CyanString("Workers\n"))
	sb.WriteString(strings.Repeat("─", 60) + "\n")
	for _, c := range caps {
		fmt.Fprintf(&sb, "%s (%s)\n", color.New(color.Bold).Sprint(c.Name), c.Stage)
		if c.Description != "" {
			fmt.Fprintf(&sb, "  %s\n", c.Description)
		}
		if len(c.RequiredInputs) > 0 {
			fmt.Fprintf(&sb, "  requires: %s\n", strings.Join(c.RequiredInputs, ", "))
		}
		if len(c.Capabilities) > 0 {
			fmt.Fprintf(&sb, "  provides: %s\n", strings.Join(c.Capabilities, ", "))
		}
	}
	_, err := io.WriteString(r.out, sb.String())
	return err
}

// Issues renders configuration problems. An empty list reports success.
func (r *Renderer) Issues(issues []string) error {
	if r.format != FormatText {
		return r.encode(map[string]interface{}{"valid": len(issues) == 0, "issues": issues})
	}
	if len(issues) == 0 {
		_, err := fmt.Fprintf(r.out, "%s configuration is valid\n", color.GreenString("✓"))
		return err
	}
	var sb strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&sb, "%s %s\n", color.RedString("✗"), issue)
	}
	_, err := io.WriteString(r.out, sb.String())
	return err
}

func (r *Renderer) encode(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.format, err)
	}
	if r.format == FormatYAML {
		// JSON is valid YAML; decoding into MapSlices keeps the json tags
		// and field order.
		var doc interface{} = &yaml.MapSlice{}
		if len(data) > 0 && data[0] == '[' {
			doc = &[]yaml.MapSlice{}
		}
		if err := yaml.Unmarshal(data, doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = r.out.Write(data)
		return err
	}
	data = append(data, '\n')
	_, err = r.out.Write(data)
	return err
}

func writeFinal(sb *strings.Builder, f *workflow.FinalOutput) {
	fmt.Fprintf(sb, "%s\n", color.New(color.Bold, color.FgCyan).Sprint(f.Content.Title))
	sb.WriteString(strings.Repeat("─", 60) + "\n")

	q := f.Quality
	score := fmt.Sprintf("%.1f (%s)", q.Overall, q.Grade)
	if q.Approved {
		score = color.GreenString(score)
	} else {
		score = color.YellowString(score)
	}
	fmt.Fprintf(sb, "  Quality:   %s %s\n", score, q.ApprovalStatus)
	fmt.Fprintf(sb, "  Sources:   %d\n", f.Metadata.TotalSourcesAnalyzed)
	fmt.Fprintf(sb, "  Words:     %d (target %d, %d min read)\n", f.Content.WordCount, f.Content.TargetLength, f.Content.ReadingMinutes)
	fmt.Fprintf(sb, "  Confidence: %.0f%%\n", f.Analysis.Confidence*100)

	if len(f.Content.Recommendations) > 0 {
		sb.WriteString("\n" + color.CyanString("RECOMMENDATIONS:") + "\n")
		for i, rec := range f.Content.Recommendations {
			fmt.Fprintf(sb, "  %d. %s\n", i+1, rec)
		}
	}
	if len(q.Suggestions) > 0 {
		sb.WriteString("\n" + color.CyanString("SUGGESTIONS:") + "\n")
		for _, s := range q.Suggestions {
			fmt.Fprintf(sb, "  [%s/%s] %s\n", s.Area, s.Priority, s.Suggestion)
		}
	}
	sb.WriteString("\n" + f.Content.Report + "\n")
}

func writePartial(sb *strings.Builder, p *workflow.PartialOutput) {
	fmt.Fprintf(sb, "%s %s\n", color.RedString("✗ Workflow failed:"), p.Topic)
	sb.WriteString(strings.Repeat("─", 60) + "\n")
	fmt.Fprintf(sb, "  Failed at: %s (step %d)\n", p.FailedStage, p.FailedStep)
	fmt.Fprintf(sb, "  Error:     %s\n", p.Error)
	completed := make([]string, 0, len(p.CompletedStages))
	for _, s := range p.CompletedStages {
		completed = append(completed, string(s))
	}
	if len(completed) == 0 {
		completed = append(completed, "none")
	}
	fmt.Fprintf(sb, "  Completed: %s\n", strings.Join(completed, ", "))
}

func writeSummary(sb *strings.Builder, s workflow.ExecutionSummary) {
	sb.WriteString("\n" + color.CyanString("EXECUTION:") + "\n")
	fmt.Fprintf(sb, "  Steps completed: %d/%d (%.0f%%)\n", s.TotalStepsCompleted, len(workflow.Stages), s.SuccessRate*100)
	for _, stage := range workflow.Stages {
		perf, ok := s.StagePerformance[stage]
		if !ok {
			continue
		}
		fmt.Fprintf(sb, "  %-10s %-10s %s\n", stage, perf.Status, FormatDuration(perf.ExecutionTime))
	}
}

func statusString(s workflow.Status) string {
	switch s {
	case workflow.StatusCompleted:
		return color.GreenString(string(s))
	case workflow.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func resultIcon(res workflow.WorkerResult) string {
	if res.Failed() {
		return color.RedString("✗")
	}
	return color.GreenString("✓")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
