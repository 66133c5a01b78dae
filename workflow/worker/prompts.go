package worker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/research-team/workflow"
)

func focusLine(opts workflow.RunOptions) string {
	if len(opts.FocusAreas) == 0 {
		return ""
	}
	return "Focus areas: " + strings.Join(opts.FocusAreas, ", ") + "\n"
}

func queryPrompt(topic string, opts workflow.RunOptions, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate search queries for researching %q.\n", topic)
	fmt.Fprintf(&b, "Research depth: %s\n", opts.Depth)
	b.WriteString(focusLine(opts))
	fmt.Fprintf(&b, "Return %d to %d specific queries covering current trends, statistics, expert opinions and recent developments.\n", 3, n)
	b.WriteString("Write one query per line with no numbering or commentary.")
	return b.String()
}

func synthesisPrompt(topic string, opts workflow.RunOptions, summary workflow.ContentSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize research findings for %q.\n", topic)
	fmt.Fprintf(&b, "Research depth: %s\n", opts.Depth)
	b.WriteString(focusLine(opts))
	writeList(&b, "Key points", summary.KeyPoints)
	writeList(&b, "Statistics", summary.Statistics)
	writeList(&b, "Expert opinions", summary.ExpertOpinions)
	writeList(&b, "Recent developments", summary.RecentDevelopments)
	b.WriteString(`Respond with a JSON object:
{"main_findings": [string], "current_trends": [string], "expert_consensus": string, "data_insights": string, "knowledge_gaps": [string]}`)
	return b.String()
}

func analysisPrompt(topic string, opts workflow.RunOptions, research *workflow.ResearchOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Perform a strategic analysis of %q for a %s audience.\n", topic, opts.Audience)
	b.WriteString(focusLine(opts))
	writeList(&b, "Main findings", research.Findings.MainFindings)
	writeList(&b, "Current trends", research.Findings.CurrentTrends)
	if research.Findings.ExpertConsensus != "" {
		fmt.Fprintf(&b, "Expert consensus: %s\n", research.Findings.ExpertConsensus)
	}
	if research.Findings.DataInsights != "" {
		fmt.Fprintf(&b, "Data insights: %s\n", research.Findings.DataInsights)
	}
	writeList(&b, "Knowledge gaps", research.Findings.KnowledgeGaps)
	b.WriteString(`Classify each trend direction as emerging, growing, stable or declining.
Rank recommendations by priority, 1 being the most important.
Respond with a JSON object:
{"insights": [string], "trends": [{"name": string, "direction": string, "evidence": string}], "gaps": [string],
 "recommendations": [{"action": string, "rationale": string, "impact": string, "difficulty": string, "time_horizon": string, "priority": int}],
 "risks": [string], "opportunities": [string], "narrative": string}`)
	return b.String()
}

func reportPrompt(topic string, opts workflow.RunOptions, sections []string, target int, research *workflow.ResearchOutput, analysis *workflow.AnalysisOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s report on %q for a %s audience.\n", strings.ReplaceAll(string(opts.ReportType), "_", " "), topic, opts.Audience)
	fmt.Fprintf(&b, "Target length: about %d words.\n", target)
	b.WriteString(focusLine(opts))
	b.WriteString("Start with a level one heading holding the title, then use these level two sections in order:\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s\n", s)
	}
	writeList(&b, "Research findings", research.Findings.MainFindings)
	writeList(&b, "Insights", analysis.Insights)
	recs := make([]string, 0, len(analysis.Recommendations))
	for _, r := range analysis.Recommendations {
		recs = append(recs, r.Action)
	}
	writeList(&b, "Recommendations", recs)
	b.WriteString("Write in Markdown. Do not wrap the report in a code block.")
	return b.String()
}

type reviewDigest struct {
	Topic           string   `json:"topic"`
	Findings        int      `json:"findings"`
	Sources         int      `json:"sources"`
	Recommendations int      `json:"recommendations"`
	Sections        []string `json:"sections,omitempty"`
	WordCount       int      `json:"word_count"`
	TargetLength    int      `json:"target_length"`
}

func reviewPrompt(topic string, digest reviewDigest, report string) string {
	meta, _ := json.Marshal(digest)

	var b strings.Builder
	fmt.Fprintf(&b, "Evaluate the quality of the report on %q.\n", topic)
	fmt.Fprintf(&b, "Pipeline facts: %s\n", meta)
	b.WriteString("Score each criterion from 0 to 100: accuracy, completeness, clarity, structure, actionability.\n")
	b.WriteString(`Respond with a JSON object:
{"accuracy": number, "completeness": number, "clarity": number, "structure": number, "actionability": number, "summary": string}
`)
	b.WriteString("Report:\n")
	b.WriteString(report)
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
