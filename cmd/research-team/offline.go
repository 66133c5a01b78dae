package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/research-team/workflow/model"
)

// offlineGenerator answers the team's prompts with canned text built from
// the prompt itself. It backs AI_PROVIDER=mock for demos and smoke tests.
func offlineGenerator() model.Generator {
	return model.GeneratorFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		topic := quotedTopic(prompt)

		switch {
		case strings.HasPrefix(prompt, "Generate search queries"):
			return strings.Join([]string{
				topic + " market overview",
				topic + " statistics",
				topic + " expert outlook",
			}, "\n"), nil
		case strings.HasPrefix(prompt, "Synthesize research findings"):
			return fmt.Sprintf(`{
  "main_findings": ["Adoption of %[1]s is accelerating", "Investment in %[1]s is growing", "Regulation is still forming"],
  "current_trends": ["Growing enterprise adoption", "Emerging open standards"],
  "expert_consensus": "Experts expect steady growth over the next five years",
  "data_insights": "Spending rose year over year across the sampled sources",
  "knowledge_gaps": ["Long-term outcome data", "Cost benchmarks"]
}`, topic), nil
		case strings.HasPrefix(prompt, "Perform a strategic analysis"):
			return `{
  "insights": ["Early movers capture most of the value", "Skills shortages slow rollout"],
  "trends": [{"name": "Enterprise adoption", "direction": "growing"}, {"name": "Open standards", "direction": "emerging"}],
  "gaps": ["Long-term outcome data"],
  "recommendations": [
    {"action": "Run a focused pilot", "rationale": "Limits risk", "impact": "high", "difficulty": "low", "time_horizon": "short", "priority": 1},
    {"action": "Invest in training", "rationale": "Addresses the skills gap", "impact": "medium", "difficulty": "medium", "time_horizon": "medium", "priority": 2}
  ],
  "risks": ["Regulatory change"],
  "opportunities": ["New service lines"]
}`, nil
		case strings.HasPrefix(prompt, "Write a "):
			return offlineReport(topic, prompt), nil
		case strings.HasPrefix(prompt, "Evaluate the quality"):
			return `{"accuracy": 86, "completeness": 82, "clarity": 90, "structure": 92, "actionability": 88, "summary": "Offline review of the generated report."}`, nil
		}
		return "", nil
	})
}

// offlineReport writes one short paragraph under every "## " section the
// prompt asks for.
func offlineReport(topic, prompt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: An Overview\n", topic)
	for _, line := range strings.Split(prompt, "\n") {
		if !strings.HasPrefix(line, "## ") {
			continue
		}
		title := strings.TrimPrefix(line, "## ")
		fmt.Fprintf(&b, "\n%s\n%s covers %s in the context of %s. The findings point to steady growth. Teams should act on the recommendations below.\n",
			line, title, strings.ToLower(title), topic)
	}
	return b.String()
}

// quotedTopic returns the first %q-quoted string on the prompt's first line.
func quotedTopic(prompt string) string {
	first, _, _ := strings.Cut(prompt, "\n")
	start := strings.IndexByte(first, '"')
	if start < 0 {
		return "the topic"
	}
	if topic, err := strconv.QuotedPrefix(first[start:]); err == nil {
		if s, err := strconv.Unquote(topic); err == nil {
			return s
		}
	}
	return "the topic"
}
