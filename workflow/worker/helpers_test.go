package worker

import (
	"strings"
	"time"

	"github.com/dshills/research-team/workflow"
	"github.com/dshills/research-team/workflow/emit"
	"github.com/dshills/research-team/workflow/model"
	"github.com/dshills/research-team/workflow/tool"
)

const queriesReply = `1. renewable energy market growth 2024
2. solar and wind cost statistics
3. energy storage expert outlook
4. renewable policy developments`

const findingsJSON = "```json\n" + `{
  "main_findings": ["Solar costs fell 90% over the decade", "Wind is the cheapest new capacity in most markets"],
  "current_trends": ["Battery storage deployment is accelerating"],
  "expert_consensus": "Experts expect renewables to dominate new capacity",
  "data_insights": "Global capacity additions reached a record high",
  "knowledge_gaps": ["Long-duration storage economics"]
}` + "\n```"

const analysisJSON = `{
  "insights": ["Cost curves favor renewables", "Storage is the bottleneck"],
  "trends": [
    {"name": "Battery storage", "direction": "rapidly growing", "evidence": "Record deployments"},
    {"name": "Coal retirement", "direction": "Declining", "evidence": "Plant closures"}
  ],
  "gaps": ["Long-duration storage economics"],
  "recommendations": [
    {"action": "Invest in grid storage", "rationale": "Unlocks higher penetration", "impact": "high", "difficulty": "medium", "time_horizon": "short-term", "priority": 2},
    {"action": "Modernize transmission", "rationale": "Connects remote generation", "impact": "high", "difficulty": "high", "time_horizon": "long-term", "priority": 1},
    {"action": "Fund storage research", "rationale": "Closes the main gap", "impact": "medium", "difficulty": "low", "time_horizon": "medium-term"}
  ],
  "risks": ["Supply chain concentration"],
  "opportunities": ["Green hydrogen"],
  "narrative": "Renewables are winning on cost."
}`

const reportMarkdown = `# The Renewable Energy Transition

## Executive Summary
Renewables now lead new capacity. Storage is the key constraint.

## Introduction
Energy systems are changing fast.

## Research Findings
Solar costs fell sharply. Wind is cheap.

## Analysis and Insights
Cost curves favor renewables. Storage limits growth.

## Strategic Recommendations
Invest in storage. Modernize transmission.

## Conclusion
The transition is underway.`

const reviewJSON = `{"accuracy": 90, "completeness": 90, "clarity": 90, "structure": 90, "actionability": 90, "summary": "Strong report."}`

// Prompt markers, matched in order. The review prompt embeds the report, so
// it is matched first.
const (
	markQueries   = "Generate search queries"
	markSynthesis = "Synthesize research findings"
	markAnalysis  = "Perform a strategic analysis"
	markReport    = "Write a "
	markReview    = "Evaluate the quality"
)

// scriptedGenerator answers every worker prompt with a well-formed reply.
// overrides replace the reply for a marker.
func scriptedGenerator(overrides ...model.MockRule) *model.MockGenerator {
	rules := append([]model.MockRule(nil), overrides...)
	rules = append(rules,
		model.MockRule{Contains: markReview, Response: reviewJSON},
		model.MockRule{Contains: markReport, Response: reportMarkdown},
		model.MockRule{Contains: markAnalysis, Response: analysisJSON},
		model.MockRule{Contains: markSynthesis, Response: findingsJSON},
		model.MockRule{Contains: markQueries, Response: queriesReply},
	)
	return &model.MockGenerator{Rules: rules}
}

type testDeps struct {
	gen     *model.MockGenerator
	search  *tool.MockSearch
	emitter *emit.BufferedEmitter
}

func newTestDeps(gen *model.MockGenerator) (Deps, testDeps) {
	td := testDeps{gen: gen, search: &tool.MockSearch{}, emitter: emit.NewBufferedEmitter()}
	tick := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return Deps{
		Generator: gen,
		Searcher:  td.search,
		Emitter:   td.emitter,
		Clock: func() time.Time {
			tick = tick.Add(5 * time.Millisecond)
			return tick
		},
	}, td
}

func testInput(topic string) workflow.StageInput {
	return workflow.StageInput{Request: workflow.Request{
		WorkflowID: "wf-test",
		Topic:      topic,
		Options:    workflow.DefaultOptions(),
	}}
}

func researchFixture() *workflow.ResearchOutput {
	return &workflow.ResearchOutput{
		Topic: "renewable energy",
		Findings: workflow.ResearchFindings{
			MainFindings:  []string{"a", "b", "c", "d", "e"},
			CurrentTrends: []string{"storage growth"},
			KnowledgeGaps: []string{"long-duration storage"},
		},
		Sources: []string{"https://a", "https://b", "https://c", "https://d", "https://e"},
	}
}

func analysisFixture() *workflow.AnalysisOutput {
	return &workflow.AnalysisOutput{
		Insights: []string{"Cost curves favor renewables"},
		Recommendations: []workflow.Recommendation{
			{Action: "Modernize transmission", Priority: 1},
			{Action: "Invest in storage", Priority: 2},
		},
		Confidence: 0.6,
	}
}

func promptsContaining(gen *model.MockGenerator, marker string) int {
	n := 0
	for _, c := range gen.Calls {
		if strings.Contains(c.Prompt, marker) {
			n++
		}
	}
	return n
}
