package tool

import (
	"context"
	"strings"
	"sync"
)

// MockSearch is a deterministic Searcher for tests and offline runs.
//
// With no Results configured it synthesizes one academic, one industry and
// one news hit for every query, so pipelines produce stable sources without
// network access:
//
//	s := &tool.MockSearch{}
//	hits, _ := s.Search(ctx, "solar storage", 3)
//	// hits[0].URL == "https://academic-source.com/search?q=solar+storage"
//
// Results maps a query to canned hits and takes precedence over synthesis.
// Errs injects a failure for specific queries; Err fails every call.
type MockSearch struct {
	// Results are canned hits keyed by exact query.
	Results map[string][]SearchResult

	// Errs fails specific queries.
	Errs map[string]error

	// Err, if set, is returned by every call.
	Err error

	// Calls records every query in call order.
	Calls []string

	mu sync.Mutex
}

// Name implements Searcher.
func (m *MockSearch) Name() string {
	return "mock_search"
}

// Search implements Searcher.
func (m *MockSearch) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, query)

	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.Errs[query]; ok {
		return nil, err
	}

	results, ok := m.Results[query]
	if !ok {
		results = synthesize(query)
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]SearchResult, len(results))
	copy(out, results)
	return out, nil
}

// CallCount returns the number of recorded queries.
func (m *MockSearch) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}

// Reset clears the call history.
func (m *MockSearch) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
}

func synthesize(query string) []SearchResult {
	plus := strings.ReplaceAll(query, " ", "+")
	dash := strings.ReplaceAll(query, " ", "-")
	return []SearchResult{
		{
			Title:      "Research on " + query + " - Academic Source",
			URL:        "https://academic-source.com/search?q=" + plus,
			Snippet:    "Comprehensive research findings on " + query + " from academic sources.",
			SourceType: SourceAcademic,
		},
		{
			Title:      query + " - Industry Report",
			URL:        "https://industry-report.com/topics/" + dash,
			Snippet:    "Industry insights and analysis on " + query + " with current trends.",
			SourceType: SourceIndustry,
		},
		{
			Title:      "News about " + query,
			URL:        "https://news-source.com/articles/" + dash,
			Snippet:    "Latest news and developments regarding " + query + ".",
			SourceType: SourceNews,
		},
	}
}
