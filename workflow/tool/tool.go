// Package tool provides the search capability the Researcher queries.
package tool

import (
	"context"
	"strings"
)

// Source types reported in SearchResult.SourceType.
const (
	SourceAcademic = "academic"
	SourceIndustry = "industry"
	SourceNews     = "news"
)

// SearchResult is one hit returned by a Searcher.
type SearchResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Snippet    string `json:"snippet"`
	SourceType string `json:"source_type"`
}

// Searcher runs a query against a search backend.
//
// Implementations must respect ctx cancellation and be safe for concurrent
// use: the Researcher issues its queries in parallel. limit caps the number
// of results returned; zero or negative means the backend default.
type Searcher interface {
	// Name identifies the backend in logs and worker metadata.
	Name() string

	// Search returns results for query.
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// ClassifySource guesses a source type from a result URL. Hosts that look
// like publishers of papers are academic, news outlets are news, and
// everything else is treated as industry material.
func ClassifySource(rawURL string) string {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, ".edu"), strings.Contains(u, "arxiv"), strings.Contains(u, "scholar"),
		strings.Contains(u, "doi.org"), strings.Contains(u, "academic"), strings.Contains(u, "journal"):
		return SourceAcademic
	case strings.Contains(u, "news"), strings.Contains(u, "reuters"), strings.Contains(u, "bbc."),
		strings.Contains(u, "nytimes"), strings.Contains(u, "/articles/"):
		return SourceNews
	default:
		return SourceIndustry
	}
}
