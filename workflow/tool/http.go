package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// HTTPSearch queries a JSON search endpoint such as a SearXNG instance.
//
// Requests are GET <endpoint>?q=<query>&format=json[&limit=N]. The response
// body must be an object with a "results" array whose items carry title,
// url and either snippet or content. Items without a source_type are
// classified from their URL with ClassifySource.
//
//	s := tool.NewHTTPSearch("https://search.internal/search")
//	hits, err := s.Search(ctx, "grid scale storage", 5)
type HTTPSearch struct {
	endpoint string
	client   *http.Client
}

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 4 << 20

// NewHTTPSearch creates a search client for endpoint. Requests are capped at
// 60s; tighter deadlines come from the caller's context.
func NewHTTPSearch(endpoint string) *HTTPSearch {
	return &HTTPSearch{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Name implements Searcher.
func (h *HTTPSearch) Name() string {
	return "http_search"
}

type httpSearchResponse struct {
	Results []struct {
		Title      string `json:"title"`
		URL        string `json:"url"`
		Snippet    string `json:"snippet"`
		Content    string `json:"content"`
		SourceType string `json:"source_type"`
	} `json:"results"`
}

// Search implements Searcher.
func (h *HTTPSearch) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query required")
	}

	u, err := url.Parse(h.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	params := u.Query()
	params.Set("q", query)
	params.Set("format", "json")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var decoded httpSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		if item.URL == "" {
			continue
		}
		snippet := item.Snippet
		if snippet == "" {
			snippet = item.Content
		}
		sourceType := item.SourceType
		if sourceType == "" {
			sourceType = ClassifySource(item.URL)
		}
		results = append(results, SearchResult{
			Title:      item.Title,
			URL:        item.URL,
			Snippet:    snippet,
			SourceType: sourceType,
		})
		if limit > 0 && len(results) == limit {
			break
		}
	}
	return results, nil
}
