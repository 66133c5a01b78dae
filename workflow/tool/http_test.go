package tool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSearch_Name(t *testing.T) {
	if got := NewHTTPSearch("http://localhost").Name(); got != "http_search" {
		t.Errorf("Name() = %q, want %q", got, "http_search")
	}
}

func TestHTTPSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if got := r.URL.Query().Get("q"); got != "battery storage" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("format = %q", got)
		}
		if got := r.URL.Query().Get("engine"); got != "all" {
			t.Errorf("existing query params should be kept, engine = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"title": "Paper", "url": "https://arxiv.org/abs/1", "content": "Lithium alternatives"},
			{"title": "Report", "url": "https://example.com/r", "snippet": "Market growth", "source_type": "industry"},
			{"title": "No URL"},
			{"title": "Extra", "url": "https://example.com/extra"}
		]}`))
	}))
	defer server.Close()

	s := NewHTTPSearch(server.URL + "/search?engine=all")
	hits, err := s.Search(context.Background(), "battery storage", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Snippet != "Lithium alternatives" || hits[0].SourceType != SourceAcademic {
		t.Errorf("hits[0] = %+v", hits[0])
	}
	if hits[1].Snippet != "Market growth" || hits[1].SourceType != SourceIndustry {
		t.Errorf("hits[1] = %+v", hits[1])
	}
}

func TestHTTPSearch_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		if _, err := NewHTTPSearch(server.URL).Search(context.Background(), "q", 1); err == nil {
			t.Error("expected error for 502")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		defer server.Close()

		if _, err := NewHTTPSearch(server.URL).Search(context.Background(), "q", 1); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if _, err := NewHTTPSearch("http://localhost").Search(context.Background(), "", 1); err == nil {
			t.Error("expected error for empty query")
		}
	})

	t.Run("context timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := NewHTTPSearch(server.URL).Search(ctx, "q", 1); err == nil {
			t.Error("expected timeout error")
		}
	})
}
