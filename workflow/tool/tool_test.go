package tool

import "testing"

func TestClassifySource(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://arxiv.org/abs/2401.00001", SourceAcademic},
		{"https://cs.stanford.edu/papers/x", SourceAcademic},
		{"https://news-source.com/articles/solar", SourceNews},
		{"https://www.reuters.com/business/energy", SourceNews},
		{"https://industry-report.com/topics/solar", SourceIndustry},
		{"", SourceIndustry},
	}
	for _, tt := range tests {
		if got := ClassifySource(tt.url); got != tt.want {
			t.Errorf("ClassifySource(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestSearcherImplementations(t *testing.T) {
	var _ Searcher = (*MockSearch)(nil)
	var _ Searcher = (*HTTPSearch)(nil)
}
