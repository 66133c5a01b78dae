package worker

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var errNoJSON = errors.New("reply contains no JSON object")

// trimFences strips surrounding whitespace and a Markdown code fence.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:] // language tag
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeJSON decodes the outermost JSON object in a model reply.
func decodeJSON(reply string, v interface{}) error {
	s := trimFences(reply)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return errNoJSON
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

// listItems returns the lines of s with list markers and quotes removed.
func listItems(s string) []string {
	var out []string
	for _, line := range strings.Split(trimFences(s), "\n") {
		if item := stripMarker(line); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// bulletItems returns only the lines of s that carry a list marker.
func bulletItems(s string) []string {
	var out []string
	for _, line := range strings.Split(trimFences(s), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !hasMarker(trimmed) {
			continue
		}
		if item := stripMarker(trimmed); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// listMarker matches one bullet or "N." / "N)" token followed by space or
// the end of the line, so "1.5x growth" is text, not a numbered item.
var listMarker = regexp.MustCompile(`^(?:[-*•]|\d+[.)])(?:\s+|$)`)

func hasMarker(s string) bool {
	return listMarker.MatchString(s)
}

func stripMarker(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimSpace(strings.TrimPrefix(s, listMarker.FindString(s)))
	return strings.Trim(s, `"'`)
}

// dedupe drops empty and repeated strings, keeping first occurrences.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(item))
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	if v < 0 {
		return -round1(-v)
	}
	return float64(int64(v*10+0.5)) / 10
}
