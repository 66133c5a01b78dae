package model

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator is a scripted Generator for tests and offline runs.
//
// Replies are chosen in this order:
//  1. Err, when set, is returned for every call.
//  2. The first Rules entry whose Contains substring appears in the prompt.
//  3. Responses in order, repeating the last one once exhausted.
//  4. An empty string.
//
// Every call is recorded in Calls.
//
//	m := &model.MockGenerator{Responses: []string{"first", "second"}}
//	out, _ := m.Generate(ctx, "prompt", 100) // "first"
type MockGenerator struct {
	// Responses are returned in sequence.
	Responses []string

	// Rules route prompts to canned replies by substring.
	Rules []MockRule

	// Err, if non-nil, is returned by every call.
	Err error

	// Calls records every invocation.
	Calls []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockRule maps prompts containing Contains to Response (or Err).
type MockRule struct {
	Contains string
	Response string
	Err      error
}

// MockCall records one Generate invocation.
type MockCall struct {
	Prompt    string
	MaxTokens int
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Prompt: prompt, MaxTokens: maxTokens})

	if m.Err != nil {
		return "", m.Err
	}

	for _, rule := range m.Rules {
		if strings.Contains(prompt, rule.Contains) {
			return rule.Response, rule.Err
		}
	}

	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears recorded calls and restarts the response sequence.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of recorded calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
