package model

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), CodeTimeout, true},
		{"rate limit", errors.New("429 Too Many Requests"), CodeRateLimited, true},
		{"auth", errors.New("401 Unauthorized: invalid x-api-key"), CodeInvalidAPIKey, false},
		{"quota", errors.New("insufficient_quota: check your billing"), CodeQuotaExceeded, false},
		{"safety", errors.New("blocked: HARM_CATEGORY_DANGEROUS_CONTENT"), CodeContentBlocked, false},
		{"server", errors.New("503 Service Unavailable"), CodeServerError, true},
		{"network", errors.New("dial tcp: no such host"), CodeNetworkError, true},
		{"unknown", errors.New("something odd"), CodeUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("openai", tt.err)
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("got %T, want *ProviderError", err)
			}
			if pe.Code != tt.code {
				t.Errorf("code = %q, want %q", pe.Code, tt.code)
			}
			if pe.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", pe.Retryable, tt.retryable)
			}
			if pe.Provider != "openai" {
				t.Errorf("provider = %q", pe.Provider)
			}
			if !errors.Is(err, tt.err) {
				t.Error("expected classified error to unwrap to the original")
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	if Classify("x", nil) != nil {
		t.Error("nil should stay nil")
	}
	if err := Classify("x", context.Canceled); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled unchanged", err)
	}
	already := Unusable("google", "empty reply")
	if err := Classify("other", already); err != error(already) {
		t.Error("already classified errors should pass through")
	}
	if already.Error() != "google: unusable_response: empty reply" {
		t.Errorf("Error() = %q", already.Error())
	}
}
