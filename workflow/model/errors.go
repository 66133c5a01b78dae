package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes carried by ProviderError.
const (
	CodeTimeout          = "timeout"
	CodeRateLimited      = "rate_limited"
	CodeInvalidAPIKey    = "invalid_api_key"
	CodeQuotaExceeded    = "quota_exceeded"
	CodeServerError      = "server_error"
	CodeNetworkError     = "network_error"
	CodeContentBlocked   = "content_blocked"
	CodeUnusableResponse = "unusable_response"
	CodeUnknown          = "unknown"
)

// ErrMissingAPIKey is returned by adapters constructed without credentials.
var ErrMissingAPIKey = errors.New("API key is required")

// ProviderError is a classified failure from a generation backend.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Retryable bool
	Cause     error
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the underlying SDK error.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Unusable reports an empty or malformed provider reply.
func Unusable(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Code: CodeUnusableResponse, Message: message}
}

// Classify maps an SDK error to a *ProviderError by inspecting its text.
// context.Canceled passes through unchanged so callers can tell a caller
// abort from a backend failure.
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	classified := &ProviderError{Provider: provider, Cause: err}
	lower := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		classified.Code, classified.Message, classified.Retryable = CodeTimeout, "request timed out", true
	case containsAny(lower, "rate limit", "429", "too many requests"):
		classified.Code, classified.Message, classified.Retryable = CodeRateLimited, "rate limit exceeded", true
	case containsAny(lower, "invalid api key", "incorrect api key", "invalid x-api-key", "401", "unauthorized", "authentication", "api key not valid"):
		classified.Code, classified.Message = CodeInvalidAPIKey, "API key is invalid or expired"
	case containsAny(lower, "insufficient_quota", "quota", "billing", "credit balance"):
		classified.Code, classified.Message = CodeQuotaExceeded, "quota exceeded"
	case containsAny(lower, "safety", "blocked", "harm_category"):
		classified.Code, classified.Message = CodeContentBlocked, "content blocked by provider safety filters"
	case containsAny(lower, "500", "502", "503", "504", "529", "internal server error", "bad gateway", "service unavailable", "overloaded"):
		classified.Code, classified.Message, classified.Retryable = CodeServerError, "provider server error", true
	case containsAny(lower, "connection", "network", "dial tcp", "no such host", "eof"):
		classified.Code, classified.Message, classified.Retryable = CodeNetworkError, "network error", true
	default:
		classified.Code, classified.Message = CodeUnknown, err.Error()
	}
	return classified
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
