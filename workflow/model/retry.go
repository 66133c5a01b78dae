package model

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	// MaxAttempts counts the first call. Values below 2 disable retries.
	MaxAttempts int

	// BaseDelay is doubled after every failed attempt, capped at MaxDelay.
	// MaxDelay == 0 means no cap.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// WithRetry repeats calls that fail with a retryable *ProviderError, waiting
// min(BaseDelay*2^attempt, MaxDelay) plus up to BaseDelay of jitter between
// attempts. Other errors and caller cancellation return immediately.
func WithRetry(g Generator, p RetryPolicy) Generator {
	if p.MaxAttempts < 2 {
		return g
	}
	return &retryGenerator{next: g, policy: p}
}

type retryGenerator struct {
	next   Generator
	policy RetryPolicy
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var err error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff(attempt-1, r.policy.BaseDelay, r.policy.MaxDelay))
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", err
			case <-timer.C:
			}
		}

		var out string
		out, err = r.next.Generate(ctx, prompt, maxTokens)
		if err == nil {
			return out, nil
		}
		if !IsRetryable(err) {
			return "", err
		}
	}
	return "", err
}

// IsRetryable reports whether err is a *ProviderError marked Retryable.
func IsRetryable(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Retryable
}

func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay + time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter, not security
}
