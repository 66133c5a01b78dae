package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout bounds every call of g by d. A call that runs out of time
// returns a *ProviderError with code CodeTimeout. A zero or negative d
// returns g unchanged.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return &timeoutGenerator{next: g, timeout: d}
}

type timeoutGenerator struct {
	next    Generator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	out, err := t.next.Generate(callCtx, prompt, maxTokens)
	if err == nil {
		return out, nil
	}

	// Only a deadline we imposed becomes a timeout error; a caller's own
	// cancellation passes through untouched.
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &ProviderError{
			Code:      CodeTimeout,
			Message:   fmt.Sprintf("generation exceeded timeout of %v", t.timeout),
			Retryable: true,
			Cause:     err,
		}
	}
	return "", err
}
