package model

import (
	"context"
	"errors"
	"testing"
	"time"
)

func blockingGenerator() Generator {
	return GeneratorFunc(func(ctx context.Context, _ string, _ int) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
}

func TestWithTimeout(t *testing.T) {
	t.Run("times out slow calls", func(t *testing.T) {
		g := WithTimeout(blockingGenerator(), 20*time.Millisecond)

		_, err := g.Generate(context.Background(), "p", 10)
		var pe *ProviderError
		if !errors.As(err, &pe) {
			t.Fatalf("err = %v, want *ProviderError", err)
		}
		if pe.Code != CodeTimeout {
			t.Errorf("code = %q, want %q", pe.Code, CodeTimeout)
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Error("expected cause to unwrap to DeadlineExceeded")
		}
	})

	t.Run("caller cancellation passes through", func(t *testing.T) {
		g := WithTimeout(blockingGenerator(), time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := g.Generate(ctx, "p", 10)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("fast calls succeed", func(t *testing.T) {
		g := WithTimeout(&MockGenerator{Responses: []string{"ok"}}, time.Second)
		got, err := g.Generate(context.Background(), "p", 10)
		if err != nil || got != "ok" {
			t.Errorf("got (%q, %v), want (ok, nil)", got, err)
		}
	})

	t.Run("zero timeout returns generator unchanged", func(t *testing.T) {
		inner := &MockGenerator{}
		if WithTimeout(inner, 0) != Generator(inner) {
			t.Error("expected original generator")
		}
	})
}
