// Package model defines the text generation capability workers call and
// the adapters that back it.
package model

import "context"

// Generator produces text for a prompt.
//
// It is the only interface workers use to reach a language model, which
// keeps provider SDKs out of the pipeline and lets tests substitute
// MockGenerator. maxTokens bounds the reply length; implementations may clamp
// it to what the provider supports. A Generator makes a single attempt per
// call: retry policy, if any, belongs to the caller.
//
// Implementations must be safe for concurrent use and must respect ctx
// cancellation and deadlines.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
//
//	echo := model.GeneratorFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
//	    return prompt, nil
//	})
type GeneratorFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}
