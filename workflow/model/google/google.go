// Package google provides a model.Generator backed by Gemini.
package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/research-team/workflow/model"
)

// DefaultModel is used when New receives an empty model name.
const DefaultModel = "gemini-1.5-flash"

const providerName = "google"

// Generator implements model.Generator for Gemini models. A client is opened
// per call and closed before Generate returns.
type Generator struct {
	modelName string
	client    contentClient
}

type contentClient interface {
	generate(ctx context.Context, modelName, prompt string, maxTokens int) (string, error)
}

// New creates a Generator.
func New(apiKey, modelName string) (*Generator, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Generator{
		modelName: modelName,
		client:    &sdkClient{apiKey: apiKey},
	}, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.modelName
}

// Generate implements model.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := g.client.generate(ctx, g.modelName, prompt, maxTokens)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", model.Unusable(providerName, "response contained no text")
	}
	return text, nil
}

type sdkClient struct {
	apiKey string
}

func (c *sdkClient) generate(ctx context.Context, modelName, prompt string, maxTokens int) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("create client: %w", err)
	}
	defer func() { _ = client.Close() }()

	gm := client.GenerativeModel(modelName)
	if maxTokens > 0 {
		gm.SetMaxOutputTokens(int32(maxTokens))
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("response blocked by safety filter")
	}
	if candidate.Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
