// Package openai provides a model.Generator backed by the Chat Completions
// API. Any OpenAI-compatible endpoint (OpenRouter, local gateways) can be
// targeted through Config.BaseURL.
package openai

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/research-team/workflow/model"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

const providerName = "openai"

// Config configures a Generator.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// Generator implements model.Generator for chat-completion models.
type Generator struct {
	modelName   string
	temperature float64
	client      chatClient
}

type chatClient interface {
	complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error)
}

// New creates a Generator from cfg.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &Generator{
		modelName:   cfg.Model,
		temperature: cfg.Temperature,
		client:      &sdkClient{client: &client},
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

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.modelName),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	text, err := g.client.complete(ctx, params)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", model.Unusable(providerName, "response contained no text")
	}
	return text, nil
}

type sdkClient struct {
	client *openai.Client
}

func (c *sdkClient) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}
