// Package anthropic provides a model.Generator backed by Anthropic's
// Messages API.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/research-team/workflow/model"
)

// DefaultModel is used when New receives an empty model name.
const DefaultModel = "claude-3-5-haiku-latest"

const providerName = "anthropic"

// Generator implements model.Generator for Claude models.
//
//	g, err := anthropic.New(os.Getenv("ANTHROPIC_API_KEY"), "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	text, err := g.Generate(ctx, "Summarize the state of solid-state batteries", 800)
type Generator struct {
	modelName string
	client    messagesClient
}

// messagesClient isolates the SDK call so tests can substitute it.
type messagesClient interface {
	createMessage(ctx context.Context, modelName, prompt string, maxTokens int) (string, error)
}

// New creates a Generator. An empty apiKey returns model.ErrMissingAPIKey.
func New(apiKey, modelName string) (*Generator, error) {
	if apiKey == "" {
		return nil, model.ErrMissingAPIKey
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Generator{
		modelName: modelName,
		client:    &sdkClient{client: &client},
	}, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.modelName
}

// Generate sends prompt as a single user message and returns the text blocks
// of the reply.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	text, err := g.client.createMessage(ctx, g.modelName, prompt, maxTokens)
	if err != nil {
		return "", model.Classify(providerName, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", model.Unusable(providerName, "response contained no text")
	}
	return text, nil
}

type sdkClient struct {
	client *anthropic.Client
}

func (c *sdkClient) createMessage(ctx context.Context, modelName, prompt string, maxTokens int) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
