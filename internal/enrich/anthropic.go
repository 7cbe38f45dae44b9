package enrich

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic analyzes articles through the Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  anthropic.Model
}

func NewAnthropic(apiKey, model string) *Anthropic {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	m := anthropic.Model("claude-haiku-4-5")
	if model != "" {
		m = anthropic.Model(model)
	}
	return &Anthropic{client: &client, model: m}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Analyze(ctx context.Context, title, content string) (*Analysis, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(title, sanitizeContent(content)))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("no response from anthropic")
	}

	return parseAnalysis(resp.Content[0].Text), nil
}

func (a *Anthropic) Close() {}
