package enrich

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI analyzes articles through the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	model  openai.ChatModel
}

func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	m := openai.ChatModelGPT4oMini
	if model != "" {
		m = openai.ChatModel(model)
	}
	return &OpenAI{client: &client, model: m}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Analyze(ctx context.Context, title, content string) (*Analysis, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(title, sanitizeContent(content))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	return parseAnalysis(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) Close() {}
