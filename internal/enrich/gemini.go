package enrich

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini analyzes articles through the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(apiKey, model string) (*Gemini, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Analyze(ctx context.Context, title, content string) (*Analysis, error) {
	model := g.client.GenerativeModel(g.model)
	prompt := buildPrompt(title, sanitizeContent(content))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	return parseAnalysis(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])), nil
}

func (g *Gemini) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
