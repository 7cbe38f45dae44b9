// Package enrich turns a raw article into a crude-market reading: a
// short summary plus a Bullish/Bearish/Neutral call. Providers share
// one prompt and one response parser so they stay interchangeable.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/crudeintel/crudeintel/internal/news"
	"github.com/crudeintel/crudeintel/internal/ratelimit"
)

// Analysis is the enrichment result for one article.
type Analysis struct {
	Summary   string
	Sentiment news.Sentiment
}

// Analyzer is implemented by each AI provider client.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, title, content string) (*Analysis, error)
	Close()
}

// New builds the analyzer for the configured provider. An empty model
// picks each provider's default.
func New(provider, apiKey, model string) (Analyzer, error) {
	switch provider {
	case "openai":
		return NewOpenAI(apiKey, model), nil
	case "anthropic":
		return NewAnthropic(apiKey, model), nil
	case "gemini", "":
		return NewGemini(apiKey, model)
	default:
		return nil, fmt.Errorf("unknown enrichment provider %q", provider)
	}
}

// Fallback is what an article carries when analysis could not run.
// Neutral keeps a failed call from ever paging anyone.
func Fallback() *Analysis {
	return &Analysis{
		Summary:   "Analysis failed - manual review required",
		Sentiment: news.SentimentNeutral,
	}
}

const systemPrompt = `You are a commodities analyst covering the crude oil market. Follow the requested output format exactly.`

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`Analyze this crude oil related news article and provide:
1. A concise 2-sentence summary
2. Market sentiment: Bullish, Bearish, or Neutral for crude oil prices

Article Title: %s
Article Content: %s

Format your response as:
Summary: [your summary]
Sentiment: [Bullish/Bearish/Neutral]`, title, content)
}

// sanitizeContent flattens whitespace and bounds prompt size, cutting
// on a sentence where one lands late enough to keep the text useful.
func sanitizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.TrimSpace(content)
	content = strings.Join(strings.Fields(content), " ")
	maxChars := 6000
	if utf8.RuneCountInString(content) > maxChars {
		runes := []rune(content)
		trimmed := string(runes[:maxChars])
		if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
			trimmed = trimmed[:idx+1]
		}
		content = trimmed + "\n[TRUNCATED]"
	}
	return content
}

// Label patterns tolerate markdown bold and a "Market sentiment" spelling.
var (
	summaryLabel   = regexp.MustCompile(`(?i)^\**summary\**\s*: ?`)
	sentimentLabel = regexp.MustCompile(`(?i)^\**(?:market\s+)?sentiment\**\s*: ?`)
)

// parseAnalysis reads the labeled response. It never fails outright:
// a missing summary falls back to the flattened response text and a
// missing sentiment defaults to Neutral, matching how transport-level
// failures degrade.
func parseAnalysis(response string) *Analysis {
	lines := strings.Split(response, "\n")

	var summaryBuilder strings.Builder
	var sentiment news.Sentiment
	inSummary := false

	appendSummary := func(text string) {
		if text == "" {
			return
		}
		if summaryBuilder.Len() > 0 {
			summaryBuilder.WriteString(" ")
		}
		summaryBuilder.WriteString(text)
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			inSummary = false
			continue
		}

		if sentimentLabel.MatchString(line) {
			value := sentimentLabel.ReplaceAllString(line, "")
			if s, ok := news.ParseSentiment(sentimentToken(value)); ok {
				sentiment = s
			}
			inSummary = false
			continue
		}
		if summaryLabel.MatchString(line) {
			appendSummary(strings.TrimSpace(summaryLabel.ReplaceAllString(line, "")))
			inSummary = true
			continue
		}
		if inSummary {
			appendSummary(line)
		}
	}

	summary := strings.Trim(strings.TrimSpace(summaryBuilder.String()), "[]")

	if summary == "" {
		flat := strings.Join(strings.Fields(response), " ")
		if runes := []rune(flat); len(runes) > 300 {
			flat = string(runes[:300])
		}
		if flat != "" {
			summary = flat
		} else {
			summary = "Summary unavailable"
		}
	}

	if sentiment == "" {
		lower := strings.ToLower(response)
		switch {
		case strings.Contains(lower, "bullish"):
			sentiment = news.SentimentBullish
		case strings.Contains(lower, "bearish"):
			sentiment = news.SentimentBearish
		default:
			sentiment = news.SentimentNeutral
		}
	}

	return &Analysis{Summary: summary, Sentiment: sentiment}
}

// sentimentToken isolates the sentiment word from decorations like
// "[Bullish]" or "**Bearish** - prices should rise".
func sentimentToken(s string) string {
	s = strings.TrimSpace(s)
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	return strings.Trim(s, "[]()*.,;:!\"'")
}

// Throttled enforces a daily call budget and minimum spacing between
// calls on top of any Analyzer.
type Throttled struct {
	inner   Analyzer
	limiter *ratelimit.Limiter
}

func Throttle(inner Analyzer, limiter *ratelimit.Limiter) *Throttled {
	return &Throttled{inner: inner, limiter: limiter}
}

func (t *Throttled) Name() string { return t.inner.Name() }

func (t *Throttled) Analyze(ctx context.Context, title, content string) (*Analysis, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.Analyze(ctx, title, content)
}

func (t *Throttled) Close() { t.inner.Close() }
