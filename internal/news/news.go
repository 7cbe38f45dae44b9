// Package news holds the article model and the pure filtering
// primitives of the pipeline: relevance matching, deduplication
// identities and freshness classification.
package news

import (
	"strings"
	"time"
)

// Sentiment is the market-direction label produced by enrichment.
// The zero value means the item has not been analyzed, which is a
// different state than an explicit Neutral verdict.
type Sentiment string

const (
	SentimentBullish Sentiment = "Bullish"
	SentimentBearish Sentiment = "Bearish"
	SentimentNeutral Sentiment = "Neutral"
)

// ParseSentiment maps free text from an AI response onto one of the
// three labels. Unrecognized text reports ok=false.
func ParseSentiment(s string) (Sentiment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bullish":
		return SentimentBullish, true
	case "bearish":
		return SentimentBearish, true
	case "neutral":
		return SentimentNeutral, true
	}
	return "", false
}

// AlertWorthy reports whether the label alone qualifies an item for
// alerting. Neutral never does, and neither does unanalyzed.
func (s Sentiment) AlertWorthy() bool {
	return s == SentimentBullish || s == SentimentBearish
}

// RawItem is what an ingestion source yields: untouched feed fields,
// before validation and timestamp normalization.
type RawItem struct {
	Title        string
	Description  string
	Link         string
	Source       string
	PublishedRaw string     // timestamp text as the feed gave it
	Published    *time.Time // set when the source SDK parsed it already
}

// Item is one news article inside the pipeline and in storage.
type Item struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	// TimeKnown is false when the feed timestamp was unusable and
	// PublishedAt fell back to fetch time.
	TimeKnown bool      `json:"time_known"`
	Summary   string    `json:"summary,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
	Alerted   bool      `json:"alerted"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Analyzed reports whether enrichment has run for this item.
func (it Item) Analyzed() bool {
	return it.Sentiment != ""
}

// Incomplete reports whether the item misses the fields every later
// stage depends on. Incomplete items are dropped before dedup.
func (it Item) Incomplete() bool {
	return strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.Link) == ""
}

// FromRaw builds a pipeline Item from a source item. The publication
// time is normalized to UTC; when no usable timestamp is present the
// item keeps the fetch time with TimeKnown=false.
func FromRaw(raw RawItem, now time.Time) Item {
	ts, known := NormalizeTime(raw.PublishedRaw, raw.Published, now)
	return Item{
		Title:       strings.TrimSpace(raw.Title),
		Description: strings.TrimSpace(raw.Description),
		Link:        strings.TrimSpace(raw.Link),
		Source:      raw.Source,
		PublishedAt: ts,
		TimeKnown:   known,
		FetchedAt:   now.UTC(),
	}
}
