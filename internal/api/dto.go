package api

import "github.com/crudeintel/crudeintel/internal/storage"

type ArticleResponse struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	TimeKnown   bool   `json:"time_known"`
	Summary     string `json:"summary,omitempty"`
	Sentiment   string `json:"sentiment,omitempty"`
	Analyzed    bool   `json:"analyzed"`
	Alerted     bool   `json:"alerted"`
}

type ArticlesResponse struct {
	Articles []ArticleResponse `json:"articles"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
}

type StatsResponse struct {
	storage.Stats
	MarketMood string `json:"market_mood"`
}
