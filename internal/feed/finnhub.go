package feed

import (
	"context"
	"fmt"
	"time"

	finnhub "github.com/Finnhub-Stock-API/finnhub-go/v2"

	"github.com/crudeintel/crudeintel/internal/news"
)

// Finnhub pulls the market-news firehose. It is deliberately broad,
// the relevance filter downstream keeps only crude stories.
type Finnhub struct {
	client   *finnhub.DefaultApiService
	category string
}

func NewFinnhub(apiKey, category string) *Finnhub {
	cfg := finnhub.NewConfiguration()
	cfg.AddDefaultHeader("X-Finnhub-Token", apiKey)
	client := finnhub.NewAPIClient(cfg).DefaultApi
	if category == "" {
		category = "general"
	}
	return &Finnhub{client: client, category: category}
}

func (f *Finnhub) Name() string { return "finnhub" }

func (f *Finnhub) Fetch(ctx context.Context) ([]news.RawItem, error) {
	res, _, err := f.client.MarketNews(ctx).Category(f.category).Execute()
	if err != nil {
		return nil, fmt.Errorf("finnhub market news: %w", err)
	}

	items := make([]news.RawItem, 0, len(res))
	for _, entry := range res {
		var raw news.RawItem
		if entry.Headline != nil {
			raw.Title = *entry.Headline
		}
		if entry.Summary != nil {
			raw.Description = *entry.Summary
		}
		if entry.Url != nil {
			raw.Link = *entry.Url
		}
		publisher := "Unknown"
		if entry.Source != nil && *entry.Source != "" {
			publisher = *entry.Source
		}
		raw.Source = "Finnhub - " + publisher
		if entry.Datetime != nil {
			ts := time.Unix(*entry.Datetime, 0).UTC()
			raw.Published = &ts
			raw.PublishedRaw = ts.Format(time.RFC3339)
		}
		items = append(items, raw)
	}

	return items, nil
}
