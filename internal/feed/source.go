// Package feed collects raw articles from the configured upstreams:
// RSS feeds, NewsAPI and Finnhub. Every adapter normalizes into
// news.RawItem; a broken upstream is reported, never fatal.
package feed

import (
	"context"

	"github.com/crudeintel/crudeintel/internal/news"
)

// Source is one upstream of raw articles.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]news.RawItem, error)
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
