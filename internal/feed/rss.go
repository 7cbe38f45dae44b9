package feed

import (
	"context"
	"log/slog"

	"github.com/mmcdole/gofeed"

	"github.com/crudeintel/crudeintel/internal/config"
	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/news"
)

// RSS reads the configured feed list. One broken feed is logged and
// skipped, the rest of the list still gets fetched.
type RSS struct {
	feeds  []config.FeedConfig
	limit  int
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewRSS(feeds []config.FeedConfig, perFeedLimit int) *RSS {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &RSS{
		feeds:  feeds,
		limit:  perFeedLimit,
		parser: parser,
		log:    logger.Component("rss"),
	}
}

func (r *RSS) Name() string { return "rss" }

func (r *RSS) Fetch(ctx context.Context) ([]news.RawItem, error) {
	var items []news.RawItem
	successCount := 0

	for _, f := range r.feeds {
		feed, err := r.parser.ParseURLWithContext(f.URL, ctx)
		if err != nil {
			r.log.Warn("error parsing RSS feed", "feed", f.Name, "url", f.URL, "error", err)
			continue
		}

		label := "RSS - " + feedLabel(f, feed)
		count := 0
		for _, entry := range feed.Items {
			if r.limit > 0 && count >= r.limit {
				break
			}
			items = append(items, news.RawItem{
				Title:        entry.Title,
				Description:  entry.Description,
				Link:         entry.Link,
				Source:       label,
				PublishedRaw: entry.Published,
				Published:    entry.PublishedParsed,
			})
			count++
		}
		successCount++
		r.log.Debug("loaded feed", "feed", f.Name, "items", count)
	}

	r.log.Info("processed RSS feeds", "ok", successCount, "total", len(r.feeds))
	return items, nil
}

func feedLabel(f config.FeedConfig, feed *gofeed.Feed) string {
	if f.Name != "" {
		return f.Name
	}
	if feed.Title != "" {
		return feed.Title
	}
	return f.URL
}
