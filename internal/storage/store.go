// Package storage persists articles and the alerted set. Being
// stored and being alerted are separate facts: an article sits in the
// archive for the dashboard whether or not an alert ever went out,
// and the alerted flag only flips after a send was confirmed.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/crudeintel/crudeintel/internal/config"
	"github.com/crudeintel/crudeintel/internal/news"
)

// QueryFilter narrows a dashboard query. Zero values mean "no filter".
type QueryFilter struct {
	// Sentiment matches exactly when set. Ignored when Unanalyzed is true.
	Sentiment news.Sentiment
	// Unanalyzed selects articles that never got an analysis.
	Unanalyzed bool
	Source     string
	// Window keeps articles published within the duration. Zero is unbounded.
	Window time.Duration
	Limit  int
}

// Stats is the aggregate view the dashboard shows.
type Stats struct {
	Total    int `json:"total"`
	Analyzed int `json:"analyzed"`
	Bullish  int `json:"bullish"`
	Bearish  int `json:"bearish"`
	Neutral  int `json:"neutral"`
	Alerted  int `json:"alerted"`
	Last24h  int `json:"last_24h"`
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// Insert writes the article unless its link is already present.
	// The bool reports whether a row was actually written.
	Insert(ctx context.Context, item news.Item) (bool, error)
	Exists(ctx context.Context, link string) (bool, error)
	// Get returns the stored article or nil when the link is unknown.
	Get(ctx context.Context, link string) (*news.Item, error)
	// UpdateEnrichment backfills analysis onto an already stored article.
	UpdateEnrichment(ctx context.Context, link, summary string, sentiment news.Sentiment) error
	// QueryRecent returns articles ordered newest first.
	QueryRecent(ctx context.Context, filter QueryFilter) ([]news.Item, error)
	AlreadyAlerted(ctx context.Context, link string) (bool, error)
	MarkAlerted(ctx context.Context, link string) error
	Stats(ctx context.Context) (Stats, error)
	// Cleanup drops articles fetched before the retention window and
	// reports how many went away.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}

// New builds the configured backend.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(cfg.Path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("postgres backend requires DATABASE_URL")
		}
		return NewPostgresStore(cfg.DatabaseURL)
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires REDIS_URL")
		}
		return NewRedisStore(cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
