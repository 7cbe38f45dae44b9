package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/crudeintel/crudeintel/internal/news"
)

// MemoryStore keeps everything in a mutex-guarded map. Used for tests
// and throwaway runs; nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]news.Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]news.Item)}
}

func (m *MemoryStore) Insert(ctx context.Context, item news.Item) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[item.Link]; exists {
		return false, nil
	}
	m.items[item.Link] = item
	return true, nil
}

func (m *MemoryStore) Exists(ctx context.Context, link string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.items[link]
	return exists, nil
}

func (m *MemoryStore) Get(ctx context.Context, link string) (*news.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[link]
	if !exists {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryStore) UpdateEnrichment(ctx context.Context, link, summary string, sentiment news.Sentiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.items[link]
	if !exists {
		return nil
	}
	item.Summary = summary
	item.Sentiment = sentiment
	m.items[link] = item
	return nil
}

func (m *MemoryStore) QueryRecent(ctx context.Context, filter QueryFilter) ([]news.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var out []news.Item
	for _, item := range m.items {
		if matchesFilter(item, filter, now) {
			out = append(out, item)
		}
	}

	sortNewestFirst(out)
	return capLimit(out, filter.Limit), nil
}

func (m *MemoryStore) AlreadyAlerted(ctx context.Context, link string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[link]
	return exists && item.Alerted, nil
}

func (m *MemoryStore) MarkAlerted(ctx context.Context, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.items[link]
	if !exists {
		return nil
	}
	item.Alerted = true
	m.items[link] = item
	return nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return computeStats(m.items, time.Now()), nil
}

func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for link, item := range m.items {
		if item.FetchedAt.Before(cutoff) {
			delete(m.items, link)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Close() error { return nil }

// Shared in-memory filtering, also used by the file backend.

func matchesFilter(item news.Item, filter QueryFilter, now time.Time) bool {
	if filter.Unanalyzed {
		if item.Analyzed() {
			return false
		}
	} else if filter.Sentiment != "" && item.Sentiment != filter.Sentiment {
		return false
	}
	if filter.Source != "" && item.Source != filter.Source {
		return false
	}
	if filter.Window > 0 && item.PublishedAt.Before(now.Add(-filter.Window)) {
		return false
	}
	return true
}

func sortNewestFirst(items []news.Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

func capLimit(items []news.Item, limit int) []news.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func computeStats(items map[string]news.Item, now time.Time) Stats {
	var s Stats
	dayAgo := now.Add(-24 * time.Hour)
	for _, item := range items {
		s.Total++
		if item.Analyzed() {
			s.Analyzed++
		}
		switch item.Sentiment {
		case news.SentimentBullish:
			s.Bullish++
		case news.SentimentBearish:
			s.Bearish++
		case news.SentimentNeutral:
			s.Neutral++
		}
		if item.Alerted {
			s.Alerted++
		}
		if item.PublishedAt.After(dayAgo) {
			s.Last24h++
		}
	}
	return s
}
