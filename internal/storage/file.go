package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/crudeintel/crudeintel/internal/news"
)

// FileStore keeps the archive in a JSON file. Every mutation rewrites
// the file through a temp-file rename so a crash mid-write never
// leaves a torn archive behind.
type FileStore struct {
	path  string
	mu    sync.RWMutex
	items map[string]news.Item
}

func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{
		path:  path,
		items: make(map[string]news.Item),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read archive file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []news.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal archive: %w", err)
	}
	for _, item := range items {
		f.items[item.Link] = item
	}
	return nil
}

// persistLocked writes the archive. Callers hold the write lock.
func (f *FileStore) persistLocked() error {
	items := make([]news.Item, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive: %w", err)
	}

	tmp := f.path + ".tmp"
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create archive dir: %w", err)
		}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace archive file: %w", err)
	}
	return nil
}

func (f *FileStore) Insert(ctx context.Context, item news.Item) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.items[item.Link]; exists {
		return false, nil
	}
	f.items[item.Link] = item
	if err := f.persistLocked(); err != nil {
		delete(f.items, item.Link)
		return false, err
	}
	return true, nil
}

func (f *FileStore) Exists(ctx context.Context, link string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, exists := f.items[link]
	return exists, nil
}

func (f *FileStore) Get(ctx context.Context, link string) (*news.Item, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	item, exists := f.items[link]
	if !exists {
		return nil, nil
	}
	return &item, nil
}

func (f *FileStore) UpdateEnrichment(ctx context.Context, link, summary string, sentiment news.Sentiment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, exists := f.items[link]
	if !exists {
		return nil
	}
	item.Summary = summary
	item.Sentiment = sentiment
	f.items[link] = item
	return f.persistLocked()
}

func (f *FileStore) QueryRecent(ctx context.Context, filter QueryFilter) ([]news.Item, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	now := time.Now()
	var out []news.Item
	for _, item := range f.items {
		if matchesFilter(item, filter, now) {
			out = append(out, item)
		}
	}

	sortNewestFirst(out)
	return capLimit(out, filter.Limit), nil
}

func (f *FileStore) AlreadyAlerted(ctx context.Context, link string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	item, exists := f.items[link]
	return exists && item.Alerted, nil
}

func (f *FileStore) MarkAlerted(ctx context.Context, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, exists := f.items[link]
	if !exists {
		return nil
	}
	item.Alerted = true
	f.items[link] = item
	return f.persistLocked()
}

func (f *FileStore) Stats(ctx context.Context) (Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return computeStats(f.items, time.Now()), nil
}

func (f *FileStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for link, item := range f.items {
		if item.FetchedAt.Before(cutoff) {
			delete(f.items, link)
			removed++
		}
	}
	if removed > 0 {
		if err := f.persistLocked(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (f *FileStore) Close() error { return nil }
