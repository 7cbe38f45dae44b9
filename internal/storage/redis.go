package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/news"
)

const (
	redisArticlePrefix = "crudeintel:article:"
	redisIndexKey      = "crudeintel:index"
	redisAlertedKey    = "crudeintel:alerted"
)

// RedisStore keeps each article as a JSON document, a sorted set of
// links by publish time for range queries, and the alerted links as a
// plain set.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Allow a bare host:port address.
		opt = &redis.Options{Addr: redisURL}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	store := &RedisStore{client: client, log: logger.Component("storage")}
	store.log.Info("redis store connected")
	return store, nil
}

func (r *RedisStore) Insert(ctx context.Context, item news.Item) (bool, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("marshal article: %w", err)
	}

	inserted, err := r.client.SetNX(ctx, redisArticlePrefix+item.Link, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("insert article: %w", err)
	}
	if !inserted {
		return false, nil
	}

	err = r.client.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(item.PublishedAt.Unix()),
		Member: item.Link,
	}).Err()
	if err != nil {
		return true, fmt.Errorf("index article: %w", err)
	}
	return true, nil
}

func (r *RedisStore) Exists(ctx context.Context, link string) (bool, error) {
	n, err := r.client.Exists(ctx, redisArticlePrefix+link).Result()
	if err != nil {
		return false, fmt.Errorf("check article: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Get(ctx context.Context, link string) (*news.Item, error) {
	return r.getArticle(ctx, link)
}

func (r *RedisStore) UpdateEnrichment(ctx context.Context, link, summary string, sentiment news.Sentiment) error {
	item, err := r.getArticle(ctx, link)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	item.Summary = summary
	item.Sentiment = sentiment
	return r.setArticle(ctx, *item)
}

func (r *RedisStore) QueryRecent(ctx context.Context, filter QueryFilter) ([]news.Item, error) {
	min := "-inf"
	if filter.Window > 0 {
		cutoff := time.Now().Add(-filter.Window).Unix()
		min = strconv.FormatInt(cutoff, 10)
	}

	links, err := r.client.ZRevRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	now := time.Now()
	var items []news.Item
	for _, link := range links {
		item, err := r.getArticle(ctx, link)
		if err != nil {
			r.log.Warn("error loading article", "link", link, "error", err)
			continue
		}
		if item == nil {
			continue
		}
		if !matchesFilter(*item, filter, now) {
			continue
		}
		items = append(items, *item)
		if filter.Limit > 0 && len(items) >= filter.Limit {
			break
		}
	}
	return items, nil
}

func (r *RedisStore) AlreadyAlerted(ctx context.Context, link string) (bool, error) {
	alerted, err := r.client.SIsMember(ctx, redisAlertedKey, link).Result()
	if err != nil {
		return false, fmt.Errorf("check alerted: %w", err)
	}
	return alerted, nil
}

func (r *RedisStore) MarkAlerted(ctx context.Context, link string) error {
	if err := r.client.SAdd(ctx, redisAlertedKey, link).Err(); err != nil {
		return fmt.Errorf("mark alerted: %w", err)
	}

	// Flip the flag on the stored article too so queries see it.
	item, err := r.getArticle(ctx, link)
	if err != nil || item == nil {
		return err
	}
	item.Alerted = true
	return r.setArticle(ctx, *item)
}

func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	items, err := r.loadAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	byLink := make(map[string]news.Item, len(items))
	for _, item := range items {
		byLink[item.Link] = item
	}
	return computeStats(byLink, time.Now()), nil
}

func (r *RedisStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)

	items, err := r.loadAll(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, item := range items {
		if !item.FetchedAt.Before(cutoff) {
			continue
		}
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, redisArticlePrefix+item.Link)
		pipe.ZRem(ctx, redisIndexKey, item.Link)
		pipe.SRem(ctx, redisAlertedKey, item.Link)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("cleanup article: %w", err)
		}
		removed++
	}
	if removed > 0 {
		r.log.Info("cleaned up old articles", "removed", removed)
	}
	return removed, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) getArticle(ctx context.Context, link string) (*news.Item, error) {
	data, err := r.client.Get(ctx, redisArticlePrefix+link).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}

	var item news.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("unmarshal article: %w", err)
	}
	return &item, nil
}

func (r *RedisStore) setArticle(ctx context.Context, item news.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}
	if err := r.client.Set(ctx, redisArticlePrefix+item.Link, data, 0).Err(); err != nil {
		return fmt.Errorf("set article: %w", err)
	}
	return nil
}

func (r *RedisStore) loadAll(ctx context.Context) ([]news.Item, error) {
	links, err := r.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	items := make([]news.Item, 0, len(links))
	for _, link := range links {
		item, err := r.getArticle(ctx, link)
		if err != nil || item == nil {
			continue
		}
		items = append(items, *item)
	}
	return items, nil
}
