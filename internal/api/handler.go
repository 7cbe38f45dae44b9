// Package api exposes the dashboard and monitoring HTTP surface:
// recent articles with sentiment filters, aggregate stats, health and
// metrics probes, and a test-alert trigger.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/metrics"
	"github.com/crudeintel/crudeintel/internal/news"
	"github.com/crudeintel/crudeintel/internal/storage"
)

// ArticleStore is the slice of the storage layer the API reads from.
type ArticleStore interface {
	QueryRecent(ctx context.Context, filter storage.QueryFilter) ([]news.Item, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

// Alerter triggers a test delivery to the configured chat endpoints.
type Alerter interface {
	SendTest(ctx context.Context) error
}

type Handler struct {
	store         ArticleStore
	metrics       *metrics.Metrics
	alerter       Alerter
	displayWindow time.Duration
	log           *slog.Logger
}

// NewHandler wires the API against its collaborators. A nil alerter
// disables the test-alert endpoint.
func NewHandler(store ArticleStore, m *metrics.Metrics, alerter Alerter, displayWindow time.Duration) *Handler {
	return &Handler{
		store:         store,
		metrics:       m,
		alerter:       alerter,
		displayWindow: displayWindow,
		log:           logger.Component("api"),
	}
}

// GetArticles serves the dashboard feed. Unanalyzed is a first-class
// filter value next to the three verdicts, so articles the AI never
// saw stay findable.
func (h *Handler) GetArticles(c *gin.Context) {
	limit := getQueryLimit(c)

	filter := storage.QueryFilter{
		Limit:  limit,
		Source: c.Query("source"),
		Window: h.displayWindow,
	}
	if hours := getQueryInt("hours", 0, c); hours > 0 {
		filter.Window = time.Duration(hours) * time.Hour
	}

	if q := c.Query("sentiment"); q != "" {
		if strings.EqualFold(q, "unanalyzed") {
			filter.Unanalyzed = true
		} else {
			s, ok := news.ParseSentiment(q)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sentiment filter"})
				return
			}
			filter.Sentiment = s
		}
	}

	items, err := h.store.QueryRecent(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("error querying articles", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	articles := make([]ArticleResponse, 0, len(items))
	for _, it := range items {
		articles = append(articles, ArticleResponse{
			Title:       it.Title,
			Description: it.Description,
			Link:        it.Link,
			Source:      it.Source,
			PublishedAt: it.PublishedAt.Format(time.RFC3339),
			TimeKnown:   it.TimeKnown,
			Summary:     it.Summary,
			Sentiment:   string(it.Sentiment),
			Analyzed:    it.Analyzed(),
			Alerted:     it.Alerted,
		})
	}

	c.JSON(http.StatusOK, ArticlesResponse{
		Articles: articles,
		Total:    len(articles),
		Limit:    limit,
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.log.Error("error fetching stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		Stats:      stats,
		MarketMood: marketMood(stats),
	})
}

func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.GetStats())
}

func (h *Handler) GetHealth(c *gin.Context) {
	if !h.metrics.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) SendTestAlert(c *gin.Context) {
	if h.alerter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Alerting disabled"})
		return
	}

	if err := h.alerter.SendTest(c.Request.Context()); err != nil {
		h.log.Error("test alert failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Test alert delivery failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// marketMood condenses the verdict counts into one word for the
// dashboard header.
func marketMood(s storage.Stats) string {
	switch {
	case s.Bullish > s.Bearish:
		return string(news.SentimentBullish)
	case s.Bearish > s.Bullish:
		return string(news.SentimentBearish)
	default:
		return string(news.SentimentNeutral)
	}
}

func getQueryInt(name string, defaultValue int, c *gin.Context) int {
	raw := c.Query(name)
	if raw == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid query parameter, using default", "param", name, "value", raw, "error", err)
		return defaultValue
	}
	return parsed
}

func getQueryLimit(c *gin.Context) int {
	const (
		defaultLimit = 10
		maxLimit     = 100
	)

	limit := getQueryInt("limit", defaultLimit, c)
	if limit < 1 {
		slog.Warn("invalid query parameter, using default", "param", "limit", "value", limit, "default", defaultLimit)
		return defaultLimit
	}
	if limit > maxLimit {
		slog.Warn("query parameter exceeds max, clamping", "param", "limit", "value", limit, "max", maxLimit)
		return maxLimit
	}
	return limit
}
