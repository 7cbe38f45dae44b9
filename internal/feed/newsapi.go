package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/news"
)

const defaultNewsAPIBase = "https://newsapi.org"

// NewsAPI queries the /v2/everything endpoint for recent articles
// matching the configured query.
type NewsAPI struct {
	apiKey   string
	query    string
	pageSize int
	baseURL  string
	client   *http.Client
	log      *slog.Logger
}

func NewNewsAPI(apiKey, query string, pageSize int, timeout time.Duration) *NewsAPI {
	if pageSize <= 0 {
		pageSize = 5
	}
	return &NewsAPI{
		apiKey:   apiKey,
		query:    query,
		pageSize: pageSize,
		baseURL:  defaultNewsAPIBase,
		client:   &http.Client{Timeout: timeout},
		log:      logger.Component("newsapi"),
	}
}

func (n *NewsAPI) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (n *NewsAPI) Fetch(ctx context.Context) ([]news.RawItem, error) {
	endpoint, err := url.Parse(n.baseURL + "/v2/everything")
	if err != nil {
		return nil, fmt.Errorf("newsapi url: %w", err)
	}

	from := time.Now().UTC().Add(-24 * time.Hour).Format("2006-01-02T15:04:05Z")
	q := endpoint.Query()
	q.Set("q", n.query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(n.pageSize))
	q.Set("from", from)
	q.Set("apiKey", n.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi fetch: %w", err)
	}
	defer resp.Body.Close()

	var payload newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("newsapi decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK || payload.Status != "ok" {
		return nil, fmt.Errorf("newsapi error %d: %s %s", resp.StatusCode, payload.Code, payload.Message)
	}

	items := make([]news.RawItem, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		// Entries without title or link are useless downstream.
		if a.Title == "" || a.URL == "" {
			continue
		}
		name := a.Source.Name
		if name == "" {
			name = "Unknown"
		}
		raw := news.RawItem{
			Title:        a.Title,
			Description:  a.Description,
			Link:         a.URL,
			Source:       "NewsAPI - " + name,
			PublishedRaw: a.PublishedAt,
		}
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			raw.Published = &ts
		}
		items = append(items, raw)
	}

	n.log.Debug("fetched NewsAPI articles", "count", len(items))
	return items, nil
}
