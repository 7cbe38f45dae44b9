// Package config loads pipeline settings from an optional YAML file
// with environment overrides. Secrets only ever come from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "CONFIG_PATH"
	geminiKeyEnv     = "GEMINI_API_KEY"
	openaiKeyEnv     = "OPENAI_API_KEY"
	anthropicKeyEnv  = "ANTHROPIC_API_KEY"
	newsAPIKeyEnv    = "NEWSAPI_KEY"
	finnhubKeyEnv    = "FINNHUB_API_KEY"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
	databaseURLEnv   = "DATABASE_URL"
	redisURLEnv      = "REDIS_URL"
)

// FeedConfig is one RSS source.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// EndpointConfig is one messaging-bot destination. Token and ChatID
// must come together; the env-provided default endpoint is appended
// in Load when both TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are set.
type EndpointConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

type NewsAPIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Query    string `yaml:"query"`
	PageSize int    `yaml:"page_size"`
	APIKey   string `yaml:"-"`
}

type FinnhubConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Category string `yaml:"category"`
	APIKey   string `yaml:"-"`
}

type EnrichmentConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Provider           string `yaml:"provider"` // gemini | openai | anthropic
	Model              string `yaml:"model"`
	MaxCallsPerDay     int    `yaml:"max_calls_per_day"`
	MinIntervalSeconds int    `yaml:"min_interval_seconds"`
	ScrapeFullText     bool   `yaml:"scrape_full_text"`
	APIKey             string `yaml:"-"`
}

type TelegramConfig struct {
	Endpoints           []EndpointConfig `yaml:"endpoints"`
	MessageDelaySeconds int              `yaml:"message_delay_seconds"`
}

type StorageConfig struct {
	Backend        string `yaml:"backend"` // memory | file | postgres | redis
	Path           string `yaml:"path"`    // file backend
	RetentionHours int    `yaml:"retention_hours"`
	DatabaseURL    string `yaml:"-"`
	RedisURL       string `yaml:"-"`
}

type APIConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config is the full configuration surface of the service.
type Config struct {
	Keywords []string     `yaml:"keywords"`
	Feeds    []FeedConfig `yaml:"feeds"`

	AlertWindowMinutes    int `yaml:"alert_window_minutes"`
	DisplayWindowHours    int `yaml:"display_window_hours"`
	PollIntervalMinutes   int `yaml:"poll_interval_minutes"`
	PerFeedLimit          int `yaml:"per_feed_limit"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	RetryAttempts         int `yaml:"retry_attempts"`
	RetryDelaySeconds     int `yaml:"retry_delay_seconds"`

	Debug bool `yaml:"debug"`

	NewsAPI    NewsAPIConfig    `yaml:"newsapi"`
	Finnhub    FinnhubConfig    `yaml:"finnhub"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
}

// defaultKeywords is the crude-market vocabulary the relevance filter
// starts from. Deliberately broad, substring matching does the rest.
var defaultKeywords = []string{
	"crude oil", "crude", "oil", "brent", "wti", "opec", "opec+",
	"oil price", "oil futures", "oil market", "petroleum", "barrel",
	"oil production", "oil supply", "oil inventories", "oil drilling",
	"oil refinery", "oil rig", "oil pipeline", "shale oil",
	"oil sanctions", "oil embargo", "crude demand", "middle east",
	"iran", "usa crude",
}

var defaultFeeds = []FeedConfig{
	{Name: "Rigzone", URL: "https://www.rigzone.com/news/rss/rigzone_latest.aspx"},
	{Name: "Oil & Gas Journal", URL: "https://www.ogj.com/rss"},
	{Name: "World Oil", URL: "https://worldoil.com/rss"},
	{Name: "Oil & Gas 360", URL: "https://www.oilandgas360.com/feed/"},
	{Name: "OilPrice.com", URL: "https://oilprice.com/rss/main"},
	{Name: "Reuters Energy", URL: "https://www.reutersagency.com/feed/?best-topics=energy"},
	{Name: "Energy Watch", URL: "https://energywatch.com/rss"},
	{Name: "EIA Today in Energy", URL: "https://www.eia.gov/rss/todayinenergy.xml"},
	{Name: "API Energy News", URL: "https://www.api.org/news-policy-and-issues/news/rss"},
	{Name: "Economic Times Oil & Gas", URL: "https://energy.economictimes.indiatimes.com/rss/oil-and-gas"},
}

func defaultConfig() *Config {
	return &Config{
		Keywords:              defaultKeywords,
		Feeds:                 defaultFeeds,
		AlertWindowMinutes:    60,
		DisplayWindowHours:    24,
		PollIntervalMinutes:   10,
		PerFeedLimit:          6,
		RequestTimeoutSeconds: 15,
		RetryAttempts:         3,
		RetryDelaySeconds:     2,
		NewsAPI: NewsAPIConfig{
			Enabled:  true,
			Query:    "crude oil OR OPEC OR inventory",
			PageSize: 5,
		},
		Finnhub: FinnhubConfig{
			Enabled:  false,
			Category: "general",
		},
		Enrichment: EnrichmentConfig{
			Enabled:            true,
			Provider:           "gemini",
			Model:              "gemini-1.5-flash",
			MaxCallsPerDay:     200,
			MinIntervalSeconds: 2,
		},
		Telegram: TelegramConfig{
			MessageDelaySeconds: 1,
		},
		Storage: StorageConfig{
			Backend:        "file",
			Path:           "crudeintel_articles.json",
			RetentionHours: 168,
		},
		API: APIConfig{
			Enabled: true,
			Addr:    ":8080",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at
// CONFIG_PATH (default config.yaml) when present, then environment
// overrides, then validation.
func Load() (*Config, error) {
	cfg := defaultConfig()

	path := os.Getenv(configPathEnv)
	if path == "" {
		path = "config.yaml"
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.NewsAPI.APIKey = os.Getenv(newsAPIKeyEnv)
	c.Finnhub.APIKey = os.Getenv(finnhubKeyEnv)
	c.Storage.DatabaseURL = os.Getenv(databaseURLEnv)
	c.Storage.RedisURL = os.Getenv(redisURLEnv)

	switch c.Enrichment.Provider {
	case "openai":
		c.Enrichment.APIKey = os.Getenv(openaiKeyEnv)
	case "anthropic":
		c.Enrichment.APIKey = os.Getenv(anthropicKeyEnv)
	default:
		c.Enrichment.APIKey = os.Getenv(geminiKeyEnv)
	}

	// The env-provided endpoint joins the configured list so a single
	// bot deployment needs no YAML at all.
	token := os.Getenv(telegramTokenEnv)
	chatID := os.Getenv(telegramChatEnv)
	if token != "" && chatID != "" {
		c.Telegram.Endpoints = append(c.Telegram.Endpoints, EndpointConfig{Token: token, ChatID: chatID})
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("POLL_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PollIntervalMinutes = n
		}
	}
	if os.Getenv("DEBUG") == "true" {
		c.Debug = true
	}
}

// Validate rejects configurations no run mode could work with.
// Missing collaborator credentials are not checked here: a missing
// key disables that one adapter at wiring time instead of killing
// the process.
func (c *Config) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("config: keywords must not be empty")
	}
	for i, k := range c.Keywords {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("config: keyword %d is empty", i)
		}
	}

	for i, f := range c.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("config: feed %d (%s) has no url", i, f.Name)
		}
	}

	if c.PerFeedLimit < 1 {
		return fmt.Errorf("config: per_feed_limit must be at least 1")
	}
	if c.PollIntervalMinutes < 1 {
		return fmt.Errorf("config: poll_interval_minutes must be at least 1")
	}
	if c.AlertWindowMinutes < 1 {
		return fmt.Errorf("config: alert_window_minutes must be at least 1")
	}

	switch c.Storage.Backend {
	case "memory", "file", "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Enrichment.Provider {
	case "gemini", "openai", "anthropic":
	default:
		return fmt.Errorf("config: unknown enrichment provider %q", c.Enrichment.Provider)
	}

	for i, ep := range c.Telegram.Endpoints {
		if (ep.Token == "") != (ep.ChatID == "") {
			return fmt.Errorf("config: notifier endpoint %d needs both token and chat_id", i)
		}
	}

	return nil
}

// AlertWindow is how recent an item must be to page anyone.
func (c *Config) AlertWindow() time.Duration {
	return time.Duration(c.AlertWindowMinutes) * time.Minute
}

// DisplayWindow bounds dashboard queries. Zero hours means unbounded.
func (c *Config) DisplayWindow() time.Duration {
	return time.Duration(c.DisplayWindowHours) * time.Hour
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMinutes) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c *Config) MessageDelay() time.Duration {
	return time.Duration(c.Telegram.MessageDelaySeconds) * time.Second
}

func (c *Config) MinEnrichInterval() time.Duration {
	return time.Duration(c.Enrichment.MinIntervalSeconds) * time.Second
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionHours) * time.Hour
}

// ActiveEndpoints filters out placeholder entries so the notifier
// only sees usable destinations.
func (c *Config) ActiveEndpoints() []EndpointConfig {
	out := make([]EndpointConfig, 0, len(c.Telegram.Endpoints))
	for _, ep := range c.Telegram.Endpoints {
		if ep.Token != "" && ep.ChatID != "" {
			out = append(out, ep)
		}
	}
	return out
}
