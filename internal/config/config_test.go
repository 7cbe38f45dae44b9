package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// pointLoadAt makes Load read the given YAML body (or nothing when
// body is empty) and neutralizes ambient secrets.
func pointLoadAt(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if body != "" {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
	}
	t.Setenv(configPathEnv, path)
	for _, env := range []string{
		geminiKeyEnv, openaiKeyEnv, anthropicKeyEnv, newsAPIKeyEnv,
		finnhubKeyEnv, telegramTokenEnv, telegramChatEnv,
		databaseURLEnv, redisURLEnv, "STORAGE_BACKEND",
		"POLL_INTERVAL_MINUTES", "DEBUG",
	} {
		t.Setenv(env, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	pointLoadAt(t, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Keywords) == 0 {
		t.Fatal("expected default keywords")
	}
	if len(cfg.Feeds) == 0 {
		t.Fatal("expected default feeds")
	}
	if cfg.AlertWindow() != time.Hour {
		t.Errorf("AlertWindow = %v, want 1h", cfg.AlertWindow())
	}
	if cfg.DisplayWindow() != 24*time.Hour {
		t.Errorf("DisplayWindow = %v, want 24h", cfg.DisplayWindow())
	}
	if cfg.PollInterval() != 10*time.Minute {
		t.Errorf("PollInterval = %v, want 10m", cfg.PollInterval())
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Backend = %q, want file", cfg.Storage.Backend)
	}
	if !cfg.NewsAPI.Enabled {
		t.Error("NewsAPI should be enabled by default")
	}
	if cfg.Finnhub.Enabled {
		t.Error("Finnhub should be disabled by default")
	}
	if cfg.Enrichment.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Enrichment.Provider)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	pointLoadAt(t, `
keywords:
  - diesel
  - gasoline
alert_window_minutes: 30
per_feed_limit: 3
newsapi:
  enabled: false
storage:
  backend: memory
enrichment:
  provider: openai
  model: gpt-4o-mini
telegram:
  endpoints:
    - token: tok-1
      chat_id: "-100200"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Keywords) != 2 || cfg.Keywords[0] != "diesel" {
		t.Errorf("Keywords = %v, want file values to replace defaults", cfg.Keywords)
	}
	if cfg.AlertWindow() != 30*time.Minute {
		t.Errorf("AlertWindow = %v, want 30m", cfg.AlertWindow())
	}
	if cfg.PerFeedLimit != 3 {
		t.Errorf("PerFeedLimit = %d, want 3", cfg.PerFeedLimit)
	}
	if cfg.NewsAPI.Enabled {
		t.Error("NewsAPI.Enabled should be overridden to false")
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Enrichment.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", cfg.Enrichment.Model)
	}
	if len(cfg.Telegram.Endpoints) != 1 || cfg.Telegram.Endpoints[0].ChatID != "-100200" {
		t.Errorf("Endpoints = %+v", cfg.Telegram.Endpoints)
	}
	// Untouched fields keep their defaults.
	if cfg.PollInterval() != 10*time.Minute {
		t.Errorf("PollInterval = %v, want default 10m", cfg.PollInterval())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	pointLoadAt(t, "")
	t.Setenv(telegramTokenEnv, "env-token")
	t.Setenv(telegramChatEnv, "12345")
	t.Setenv(newsAPIKeyEnv, "napi-key")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv(redisURLEnv, "redis://localhost:6379")
	t.Setenv("POLL_INTERVAL_MINUTES", "5")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	eps := cfg.ActiveEndpoints()
	if len(eps) != 1 || eps[0].Token != "env-token" || eps[0].ChatID != "12345" {
		t.Errorf("ActiveEndpoints = %+v", eps)
	}
	if cfg.NewsAPI.APIKey != "napi-key" {
		t.Errorf("NewsAPI.APIKey = %q", cfg.NewsAPI.APIKey)
	}
	if cfg.Storage.Backend != "redis" {
		t.Errorf("Backend = %q, want redis", cfg.Storage.Backend)
	}
	if cfg.Storage.RedisURL == "" {
		t.Error("RedisURL should come from env")
	}
	if cfg.PollInterval() != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.PollInterval())
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
}

func TestEnrichmentKeySelection(t *testing.T) {
	pointLoadAt(t, "enrichment:\n  provider: anthropic\n")
	t.Setenv(anthropicKeyEnv, "ant-key")
	t.Setenv(geminiKeyEnv, "gem-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Enrichment.APIKey != "ant-key" {
		t.Errorf("APIKey = %q, want provider-matched key", cfg.Enrichment.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"empty keywords", func(c *Config) { c.Keywords = nil }, true},
		{"blank keyword entry", func(c *Config) { c.Keywords = []string{"oil", "  "} }, true},
		{"feed without url", func(c *Config) { c.Feeds = []FeedConfig{{Name: "x"}} }, true},
		{"zero per-feed limit", func(c *Config) { c.PerFeedLimit = 0 }, true},
		{"zero poll interval", func(c *Config) { c.PollIntervalMinutes = 0 }, true},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "dynamo" }, true},
		{"unknown provider", func(c *Config) { c.Enrichment.Provider = "llama" }, true},
		{
			"endpoint missing chat id",
			func(c *Config) {
				c.Telegram.Endpoints = []EndpointConfig{{Token: "tok"}}
			},
			true,
		},
		{
			"complete endpoint",
			func(c *Config) {
				c.Telegram.Endpoints = []EndpointConfig{{Token: "tok", ChatID: "1"}}
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActiveEndpoints(t *testing.T) {
	cfg := defaultConfig()
	cfg.Telegram.Endpoints = []EndpointConfig{
		{Token: "a", ChatID: "1"},
		{},
		{Token: "b", ChatID: "2"},
	}
	eps := cfg.ActiveEndpoints()
	if len(eps) != 2 {
		t.Fatalf("ActiveEndpoints = %d entries, want 2", len(eps))
	}
	if eps[0].Token != "a" || eps[1].Token != "b" {
		t.Errorf("ActiveEndpoints order = %+v", eps)
	}
}
