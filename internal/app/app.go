// Package app is the composition root: it builds every collaborator
// from config and runs the poll loop plus the HTTP server until the
// process is told to stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crudeintel/crudeintel/internal/api"
	"github.com/crudeintel/crudeintel/internal/config"
	"github.com/crudeintel/crudeintel/internal/enrich"
	"github.com/crudeintel/crudeintel/internal/feed"
	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/metrics"
	"github.com/crudeintel/crudeintel/internal/news"
	"github.com/crudeintel/crudeintel/internal/pipeline"
	"github.com/crudeintel/crudeintel/internal/ratelimit"
	"github.com/crudeintel/crudeintel/internal/retry"
	"github.com/crudeintel/crudeintel/internal/scraper"
	"github.com/crudeintel/crudeintel/internal/storage"
	"github.com/crudeintel/crudeintel/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

// App owns the long-lived pieces of the service.
type App struct {
	cfg      *config.Config
	store    storage.Store
	pipe     *pipeline.Pipeline
	notifier *telegram.Notifier
	enricher enrich.Analyzer
	metrics  *metrics.Metrics
	server   *http.Server
	log      *slog.Logger
}

// New builds the service from config. Missing credentials disable the
// piece that needs them instead of failing startup: the poller keeps
// collecting headlines even when the AI provider or the bot token is
// not set up yet.
func New(cfg *config.Config) (*App, error) {
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	matcher, err := news.NewMatcher(cfg.Keywords)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		store:   store,
		metrics: metrics.New(),
		log:     logger.Component("app"),
	}
	a.buildEnricher()
	a.buildNotifier()

	opts := pipeline.Options{
		Sources:     a.buildSources(),
		Matcher:     matcher,
		Store:       store,
		Metrics:     a.metrics,
		AlertWindow: cfg.AlertWindow(),
	}
	if a.enricher != nil {
		opts.Enricher = a.enricher
		if cfg.Enrichment.ScrapeFullText {
			opts.Extractor = scraper.New(cfg.RequestTimeout())
		}
	}
	if a.notifier != nil {
		opts.Notifier = a.notifier
	}
	a.pipe = pipeline.New(opts)

	if cfg.API.Enabled {
		var alerter api.Alerter
		if a.notifier != nil {
			alerter = a.notifier
		}
		handler := api.NewHandler(store, a.metrics, alerter, cfg.DisplayWindow())
		a.server = &http.Server{
			Addr:    cfg.API.Addr,
			Handler: api.NewRouter(handler, cfg.API.AllowedOrigins),
		}
	}

	return a, nil
}

func (a *App) buildSources() []feed.Source {
	sources := []feed.Source{feed.NewRSS(a.cfg.Feeds, a.cfg.PerFeedLimit)}

	if a.cfg.NewsAPI.Enabled {
		if a.cfg.NewsAPI.APIKey == "" {
			a.log.Warn("NewsAPI enabled but NEWSAPI_KEY is not set, skipping source")
		} else {
			sources = append(sources, feed.NewNewsAPI(
				a.cfg.NewsAPI.APIKey, a.cfg.NewsAPI.Query, a.cfg.NewsAPI.PageSize, a.cfg.RequestTimeout()))
		}
	}

	if a.cfg.Finnhub.Enabled {
		if a.cfg.Finnhub.APIKey == "" {
			a.log.Warn("Finnhub enabled but FINNHUB_API_KEY is not set, skipping source")
		} else {
			sources = append(sources, feed.NewFinnhub(a.cfg.Finnhub.APIKey, a.cfg.Finnhub.Category))
		}
	}

	return sources
}

func (a *App) buildEnricher() {
	if !a.cfg.Enrichment.Enabled {
		return
	}
	if a.cfg.Enrichment.APIKey == "" {
		a.log.Warn("enrichment enabled but no API key is set, articles stay unanalyzed",
			"provider", a.cfg.Enrichment.Provider)
		return
	}

	analyzer, err := enrich.New(a.cfg.Enrichment.Provider, a.cfg.Enrichment.APIKey, a.cfg.Enrichment.Model)
	if err != nil {
		a.log.Warn("enrichment unavailable, articles stay unanalyzed", "error", err)
		return
	}

	limiter := ratelimit.New(a.cfg.Enrichment.MaxCallsPerDay, a.cfg.MinEnrichInterval())
	a.enricher = enrich.Throttle(analyzer, limiter)
	a.log.Info("enrichment ready",
		"provider", analyzer.Name(), "max_calls_per_day", a.cfg.Enrichment.MaxCallsPerDay)
}

func (a *App) buildNotifier() {
	endpoints := a.cfg.ActiveEndpoints()
	if len(endpoints) == 0 {
		a.log.Warn("no telegram endpoints configured, alerting disabled")
		return
	}

	eps := make([]telegram.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		eps = append(eps, telegram.Endpoint{Token: e.Token, ChatID: e.ChatID})
	}
	a.notifier = telegram.NewNotifier(eps, a.retryConfig(), a.cfg.MessageDelay())
	a.log.Info("telegram alerting ready", "endpoints", len(eps))
}

func (a *App) retryConfig() retry.Config {
	return retry.Config{
		MaxAttempts: a.cfg.RetryAttempts,
		Delay:       a.cfg.RetryDelay(),
		Backoff:     true,
	}
}

// Run polls on the configured interval until ctx is cancelled. The
// first pass starts immediately.
func (a *App) Run(ctx context.Context) error {
	if a.server != nil {
		go func() {
			a.log.Info("http server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("http server failed", "error", err)
			}
		}()
	}

	a.log.Info("starting poll loop",
		"interval", a.cfg.PollInterval(),
		"feeds", len(a.cfg.Feeds),
		"backend", a.cfg.Storage.Backend,
	)

	ticker := time.NewTicker(a.cfg.PollInterval())
	defer ticker.Stop()

	for {
		a.runPass(ctx)

		select {
		case <-ctx.Done():
			a.stopServer()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single pass and returns, for cron-style use.
func (a *App) RunOnce(ctx context.Context) error {
	rep, err := a.pipe.Run(ctx)
	if err != nil {
		return err
	}
	a.cleanup(ctx)
	a.log.Info("single pass finished", "persisted", rep.Persisted, "alerts", rep.AlertsSent)
	return nil
}

// SendTestAlert pushes one test message through the notifier so an
// operator can check the bot wiring without waiting for news.
func (a *App) SendTestAlert(ctx context.Context) error {
	if a.notifier == nil {
		return fmt.Errorf("no telegram endpoints configured")
	}
	return a.notifier.SendTest(ctx)
}

func (a *App) runPass(ctx context.Context) {
	// A pass never gets longer than one poll interval; a hung feed
	// must not stall the loop across beats.
	passCtx, cancel := context.WithTimeout(ctx, a.cfg.PollInterval())
	defer cancel()

	if _, err := a.pipe.Run(passCtx); err != nil {
		a.log.Warn("pass aborted", "error", err)
		return
	}
	a.cleanup(passCtx)
}

func (a *App) cleanup(ctx context.Context) {
	retention := a.cfg.Retention()
	if retention <= 0 {
		return
	}
	if _, err := a.store.Cleanup(ctx, retention); err != nil {
		a.log.Warn("cleanup failed", "error", err)
	}
}

func (a *App) stopServer() {
	if a.server == nil {
		return
	}
	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shCtx); err != nil {
		a.log.Warn("http shutdown", "error", err)
	}
}

// Close releases the store and the AI client.
func (a *App) Close() {
	if a.enricher != nil {
		a.enricher.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", "error", err)
	}
}
