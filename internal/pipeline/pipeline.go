// Package pipeline runs one ingestion pass end to end: fetch from
// every source, validate, filter by relevance, dedup within the pass,
// enrich, persist, and alert on qualifying articles. The surrounding
// scheduler in app just calls Run on an interval; everything stateful
// between passes lives in storage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crudeintel/crudeintel/internal/enrich"
	"github.com/crudeintel/crudeintel/internal/feed"
	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/metrics"
	"github.com/crudeintel/crudeintel/internal/news"
	"github.com/crudeintel/crudeintel/internal/scraper"
	"github.com/crudeintel/crudeintel/internal/storage"
)

// Enricher produces a summary and a market verdict for one article.
type Enricher interface {
	Analyze(ctx context.Context, title, content string) (*enrich.Analysis, error)
}

// TextExtractor pulls full article text from the publisher page so
// enrichment sees more than the feed blurb.
type TextExtractor interface {
	Extract(ctx context.Context, url string) (*scraper.ArticleContent, error)
}

// Notifier delivers one alert to every configured chat endpoint.
type Notifier interface {
	SendAlert(ctx context.Context, item news.Item) error
}

// Options carries the pipeline collaborators. Matcher and Store must
// be set. Enricher, Extractor and Notifier may be nil, which disables
// that stage: items then stay unanalyzed, enrichment sees only the
// feed description, or no alerts go out.
type Options struct {
	Sources   []feed.Source
	Matcher   *news.Matcher
	Store     storage.Store
	Enricher  Enricher
	Extractor TextExtractor
	Notifier  Notifier
	Metrics   *metrics.Metrics

	// AlertWindow bounds how old an article may be and still page
	// someone. Zero means no age bound.
	AlertWindow time.Duration

	// Now is the pass clock, overridable in tests.
	Now func() time.Time
}

// Report summarizes a single pass. Counters here are per pass; the
// metrics instance accumulates them across passes.
type Report struct {
	Fetched           int
	DroppedInvalid    int
	DroppedIrrelevant int
	DroppedDuplicate  int
	AlreadyStored     int
	Persisted         int
	Enriched          int
	EnrichmentFailed  int
	AlertsSent        int
	AlertFailures     int
	SourceErrors      int
	Duration          time.Duration
}

type Pipeline struct {
	sources     []feed.Source
	matcher     *news.Matcher
	store       storage.Store
	enricher    Enricher
	extractor   TextExtractor
	notifier    Notifier
	metrics     *metrics.Metrics
	alertWindow time.Duration
	now         func() time.Time
	log         *slog.Logger
}

func New(opts Options) *Pipeline {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Pipeline{
		sources:     opts.Sources,
		matcher:     opts.Matcher,
		store:       opts.Store,
		enricher:    opts.Enricher,
		extractor:   opts.Extractor,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		alertWindow: opts.AlertWindow,
		now:         opts.Now,
		log:         logger.Component("pipeline"),
	}
}

// Run executes one full pass. Source failures and per-item failures
// are logged and skipped; the only error Run itself returns is
// context cancellation mid-pass.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := p.now()
	var rep Report
	seen := news.NewSeenSet()

	p.log.Debug("starting pass", "sources", len(p.sources))

	for _, src := range p.sources {
		items, err := src.Fetch(ctx)
		if err != nil {
			rep.SourceErrors++
			p.metrics.SetError(fmt.Sprintf("%s: %v", src.Name(), err))
			p.log.Warn("source fetch failed", "source", src.Name(), "error", err)
			continue
		}
		rep.Fetched += len(items)

		for _, raw := range items {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			p.processRaw(ctx, raw, seen, &rep)
		}
	}

	rep.Duration = p.now().Sub(start)
	p.record(rep)
	return rep, ctx.Err()
}

func (p *Pipeline) processRaw(ctx context.Context, raw news.RawItem, seen *news.SeenSet, rep *Report) {
	item := news.FromRaw(raw, p.now())

	if item.Incomplete() {
		rep.DroppedInvalid++
		p.log.Debug("dropped incomplete item", "source", raw.Source, "link", raw.Link)
		return
	}
	if !p.matcher.MatchItem(item) {
		rep.DroppedIrrelevant++
		return
	}
	if !seen.Add(news.RunKey(item.Title, item.Link)) {
		rep.DroppedDuplicate++
		p.log.Debug("dropped duplicate", "title", item.Title)
		return
	}

	p.processItem(ctx, item, rep)
}

func (p *Pipeline) processItem(ctx context.Context, item news.Item, rep *Report) {
	stored, err := p.store.Get(ctx, item.Link)
	if err != nil {
		p.metrics.SetError(err.Error())
		p.log.Error("storage lookup failed", "link", item.Link, "error", err)
		return
	}

	if stored != nil {
		rep.AlreadyStored++
		// A resurfaced article can predate enrichment being enabled;
		// backfill so the dashboard stops listing it as unanalyzed.
		if p.enricher != nil && !stored.Analyzed() {
			analysis := p.analyze(ctx, *stored, rep)
			if err := p.store.UpdateEnrichment(ctx, stored.Link, analysis.Summary, analysis.Sentiment); err != nil {
				p.log.Error("enrichment backfill failed", "link", stored.Link, "error", err)
			} else {
				stored.Summary = analysis.Summary
				stored.Sentiment = analysis.Sentiment
			}
		}
		// Stored does not mean alerted. An article whose delivery
		// failed last pass comes back through here and gets retried.
		p.maybeAlert(ctx, *stored, rep)
		return
	}

	if p.enricher != nil {
		analysis := p.analyze(ctx, item, rep)
		item.Summary = analysis.Summary
		item.Sentiment = analysis.Sentiment
	}

	inserted, err := p.store.Insert(ctx, item)
	if err != nil {
		p.metrics.SetError(err.Error())
		p.log.Error("persist failed", "link", item.Link, "error", err)
		return
	}
	if inserted {
		rep.Persisted++
	} else {
		// Lost the race to another writer between Get and Insert.
		rep.AlreadyStored++
	}

	p.maybeAlert(ctx, item, rep)
}

// analyze runs enrichment for one article, scraping the publisher
// page first when an extractor is configured. Failures never stop the
// pass: the item falls back to a Neutral verdict with a fixed summary
// and is stored either way.
func (p *Pipeline) analyze(ctx context.Context, item news.Item, rep *Report) enrich.Analysis {
	content := item.Description
	if p.extractor != nil {
		if page, err := p.extractor.Extract(ctx, item.Link); err != nil {
			p.log.Debug("page scrape failed, using feed description", "link", item.Link, "error", err)
		} else if page.Content != "" {
			content = page.Content
		}
	}

	analysis, err := p.enricher.Analyze(ctx, item.Title, content)
	if err != nil {
		rep.EnrichmentFailed++
		p.log.Warn("enrichment failed", "title", item.Title, "error", err)
		return *enrich.Fallback()
	}

	rep.Enriched++
	return *analysis
}

// maybeAlert pushes the item to the notifier when it qualifies: a
// directional verdict, a publication time known to be inside the
// alert window, and no alert sent for this link before. The alerted
// flag is only set after delivery is confirmed, so a failed send
// leaves the article eligible on the next pass.
func (p *Pipeline) maybeAlert(ctx context.Context, item news.Item, rep *Report) {
	if p.notifier == nil {
		return
	}
	if !item.Sentiment.AlertWorthy() {
		return
	}
	if news.ItemFreshness(item, p.now(), p.alertWindow) != news.FreshnessWithin {
		return
	}

	alerted, err := p.store.AlreadyAlerted(ctx, item.Link)
	if err != nil {
		p.log.Error("alert lookup failed", "link", item.Link, "error", err)
		return
	}
	if alerted {
		return
	}

	if err := p.notifier.SendAlert(ctx, item); err != nil {
		rep.AlertFailures++
		p.log.Warn("alert delivery failed, retrying next pass", "title", item.Title, "error", err)
		return
	}

	if err := p.store.MarkAlerted(ctx, item.Link); err != nil {
		// Left unmarked, the next pass sends this alert again.
		// Duplicate alerts are acceptable, missed ones are not.
		p.log.Error("failed to mark article alerted", "link", item.Link, "error", err)
	}
	rep.AlertsSent++
}

// record folds the pass report into the shared metrics and writes the
// one summary line operators grep for.
func (p *Pipeline) record(rep Report) {
	m := p.metrics
	m.AddFetched(rep.Fetched)
	m.AddDroppedInvalid(rep.DroppedInvalid)
	m.AddDroppedIrrelevant(rep.DroppedIrrelevant)
	m.AddDroppedDuplicate(rep.DroppedDuplicate)
	m.AddAlreadyStored(rep.AlreadyStored)
	m.AddPersisted(rep.Persisted)
	m.AddEnrichmentCalls(rep.Enriched + rep.EnrichmentFailed)
	m.AddEnrichmentFailures(rep.EnrichmentFailed)
	m.AddAlertsSent(rep.AlertsSent)
	m.AddAlertFailures(rep.AlertFailures)
	m.RecordPass(rep.Duration)

	p.log.Info("pass complete",
		"fetched", rep.Fetched,
		"persisted", rep.Persisted,
		"already_stored", rep.AlreadyStored,
		"dropped_invalid", rep.DroppedInvalid,
		"dropped_irrelevant", rep.DroppedIrrelevant,
		"dropped_duplicate", rep.DroppedDuplicate,
		"enriched", rep.Enriched,
		"enrichment_failed", rep.EnrichmentFailed,
		"alerts_sent", rep.AlertsSent,
		"alert_failures", rep.AlertFailures,
		"source_errors", rep.SourceErrors,
		"duration", rep.Duration,
	)
}
