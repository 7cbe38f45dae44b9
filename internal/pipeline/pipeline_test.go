package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/crudeintel/crudeintel/internal/enrich"
	"github.com/crudeintel/crudeintel/internal/feed"
	"github.com/crudeintel/crudeintel/internal/metrics"
	"github.com/crudeintel/crudeintel/internal/news"
	"github.com/crudeintel/crudeintel/internal/scraper"
	"github.com/crudeintel/crudeintel/internal/storage"
)

var passClock = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	name  string
	items []news.RawItem
	err   error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context) ([]news.RawItem, error) {
	return f.items, f.err
}

type fakeEnricher struct {
	byTitle     map[string]enrich.Analysis
	err         error
	calls       int
	lastContent string
}

func (f *fakeEnricher) Analyze(ctx context.Context, title, content string) (*enrich.Analysis, error) {
	f.calls++
	f.lastContent = content
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.byTitle[title]; ok {
		return &a, nil
	}
	return &enrich.Analysis{Summary: "Prices react to " + title + ".", Sentiment: news.SentimentBullish}, nil
}

type fakeNotifier struct {
	sent     []string
	failures int // fail this many sends before succeeding
}

func (f *fakeNotifier) SendAlert(ctx context.Context, item news.Item) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("telegram unreachable")
	}
	f.sent = append(f.sent, item.Link)
	return nil
}

type fakeExtractor struct {
	content string
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (*scraper.ArticleContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &scraper.ArticleContent{Title: "page", Content: f.content, URL: url}, nil
}

func testPipeline(t *testing.T, opts Options) (*Pipeline, storage.Store) {
	t.Helper()
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Matcher == nil {
		m, err := news.NewMatcher([]string{"crude oil", "opec", "oil"})
		if err != nil {
			t.Fatalf("NewMatcher: %v", err)
		}
		opts.Matcher = m
	}
	if opts.AlertWindow == 0 {
		opts.AlertWindow = time.Hour
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return passClock }
	}
	return New(opts), opts.Store
}

func rawItem(title, link string, published time.Time) news.RawItem {
	ts := published
	return news.RawItem{
		Title:        title,
		Description:  "Desk note on the " + title + " story.",
		Link:         link,
		Source:       "RSS - Test Wire",
		PublishedRaw: published.Format(time.RFC1123Z),
		Published:    &ts,
	}
}

func TestRunHappyPath(t *testing.T) {
	fresh := passClock.Add(-10 * time.Minute)
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("OPEC agrees deeper cuts", "https://example.com/opec-cuts", fresh),
		rawItem("Football championship roundup", "https://example.com/football", fresh),
		{Title: "Crude stockpiles", Source: "RSS - Test Wire"}, // no link
	}}
	enr := &fakeEnricher{}
	not := &fakeNotifier{}
	m := metrics.New()

	p, store := testPipeline(t, Options{
		Sources:  []feed.Source{src},
		Enricher: enr,
		Notifier: not,
		Metrics:  m,
	})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.Fetched != 3 || rep.DroppedInvalid != 1 || rep.DroppedIrrelevant != 1 {
		t.Fatalf("filter counters wrong: %+v", rep)
	}
	if rep.Persisted != 1 || rep.Enriched != 1 || rep.AlertsSent != 1 {
		t.Fatalf("outcome counters wrong: %+v", rep)
	}

	ctx := context.Background()
	got, err := store.Get(ctx, "https://example.com/opec-cuts")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Sentiment != news.SentimentBullish || got.Summary == "" {
		t.Fatalf("stored item missing enrichment: %+v", got)
	}
	alerted, err := store.AlreadyAlerted(ctx, got.Link)
	if err != nil || !alerted {
		t.Fatalf("AlreadyAlerted = %v, %v, want true after confirmed send", alerted, err)
	}
	if len(not.sent) != 1 || not.sent[0] != got.Link {
		t.Fatalf("notifier sent %v", not.sent)
	}

	if m.PassesCompleted != 1 || m.ItemsPersisted != 1 || !m.Healthy() {
		t.Fatalf("metrics not recorded: %+v", m)
	}
}

func TestRunMatchesCaseInsensitively(t *testing.T) {
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Crude Oil Inventories Surge", "https://example.com/stocks", passClock.Add(-5*time.Minute)),
	}}
	p, store := testPipeline(t, Options{Sources: []feed.Source{src}})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.DroppedIrrelevant != 0 || rep.Persisted != 1 {
		t.Fatalf("mixed-case title should match: %+v", rep)
	}
	if exists, _ := store.Exists(context.Background(), "https://example.com/stocks"); !exists {
		t.Fatal("item not stored")
	}
}

func TestRunDropsDuplicateWithinPass(t *testing.T) {
	item := rawItem("Oil rally extends", "https://example.com/rally", passClock.Add(-5*time.Minute))
	srcA := &fakeSource{name: "rss-a", items: []news.RawItem{item}}
	srcB := &fakeSource{name: "rss-b", items: []news.RawItem{item}}

	p, _ := testPipeline(t, Options{Sources: []feed.Source{srcA, srcB}})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.DroppedDuplicate != 1 || rep.Persisted != 1 {
		t.Fatalf("same title+link must dedup within the pass: %+v", rep)
	}
}

func TestRunStorageDedupsByLinkAlone(t *testing.T) {
	// Two headlines for one URL: different run identities, but the
	// store keys on the link, so the second sighting is a no-op.
	fresh := passClock.Add(-5 * time.Minute)
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil jumps after pipeline outage", "https://example.com/same", fresh),
		rawItem("Crude oil spikes on outage news", "https://example.com/same", fresh),
	}}
	enr := &fakeEnricher{}
	not := &fakeNotifier{}

	p, store := testPipeline(t, Options{Sources: []feed.Source{src}, Enricher: enr, Notifier: not})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.DroppedDuplicate != 0 {
		t.Fatalf("different titles must not collide in run dedup: %+v", rep)
	}
	if rep.Persisted != 1 || rep.AlreadyStored != 1 {
		t.Fatalf("storage dedup counters wrong: %+v", rep)
	}

	got, _ := store.Get(context.Background(), "https://example.com/same")
	if got == nil || got.Title != "Oil jumps after pipeline outage" {
		t.Fatalf("first writer must win: %+v", got)
	}
	if len(not.sent) != 1 {
		t.Fatalf("one alert for one link, got %v", not.sent)
	}
}

func TestRunEnrichmentFailureFallsBack(t *testing.T) {
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil tumbles on surprise build", "https://example.com/build", passClock.Add(-5*time.Minute)),
	}}
	enr := &fakeEnricher{err: errors.New("model overloaded")}
	not := &fakeNotifier{}
	m := metrics.New()

	p, store := testPipeline(t, Options{Sources: []feed.Source{src}, Enricher: enr, Notifier: not, Metrics: m})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.EnrichmentFailed != 1 || rep.Enriched != 0 {
		t.Fatalf("enrichment counters wrong: %+v", rep)
	}
	if rep.Persisted != 1 {
		t.Fatal("fallback items must still be stored")
	}
	if rep.AlertsSent != 0 || len(not.sent) != 0 {
		t.Fatal("fallback verdict must never alert")
	}

	got, _ := store.Get(context.Background(), "https://example.com/build")
	if got == nil || got.Sentiment != news.SentimentNeutral {
		t.Fatalf("want Neutral fallback, got %+v", got)
	}
	if !strings.Contains(got.Summary, "manual review") {
		t.Fatalf("want fallback summary, got %q", got.Summary)
	}
	if m.EnrichmentCalls != 1 || m.EnrichmentFailures != 1 {
		t.Fatalf("metrics wrong: calls=%d failures=%d", m.EnrichmentCalls, m.EnrichmentFailures)
	}
}

func TestRunEnrichmentDisabled(t *testing.T) {
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil holds steady", "https://example.com/steady", passClock.Add(-5*time.Minute)),
	}}
	not := &fakeNotifier{}

	p, store := testPipeline(t, Options{Sources: []feed.Source{src}, Notifier: not})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Persisted != 1 {
		t.Fatalf("item should be stored without enrichment: %+v", rep)
	}
	got, _ := store.Get(context.Background(), "https://example.com/steady")
	if got == nil || got.Analyzed() {
		t.Fatalf("item must stay unanalyzed, got %+v", got)
	}
	if len(not.sent) != 0 {
		t.Fatal("unanalyzed items must not alert")
	}
}

func TestRunAlertGate(t *testing.T) {
	fresh := passClock.Add(-5 * time.Minute)
	stale := passClock.Add(-2 * time.Hour)

	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil surges on supply fears", "https://example.com/surge", fresh),
		rawItem("Oil slips on demand worries", "https://example.com/slip", stale),
		{
			Title:        "Oil market wrap",
			Description:  "Weekly crude oil recap.",
			Link:         "https://example.com/wrap",
			Source:       "RSS - Test Wire",
			PublishedRaw: "yesterday evening",
		},
		rawItem("Oil steady ahead of data", "https://example.com/data", fresh),
	}}
	enr := &fakeEnricher{byTitle: map[string]enrich.Analysis{
		"Oil surges on supply fears":  {Summary: "Supply risk bid.", Sentiment: news.SentimentBullish},
		"Oil slips on demand worries": {Summary: "Demand soft.", Sentiment: news.SentimentBearish},
		"Oil market wrap":             {Summary: "Recap.", Sentiment: news.SentimentBullish},
		"Oil steady ahead of data":    {Summary: "Waiting.", Sentiment: news.SentimentNeutral},
	}}
	not := &fakeNotifier{}

	p, store := testPipeline(t, Options{Sources: []feed.Source{src}, Enricher: enr, Notifier: not, AlertWindow: time.Hour})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Every item lands in storage regardless of the alert outcome.
	if rep.Persisted != 4 {
		t.Fatalf("all items should persist: %+v", rep)
	}
	if rep.AlertsSent != 1 || len(not.sent) != 1 || not.sent[0] != "https://example.com/surge" {
		t.Fatalf("only the fresh directional item may alert, sent %v", not.sent)
	}

	ctx := context.Background()
	wrap, _ := store.Get(ctx, "https://example.com/wrap")
	if wrap == nil || wrap.TimeKnown {
		t.Fatalf("unparsable timestamp must be stored with TimeKnown=false: %+v", wrap)
	}
	for _, link := range []string{"https://example.com/slip", "https://example.com/data"} {
		if alerted, _ := store.AlreadyAlerted(ctx, link); alerted {
			t.Fatalf("%s must not be marked alerted", link)
		}
	}
}

func TestRunFailedSendRetriesNextPass(t *testing.T) {
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil climbs on export halt", "https://example.com/halt", passClock.Add(-10*time.Minute)),
	}}
	enr := &fakeEnricher{}
	not := &fakeNotifier{failures: 1}

	p, store := testPipeline(t, Options{Sources: []feed.Source{src}, Enricher: enr, Notifier: not})
	ctx := context.Background()

	rep, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if rep.AlertFailures != 1 || rep.AlertsSent != 0 {
		t.Fatalf("first pass should fail delivery: %+v", rep)
	}
	if alerted, _ := store.AlreadyAlerted(ctx, "https://example.com/halt"); alerted {
		t.Fatal("failed send must not mark the article alerted")
	}

	// Next pass: the feed still carries the item, storage already has
	// it, and the notifier has recovered.
	rep, err = p.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if rep.AlreadyStored != 1 || rep.Persisted != 0 {
		t.Fatalf("second pass should resurface the stored item: %+v", rep)
	}
	if rep.AlertsSent != 1 {
		t.Fatalf("second pass should deliver the alert: %+v", rep)
	}
	if enr.calls != 1 {
		t.Fatalf("stored verdict must be reused, enricher ran %d times", enr.calls)
	}
	if alerted, _ := store.AlreadyAlerted(ctx, "https://example.com/halt"); !alerted {
		t.Fatal("confirmed send must mark the article")
	}
}

func TestRunAlreadyAlertedNotResent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	link := "https://example.com/seen"
	if _, err := store.Insert(ctx, news.Item{
		Title:       "Oil spikes on strait closure",
		Link:        link,
		Source:      "RSS - Test Wire",
		PublishedAt: passClock.Add(-10 * time.Minute),
		TimeKnown:   true,
		Summary:     "Transit risk.",
		Sentiment:   news.SentimentBullish,
		FetchedAt:   passClock.Add(-30 * time.Minute),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.MarkAlerted(ctx, link); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil spikes on strait closure", link, passClock.Add(-10*time.Minute)),
	}}
	not := &fakeNotifier{}

	p, _ := testPipeline(t, Options{Sources: []feed.Source{src}, Store: store, Enricher: &fakeEnricher{}, Notifier: not})

	rep, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.AlreadyStored != 1 || rep.AlertsSent != 0 || len(not.sent) != 0 {
		t.Fatalf("alerted article must not page twice: %+v, sent %v", rep, not.sent)
	}
}

func TestRunBackfillsUnanalyzedStored(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	link := "https://example.com/backfill"
	if _, err := store.Insert(ctx, news.Item{
		Title:       "Oil sinks as quota talks stall",
		Link:        link,
		Source:      "RSS - Test Wire",
		PublishedAt: passClock.Add(-15 * time.Minute),
		TimeKnown:   true,
		FetchedAt:   passClock.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	enr := &fakeEnricher{byTitle: map[string]enrich.Analysis{
		"Oil sinks as quota talks stall": {Summary: "Talks stalled.", Sentiment: news.SentimentBearish},
	}}
	not := &fakeNotifier{}
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil sinks as quota talks stall", link, passClock.Add(-15*time.Minute)),
	}}

	p, _ := testPipeline(t, Options{Sources: []feed.Source{src}, Store: store, Enricher: enr, Notifier: not})

	rep, err := p.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.AlreadyStored != 1 || rep.Enriched != 1 {
		t.Fatalf("resurfaced unanalyzed item should be backfilled: %+v", rep)
	}

	got, _ := store.Get(ctx, link)
	if got == nil || got.Sentiment != news.SentimentBearish || got.Summary != "Talks stalled." {
		t.Fatalf("backfill not persisted: %+v", got)
	}
	if rep.AlertsSent != 1 || len(not.sent) != 1 {
		t.Fatalf("backfilled directional item should alert: %+v", rep)
	}
}

func TestRunSourceErrorContinues(t *testing.T) {
	broken := &fakeSource{name: "rss-a", err: errors.New("connection refused")}
	healthy := &fakeSource{name: "rss-b", items: []news.RawItem{
		rawItem("Oil firms after outage", "https://example.com/firm", passClock.Add(-5*time.Minute)),
	}}
	m := metrics.New()

	p, store := testPipeline(t, Options{Sources: []feed.Source{broken, healthy}, Metrics: m})

	rep, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.SourceErrors != 1 || rep.Persisted != 1 {
		t.Fatalf("one source down must not stop the pass: %+v", rep)
	}
	if exists, _ := store.Exists(context.Background(), "https://example.com/firm"); !exists {
		t.Fatal("healthy source item not stored")
	}
	if !strings.Contains(m.LastError, "rss-a") {
		t.Fatalf("LastError should name the failing source, got %q", m.LastError)
	}
	if !m.Healthy() {
		t.Fatal("a completed pass leaves the pipeline healthy")
	}
}

func TestRunScrapedContentFeedsEnricher(t *testing.T) {
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil gains on refinery snag", "https://example.com/snag", passClock.Add(-5*time.Minute)),
	}}

	t.Run("page content wins", func(t *testing.T) {
		enr := &fakeEnricher{}
		p, _ := testPipeline(t, Options{
			Sources:   []feed.Source{src},
			Enricher:  enr,
			Extractor: &fakeExtractor{content: "Full dispatch about crude flows."},
		})
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if enr.lastContent != "Full dispatch about crude flows." {
			t.Fatalf("enricher saw %q", enr.lastContent)
		}
	})

	t.Run("scrape failure falls back to description", func(t *testing.T) {
		enr := &fakeEnricher{}
		p, _ := testPipeline(t, Options{
			Sources:   []feed.Source{src},
			Enricher:  enr,
			Extractor: &fakeExtractor{err: errors.New("blocked")},
		})
		if _, err := p.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !strings.Contains(enr.lastContent, "Desk note") {
			t.Fatalf("enricher saw %q, want the feed description", enr.lastContent)
		}
	})
}

func TestRunContextCancelled(t *testing.T) {
	src := &fakeSource{name: "rss", items: []news.RawItem{
		rawItem("Oil edges up", "https://example.com/edge", passClock.Add(-5*time.Minute)),
	}}
	p, _ := testPipeline(t, Options{Sources: []feed.Source{src}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if rep.Persisted != 0 {
		t.Fatalf("cancelled pass should not persist: %+v", rep)
	}
}
