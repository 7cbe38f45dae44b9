package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crudeintel/crudeintel/internal/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Oil Wire</title>
<item>
  <title>Crude climbs on supply worries</title>
  <link>https://example.com/a1</link>
  <description>Brent rose two percent.</description>
  <pubDate>Mon, 24 Aug 2026 10:00:00 +0000</pubDate>
</item>
<item>
  <title>Refinery restarts after outage</title>
  <link>https://example.com/a2</link>
  <description>Throughput back to normal.</description>
  <pubDate>Mon, 24 Aug 2026 09:00:00 +0000</pubDate>
</item>
<item>
  <title>Pipeline maintenance scheduled</title>
  <link>https://example.com/a3</link>
  <description>Routine work next month.</description>
</item>
</channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	feeds := []config.FeedConfig{
		{Name: "Oil Wire Feed", URL: srv.URL + "/feed"},
		{Name: "Broken", URL: srv.URL + "/bad"},
	}

	src := NewRSS(feeds, 2)
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Per-feed limit caps the healthy feed at 2; the broken feed
	// contributes nothing but does not fail the fetch.
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Title != "Crude climbs on supply worries" {
		t.Errorf("Title = %q", items[0].Title)
	}
	if items[0].Source != "RSS - Oil Wire Feed" {
		t.Errorf("Source = %q", items[0].Source)
	}
	if items[0].Published == nil {
		t.Error("expected parsed publish time")
	}
	if items[0].PublishedRaw == "" {
		t.Error("expected raw publish string")
	}
}

func TestRSSFeedLabelFallsBackToChannelTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	src := NewRSS([]config.FeedConfig{{URL: srv.URL}}, 1)
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Source != "RSS - Oil Wire" {
		t.Errorf("Source = %q, want channel title fallback", items[0].Source)
	}
}

func TestRSSAllFeedsBroken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewRSS([]config.FeedConfig{{Name: "x", URL: srv.URL}}, 5)
	items, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch should not fail outright: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("got %d items, want 0", len(items))
	}
}
