package news

import (
	"testing"
	"time"
)

func TestNormalizeTime(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		raw       string
		wantKnown bool
		want      time.Time
	}{
		{
			name:      "rfc3339 with zone",
			raw:       "2025-06-10T09:30:00Z",
			wantKnown: true,
			want:      time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name:      "rfc1123z feed date",
			raw:       "Tue, 10 Jun 2025 09:30:00 +0200",
			wantKnown: true,
			want:      time.Date(2025, 6, 10, 7, 30, 0, 0, time.UTC),
		},
		{
			name:      "garbage falls back to now",
			raw:       "yesterday-ish",
			wantKnown: false,
			want:      now,
		},
		{
			name:      "empty falls back to now",
			raw:       "",
			wantKnown: false,
			want:      now,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, known := NormalizeTime(tt.raw, nil, now)
			if known != tt.wantKnown {
				t.Fatalf("known = %v, want %v", known, tt.wantKnown)
			}
			if !got.Equal(tt.want) {
				t.Errorf("time = %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("result not UTC normalized: %v", got.Location())
			}
		})
	}
}

func TestNormalizeTime_PrefersParsed(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	parsed := time.Date(2025, 6, 10, 8, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	got, known := NormalizeTime("total garbage", &parsed, now)
	if !known {
		t.Fatal("pre-parsed timestamp should count as known")
	}
	if want := time.Date(2025, 6, 10, 6, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("time = %v, want %v", got, want)
	}
}

func TestFromRaw(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	it := FromRaw(RawItem{
		Title:        "  OPEC announces cut  ",
		Description:  " markets react ",
		Link:         " https://example.com/a ",
		Source:       "RSS - OilPrice.com",
		PublishedRaw: "2025-06-10T11:45:00Z",
	}, now)

	if it.Title != "OPEC announces cut" || it.Link != "https://example.com/a" {
		t.Errorf("fields not trimmed: %+v", it)
	}
	if !it.TimeKnown {
		t.Error("timestamp should have parsed")
	}
	if it.FetchedAt != now {
		t.Errorf("FetchedAt = %v, want %v", it.FetchedAt, now)
	}
	if it.Analyzed() {
		t.Error("fresh item must not count as analyzed")
	}
	if it.Incomplete() {
		t.Error("item with title and link is complete")
	}

	missing := FromRaw(RawItem{Description: "no title or link"}, now)
	if !missing.Incomplete() {
		t.Error("item without title and link must be incomplete")
	}
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		in     string
		want   Sentiment
		wantOK bool
	}{
		{"Bullish", SentimentBullish, true},
		{"bearish", SentimentBearish, true},
		{" NEUTRAL ", SentimentNeutral, true},
		{"sideways", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseSentiment(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSentiment(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}

	if SentimentNeutral.AlertWorthy() {
		t.Error("Neutral must never be alert-worthy")
	}
	if !SentimentBullish.AlertWorthy() || !SentimentBearish.AlertWorthy() {
		t.Error("Bullish and Bearish are alert-worthy")
	}
	if Sentiment("").AlertWorthy() {
		t.Error("unanalyzed must never be alert-worthy")
	}
}
