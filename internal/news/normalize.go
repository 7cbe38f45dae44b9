package news

import (
	"strings"
	"time"
)

// feedTimeLayouts covers the timestamp formats the configured feeds
// actually emit. RSS sources mostly use RFC1123 variants, NewsAPI
// uses RFC3339 with a Z suffix.
var feedTimeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05-07:00",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// NormalizeTime is the single place where feed timestamps become
// pipeline timestamps. It prefers a value the source SDK already
// parsed, then tries the known layouts, and otherwise falls back to
// now. The second return value is false on fallback so downstream
// freshness checks can tell a real timestamp from a substituted one.
func NormalizeTime(raw string, parsed *time.Time, now time.Time) (time.Time, bool) {
	if parsed != nil && !parsed.IsZero() {
		return parsed.UTC(), true
	}

	raw = strings.TrimSpace(raw)
	if raw != "" {
		for _, layout := range feedTimeLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts.UTC(), true
			}
		}
	}

	return now.UTC(), false
}
