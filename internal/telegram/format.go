package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/crudeintel/crudeintel/internal/news"
)

func sentimentEmoji(s news.Sentiment) string {
	switch s {
	case news.SentimentBullish:
		return "🟢"
	case news.SentimentBearish:
		return "🔴"
	default:
		return "⚪"
	}
}

// FormatAlert renders one article as a Telegram HTML message.
func FormatAlert(item news.Item) string {
	var b strings.Builder

	emoji := sentimentEmoji(item.Sentiment)

	b.WriteString(fmt.Sprintf("🚨 <b>CRUDE OIL ALERT</b> %s\n\n", emoji))
	b.WriteString(fmt.Sprintf("<a href=\"%s\">%s</a>\n\n", escapeHTML(item.Link), escapeHTML(item.Title)))

	sentiment := string(item.Sentiment)
	if sentiment == "" {
		sentiment = "Unanalyzed"
	}
	b.WriteString(fmt.Sprintf("📊 <b>Sentiment:</b> %s\n", sentiment))
	b.WriteString(fmt.Sprintf("📰 <b>Source:</b> %s\n", escapeHTML(item.Source)))

	// Never invent a timestamp the feed did not deliver.
	published := "unknown"
	if item.TimeKnown {
		published = item.PublishedAt.UTC().Format("2006-01-02 15:04 UTC")
	}
	b.WriteString(fmt.Sprintf("🕐 <b>Published:</b> %s\n\n", published))

	if item.Summary != "" {
		b.WriteString(escapeHTML(truncateAtSentence(item.Summary, 600)))
		b.WriteString("\n\n")
	}

	b.WriteString("➖➖➖➖➖➖➖➖➖➖\n")
	b.WriteString("📡 CrudeIntel | crude market watch")

	return b.String()
}

// FormatTest is the liveness message behind the test-alert switch.
func FormatTest(now time.Time) string {
	var b strings.Builder
	b.WriteString("✅ <b>CrudeIntel test alert</b>\n\n")
	b.WriteString("Pipeline is up and can reach this chat.\n")
	b.WriteString(now.Format("2006-01-02 15:04 UTC"))
	return b.String()
}

// escapeHTML keeps article text from breaking Telegram HTML parse mode.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// truncateAtSentence limits text length, dropping the trailing
// incomplete sentence when possible.
func truncateAtSentence(s string, max int) string {
	if len(s) <= max {
		return s
	}
	sentences := strings.Split(s[:max], ".")
	if len(sentences) > 1 {
		return strings.Join(sentences[:len(sentences)-1], ".") + "."
	}
	return s[:max] + "..."
}
