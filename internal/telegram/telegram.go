// Package telegram delivers alerts to Telegram chats over the raw Bot
// API. A send only counts once the API confirms it, which is what
// lets the pipeline mark articles as alerted afterwards.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crudeintel/crudeintel/internal/logger"
	"github.com/crudeintel/crudeintel/internal/news"
	"github.com/crudeintel/crudeintel/internal/ratelimit"
	"github.com/crudeintel/crudeintel/internal/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Endpoint is one bot token + chat destination.
type Endpoint struct {
	Token  string
	ChatID string
}

// Notifier fans a message out to every configured endpoint with
// per-endpoint retries and spacing between sends.
type Notifier struct {
	endpoints []Endpoint
	baseURL   string
	client    *http.Client
	retry     retry.Config
	pace      *ratelimit.Limiter
	log       *slog.Logger
}

func NewNotifier(endpoints []Endpoint, retryCfg retry.Config, messageDelay time.Duration) *Notifier {
	return &Notifier{
		endpoints: endpoints,
		baseURL:   defaultAPIBase,
		client:    &http.Client{Timeout: 30 * time.Second},
		retry:     retryCfg,
		pace:      ratelimit.New(0, messageDelay),
		log:       logger.Component("telegram"),
	}
}

// Enabled reports whether any destination is configured.
func (n *Notifier) Enabled() bool { return len(n.endpoints) > 0 }

// SendAlert delivers one article alert. It returns nil only when
// every endpoint confirmed delivery, so a partial failure keeps the
// article eligible for the next pass.
func (n *Notifier) SendAlert(ctx context.Context, item news.Item) error {
	return n.broadcast(ctx, FormatAlert(item))
}

// SendTest pushes a liveness message to every endpoint.
func (n *Notifier) SendTest(ctx context.Context) error {
	return n.broadcast(ctx, FormatTest(time.Now().UTC()))
}

func (n *Notifier) broadcast(ctx context.Context, text string) error {
	if len(n.endpoints) == 0 {
		return fmt.Errorf("no telegram endpoints configured")
	}

	failed := 0
	for _, ep := range n.endpoints {
		if err := n.pace.Wait(ctx); err != nil {
			return err
		}
		err := retry.WithRetry(ctx, n.retry, func() error {
			return n.sendMessage(ctx, ep, text)
		})
		if err != nil {
			failed++
			n.log.Error("failed to deliver telegram message", "chat_id", ep.ChatID, "error", err)
			continue
		}
		n.log.Debug("message delivered", "chat_id", ep.ChatID)
	}

	if failed > 0 {
		return fmt.Errorf("delivery failed for %d/%d endpoints", failed, len(n.endpoints))
	}
	return nil
}

// sendMessage does one try against the Bot API.
func (n *Notifier) sendMessage(ctx context.Context, ep Endpoint, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, ep.Token)

	payload := map[string]interface{}{
		"chat_id":                  ep.ChatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true, // No link preview for clean
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error building JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}
