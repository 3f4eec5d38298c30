package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"nodewarden/internal/infra/storage"
)

// Discord embed colors per severity.
const (
	colorSuccess   = 3066993  // green
	colorInfo      = 3447003  // blue
	colorWarn      = 15105570 // orange
	colorError     = 15158332 // red
	colorRetrigger = 10181046 // purple, repeat notifications during an incident
)

// DiscordDispatcher delivers messages to Discord webhooks resolved per
// chain/location through the inventory, with a configurable fallback URL.
type DiscordDispatcher struct {
	webhooks   storage.WebhookRepository
	defaultURL string
	pagerduty  *PagerDuty
	httpClient *http.Client
	log        *slog.Logger
}

// NewDiscordDispatcher creates the production dispatcher. webhooks and
// pagerduty may be nil; the default URL then carries all chat traffic and
// urgent incidents degrade to error logs.
func NewDiscordDispatcher(webhooks storage.WebhookRepository, defaultURL string, pd *PagerDuty) *DiscordDispatcher {
	return &DiscordDispatcher{
		webhooks:   webhooks,
		defaultURL: defaultURL,
		pagerduty:  pd,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        slog.Default().With("component", "alert"),
	}
}

func (d *DiscordDispatcher) SendSuccess(ctx context.Context, m Message) bool {
	return d.send(ctx, m, colorSuccess)
}

func (d *DiscordDispatcher) SendInfo(ctx context.Context, m Message) bool {
	return d.send(ctx, m, colorInfo)
}

func (d *DiscordDispatcher) SendWarn(ctx context.Context, m Message) bool {
	return d.send(ctx, m, colorWarn)
}

func (d *DiscordDispatcher) SendError(ctx context.Context, m Message) bool {
	return d.send(ctx, m, colorError)
}

// CreateUrgentIncident pages through PagerDuty when configured.
func (d *DiscordDispatcher) CreateUrgentIncident(ctx context.Context, title, details string) error {
	if d.pagerduty == nil {
		d.log.Error("urgent incident raised with no pager configured",
			"title", title, "details", details)
		return nil
	}
	return d.pagerduty.TriggerIncident(ctx, title, details)
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func (d *DiscordDispatcher) send(ctx context.Context, m Message, color int) bool {
	if m.Retrigger {
		color = colorRetrigger
	}

	url := d.resolveURL(ctx, m)
	if url == "" {
		d.log.Warn("no webhook route for alert", "chain", m.Chain, "location", m.Location)
		return false
	}

	payload, err := json.Marshal(discordPayload{
		Embeds: []discordEmbed{{Title: m.Title, Description: m.Body, Color: color}},
	})
	if err != nil {
		d.log.Error("marshal alert payload", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		d.log.Error("create alert request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.log.Error("deliver alert", "title", m.Title, "error", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		d.log.Error("deliver alert", "title", m.Title,
			"error", fmt.Sprintf("http %d", resp.StatusCode))
		return false
	}
	return true
}

func (d *DiscordDispatcher) resolveURL(ctx context.Context, m Message) string {
	if d.webhooks != nil && m.Chain != "" {
		w, err := d.webhooks.FindByChainLocation(ctx, m.Chain, m.Location)
		if err != nil {
			d.log.Warn("webhook lookup failed", "chain", m.Chain, "error", err)
		} else if w != nil {
			return w.URL
		}
	}
	return d.defaultURL
}
