package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const eventsAPIURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDuty triggers incidents through the Events API v2.
type PagerDuty struct {
	routingKey string
	apiURL     string
	httpClient *http.Client
}

// NewPagerDuty creates a paging client for the given integration routing key.
func NewPagerDuty(routingKey string) *PagerDuty {
	return &PagerDuty{
		routingKey: routingKey,
		apiURL:     eventsAPIURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type pdPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

type pdEvent struct {
	RoutingKey  string    `json:"routing_key"`
	EventAction string    `json:"event_action"`
	Payload     pdPayload `json:"payload"`
}

// TriggerIncident opens a critical incident.
func (p *PagerDuty) TriggerIncident(ctx context.Context, title, details string) error {
	event := pdEvent{
		RoutingKey:  p.routingKey,
		EventAction: "trigger",
		Payload: pdPayload{
			Summary:  title,
			Source:   "nodewarden",
			Severity: "critical",
			CustomDetails: map[string]string{
				"details": details,
			},
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal incident: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create incident request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("trigger incident: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger incident: http %d", resp.StatusCode)
	}
	return nil
}
