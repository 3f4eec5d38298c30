// Package lbagent is the thin HTTP client for the remote load-balancer
// agents. One agent runs per load-balancer host and exposes webhook
// endpoints for backend status, member enable/disable and pool counts.
package lbagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Count is the online/total member count of one backend pool.
type Count struct {
	Online int `json:"online"`
	Total  int `json:"total"`
}

// Client talks to one or more load-balancer agents, addressed per call by
// host. The rotation engine owns destination selection and consensus.
type Client interface {
	ServerStatus(ctx context.Context, host, backend, server string) (bool, error)
	Enable(ctx context.Context, host, backend, server string) error
	Disable(ctx context.Context, host, backend, server string) error
	Count(ctx context.Context, host, backend string) (Count, error)
}

// HTTPClient implements Client over the agent webhook protocol.
type HTTPClient struct {
	port       int
	httpClient *http.Client
}

// NewHTTPClient creates an agent client. Control calls carry their own
// fixed timeout, independent of the monitor interval.
func NewHTTPClient(port int, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		port: port,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type serverRequest struct {
	Backend string `json:"backend"`
	Server  string `json:"server,omitempty"`
}

func (c *HTTPClient) post(ctx context.Context, host, path string, req serverRequest, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d%s", host, c.port, path)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("agent %s: %w", host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agent %s: read response: %w", host, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("agent %s: http %d: %s", host, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("agent %s: parse response: %w", host, err)
		}
	}
	return nil
}

// ServerStatus asks one agent whether the backend member is online.
func (c *HTTPClient) ServerStatus(ctx context.Context, host, backend, server string) (bool, error) {
	var out struct {
		Status bool `json:"status"`
	}
	err := c.post(ctx, host, "/webhook/lb/status", serverRequest{Backend: backend, Server: server}, &out)
	if err != nil {
		return false, err
	}
	return out.Status, nil
}

// Enable adds the member back into the backend pool on one agent.
func (c *HTTPClient) Enable(ctx context.Context, host, backend, server string) error {
	return c.post(ctx, host, "/webhook/lb/enable", serverRequest{Backend: backend, Server: server}, nil)
}

// Disable removes the member from the backend pool on one agent.
func (c *HTTPClient) Disable(ctx context.Context, host, backend, server string) error {
	return c.post(ctx, host, "/webhook/lb/disable", serverRequest{Backend: backend, Server: server}, nil)
}

// Count returns the backend pool's online/total member count on one agent.
func (c *HTTPClient) Count(ctx context.Context, host, backend string) (Count, error) {
	var out struct {
		Status Count `json:"status"`
	}
	err := c.post(ctx, host, "/webhook/lb/count", serverRequest{Backend: backend}, &out)
	if err != nil {
		return Count{}, err
	}
	return out.Status, nil
}
