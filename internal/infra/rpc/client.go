// Package rpc implements the chain-agnostic HTTP/JSON requester used by the
// health checker to probe nodes, oracles and peers.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrErrorResponse marks a well-formed response that carries an RPC-level
// error payload. Callers classify it separately from transport failures.
var ErrErrorResponse = errors.New("rpc error response")

// Client issues one-shot JSON probes with a fixed timeout.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a probe client. The timeout bounds the full request,
// including body read.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Request describes one probe. An empty Body issues a GET, otherwise the
// body is POSTed as JSON. BasicAuth is an optional "user:pass" credential.
type Request struct {
	URL       string
	Body      string
	BasicAuth string
}

// Fetch performs the probe and returns the decoded JSON response body.
// A response containing a non-null top-level "error" member returns the
// decoded body together with ErrErrorResponse.
func (c *Client) Fetch(ctx context.Context, r Request) (any, error) {
	method := http.MethodGet
	var body io.Reader
	if r.Body != "" {
		method = http.MethodPost
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.BasicAuth != "" {
		user, pass, ok := strings.Cut(r.BasicAuth, ":")
		if ok {
			req.SetBasicAuth(user, pass)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", r.URL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if obj, ok := decoded.(map[string]any); ok {
		if rpcErr, present := obj["error"]; present && rpcErr != nil {
			return decoded, fmt.Errorf("%w: %v", ErrErrorResponse, rpcErr)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return decoded, fmt.Errorf("http %d from %s", resp.StatusCode, r.URL)
	}

	return decoded, nil
}

// DialCheck attempts a bare TCP connect to hostport. It is the liveness
// probe run before any RPC: an unreachable node cannot answer RPC, so the
// checker fails fast on this.
func DialCheck(hostport string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", hostport, timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", hostport, err)
	}
	return conn.Close()
}
