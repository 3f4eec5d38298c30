// Package rotation implements the automation engine that adds and removes
// backend servers from load balancer rotation, with count-based safety
// checks and multi-load-balancer consensus.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/lbagent"
	"nodewarden/internal/metrics"
)

// ServerStatus is the consensus view of one backend member across all of
// its load balancers.
type ServerStatus string

const (
	StatusOnline  ServerStatus = "ONLINE"
	StatusOffline ServerStatus = "OFFLINE"
	// StatusError means the load balancers disagree. An ambiguous state
	// is never acted on automatically.
	StatusError ServerStatus = "ERROR"
)

var (
	// ErrStatusConflict is returned when load balancers disagree on a
	// member's status.
	ErrStatusConflict = errors.New("load balancers disagree on server status")
	// ErrCountConflict is returned when load balancers disagree on a
	// backend's member counts.
	ErrCountConflict = errors.New("load balancers disagree on server count")
)

// Config holds the rotation engine settings.
type Config struct {
	// TestMode redirects every load-balancer destination to TestDomain so
	// control-loop testing never touches production load balancers.
	TestMode   bool   `yaml:"test_mode"`
	TestDomain string `yaml:"test_domain"`
}

// Engine decides and executes rotation actions against the load balancer
// agents.
type Engine struct {
	agent lbagent.Client
	cfg   Config
	log   *slog.Logger
}

// NewEngine creates the rotation engine.
func NewEngine(agent lbagent.Client, cfg Config) *Engine {
	return &Engine{
		agent: agent,
		cfg:   cfg,
		log:   slog.Default().With("component", "rotation"),
	}
}

// destinations resolves the agent addresses for a node's load balancers,
// honoring the test-mode override.
func (e *Engine) destinations(node domain.Node) []string {
	hosts := make([]string, 0, len(node.LoadBalancers))
	for _, lb := range node.LoadBalancers {
		if e.cfg.TestMode {
			hosts = append(hosts, e.cfg.TestDomain)
			continue
		}
		hosts = append(hosts, lb.Address())
	}
	return hosts
}

// GetServerStatus polls every load balancer independently and reduces the
// answers to a consensus: unanimous online, unanimous offline, or ERROR on
// any disagreement or query failure.
func (e *Engine) GetServerStatus(ctx context.Context, backend, server string, lbHosts []string) (ServerStatus, error) {
	if len(lbHosts) == 0 {
		return StatusError, fmt.Errorf("no load balancers for backend %s", backend)
	}

	statuses := make([]bool, len(lbHosts))
	g, gctx := errgroup.WithContext(ctx)
	for i, host := range lbHosts {
		g.Go(func() error {
			online, err := e.agent.ServerStatus(gctx, host, backend, server)
			if err != nil {
				return err
			}
			statuses[i] = online
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return StatusError, fmt.Errorf("status of %s/%s: %w", backend, server, err)
	}

	online, offline := 0, 0
	for _, s := range statuses {
		if s {
			online++
		} else {
			offline++
		}
	}
	switch {
	case offline == 0:
		return StatusOnline, nil
	case online == 0:
		return StatusOffline, nil
	default:
		return StatusError, fmt.Errorf("%w: %s/%s is online on %d of %d", ErrStatusConflict, backend, server, online, len(statuses))
	}
}

// GetServerCount polls the backend's online/total counts per load balancer
// and trusts them only when every load balancer reports the same numbers.
func (e *Engine) GetServerCount(ctx context.Context, backend string, lbHosts []string) (lbagent.Count, error) {
	if len(lbHosts) == 0 {
		return lbagent.Count{}, fmt.Errorf("no load balancers for backend %s", backend)
	}

	counts := make([]lbagent.Count, len(lbHosts))
	g, gctx := errgroup.WithContext(ctx)
	for i, host := range lbHosts {
		g.Go(func() error {
			c, err := e.agent.Count(gctx, host, backend)
			if err != nil {
				return err
			}
			counts[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return lbagent.Count{}, fmt.Errorf("count of %s: %w", backend, err)
	}

	for _, c := range counts[1:] {
		if c != counts[0] {
			return lbagent.Count{}, fmt.Errorf("%w: backend %s", ErrCountConflict, backend)
		}
	}
	return counts[0], nil
}

// DisableServer removes the member from rotation on every load balancer.
// Refused (false, nil) when the backend would be drained below one online
// server; manual bypasses the safety checks for operator-initiated
// removal. Returns an error when consensus cannot be established or any
// load balancer fails the action.
func (e *Engine) DisableServer(ctx context.Context, backend, server string, lbHosts []string, manual bool) (bool, error) {
	if !manual {
		count, err := e.GetServerCount(ctx, backend, lbHosts)
		if err != nil {
			metrics.RotationActionsTotal.WithLabelValues("disable", "error").Inc()
			return false, err
		}
		if count.Online <= 1 {
			// Never fully drain a backend.
			metrics.RotationActionsTotal.WithLabelValues("disable", "refused").Inc()
			return false, nil
		}
	}

	if err := e.fanOut(ctx, lbHosts, func(host string) error {
		return e.agent.Disable(ctx, host, backend, server)
	}); err != nil {
		metrics.RotationActionsTotal.WithLabelValues("disable", "error").Inc()
		return false, fmt.Errorf("disable %s/%s: %w", backend, server, err)
	}

	metrics.RotationActionsTotal.WithLabelValues("disable", "ok").Inc()
	e.log.Info("server disabled", "backend", backend, "server", server)
	return true, nil
}

// EnableServer adds the member back into rotation on every load balancer.
// Skipped (false, nil) when the member is already online; an ambiguous
// cross-load-balancer status is surfaced as an error instead of acting.
func (e *Engine) EnableServer(ctx context.Context, backend, server string, lbHosts []string, manual bool) (bool, error) {
	status, err := e.GetServerStatus(ctx, backend, server, lbHosts)
	if err != nil && !manual {
		metrics.RotationActionsTotal.WithLabelValues("enable", "error").Inc()
		return false, err
	}
	if status == StatusOnline {
		metrics.RotationActionsTotal.WithLabelValues("enable", "skipped").Inc()
		return false, nil
	}

	if err := e.fanOut(ctx, lbHosts, func(host string) error {
		return e.agent.Enable(ctx, host, backend, server)
	}); err != nil {
		metrics.RotationActionsTotal.WithLabelValues("enable", "error").Inc()
		return false, fmt.Errorf("enable %s/%s: %w", backend, server, err)
	}

	metrics.RotationActionsTotal.WithLabelValues("enable", "ok").Inc()
	e.log.Info("server enabled", "backend", backend, "server", server)
	return true, nil
}

// fanOut issues the action against every load balancer in parallel and
// requires unanimous success.
func (e *Engine) fanOut(ctx context.Context, lbHosts []string, action func(host string) error) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	var wg sync.WaitGroup
	for _, host := range lbHosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := action(host); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// RemoveFromRotation pulls the node's server from its backend. Adapter for
// the escalation engine.
func (e *Engine) RemoveFromRotation(ctx context.Context, node domain.Node) (bool, error) {
	return e.DisableServer(ctx, node.Backend, node.Server, e.destinations(node), false)
}

// AddToRotation re-adds the node's server to its backend.
func (e *Engine) AddToRotation(ctx context.Context, node domain.Node) (bool, error) {
	return e.EnableServer(ctx, node.Backend, node.Server, e.destinations(node), false)
}

// OnlineCount returns the backend's consensus online member count.
// Frontend nodes are counted through their public domain instead of the
// load-balancer host list.
func (e *Engine) OnlineCount(ctx context.Context, node domain.Node) (int, error) {
	hosts := e.destinations(node)
	if node.Frontend {
		host, err := frontendHost(node)
		if err != nil {
			return 0, err
		}
		if e.cfg.TestMode {
			host = e.cfg.TestDomain
		}
		hosts = []string{host}
	}
	count, err := e.GetServerCount(ctx, node.Backend, hosts)
	if err != nil {
		return 0, err
	}
	return count.Online, nil
}

func frontendHost(node domain.Node) (string, error) {
	u, err := url.Parse(node.URL)
	if err != nil {
		return "", fmt.Errorf("parse frontend URL for %s: %w", node.Name, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("frontend URL for %s has no host", node.Name)
	}
	return u.Hostname(), nil
}
