package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/rpc"
	"nodewarden/internal/infra/storage"
)

// tcpTimeout bounds the pre-RPC liveness probe.
const tcpTimeout = 5 * time.Second

// Checker runs one health check for one node and classifies the result.
type Checker struct {
	rpc      *rpc.Client
	nodes    storage.NodeRepository
	oracles  storage.OracleRepository
	interval time.Duration
	trigger  int
}

// NewChecker creates a checker. interval is the monitor's polling cadence;
// the rpc client passed in should carry a timeout of roughly 3/4 of it so
// a hung probe never overlaps the next tick. triggerThreshold is the
// minimum delta-history population before a recovery estimate is produced.
func NewChecker(
	rpcClient *rpc.Client,
	nodes storage.NodeRepository,
	oracles storage.OracleRepository,
	interval time.Duration,
	triggerThreshold int,
) *Checker {
	return &Checker{
		rpc:      rpcClient,
		nodes:    nodes,
		oracles:  oracles,
		interval: interval,
		trigger:  triggerThreshold,
	}
}

// RPCTimeout derives the probe timeout from a polling interval.
func RPCTimeout(interval time.Duration) time.Duration {
	return interval * 3 / 4
}

// Check performs the full health check for a node. Failures are classified
// into conditions, never returned as errors; every path yields a result.
func (c *Checker) Check(ctx context.Context, node domain.Node) domain.HealthResult {
	if err := rpc.DialCheck(node.HostPort(), tcpTimeout); err != nil {
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionOffline,
			Error:      err.Error(),
		}
	}

	payload, err := c.rpc.Fetch(ctx, rpc.Request{
		URL:       node.URL + node.Chain.Endpoint,
		Body:      node.Chain.RPCRequest,
		BasicAuth: node.BasicAuth,
	})
	if err != nil {
		cond := domain.ConditionNoResponse
		if errors.Is(err, rpc.ErrErrorResponse) {
			cond = domain.ConditionErrorResponse
		}
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: cond,
			Error:      err.Error(),
		}
	}

	if PolicyFor(node.Chain) == OwnEndpointPolicy {
		return c.checkOwnEndpoint(node, payload)
	}
	return c.checkHeight(ctx, node, payload)
}

// probeHeight fetches and parses a reference height from one oracle or
// peer endpoint.
func (c *Checker) probeHeight(ctx context.Context, url, body, auth, path string) (int64, error) {
	payload, err := c.rpc.Fetch(ctx, rpc.Request{URL: url, Body: body, BasicAuth: auth})
	if err != nil {
		return 0, err
	}
	field, ok := rpc.ResolvePath(payload, path)
	if !ok {
		return 0, fmt.Errorf("response path %q not found", path)
	}
	return rpc.ParseHeight(field)
}

// checkOwnEndpoint compares the chain-provided health field against the
// configured healthy value.
func (c *Checker) checkOwnEndpoint(node domain.Node, payload any) domain.HealthResult {
	field, ok := rpc.ResolvePath(payload, node.Chain.ResponsePath)
	if !ok {
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionNoResponse,
			Error:      fmt.Sprintf("response path %q not found", node.Chain.ResponsePath),
		}
	}

	if reflect.DeepEqual(field, healthyValue(node.Chain)) {
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusOK,
			Conditions: domain.ConditionHealthy,
		}
	}
	return domain.HealthResult{
		Name:       node.Name,
		Status:     domain.StatusError,
		Conditions: domain.ConditionNotSynchronized,
		Error:      fmt.Sprintf("health field is %v", field),
	}
}

// healthyValue recovers the configured healthy value with its original
// JSON type, falling back to the raw string.
func healthyValue(chain domain.Chain) any {
	var v any
	if err := json.Unmarshal([]byte(chain.HealthyValue), &v); err != nil {
		return chain.HealthyValue
	}
	return v
}

// checkHeight classifies the node by comparing its block height against
// the best oracle/peer reference.
func (c *Checker) checkHeight(ctx context.Context, node domain.Node, payload any) domain.HealthResult {
	field, ok := rpc.ResolvePath(payload, node.Chain.ResponsePath)
	if !ok {
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionNoResponse,
			Error:      fmt.Sprintf("response path %q not found", node.Chain.ResponsePath),
		}
	}
	height, err := rpc.ParseHeight(field)
	if err != nil {
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionNoResponse,
			Error:      err.Error(),
		}
	}

	reading, err := c.resolveReference(ctx, node)
	details := &domain.HealthDetails{
		BadOracles: reading.badOracles,
		NoOracle:   reading.noOracle,
	}
	if err != nil {
		// Inventory failures surface the same way as an empty reference
		// pool: sync state cannot be classified this tick.
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionNoPeers,
			Height:     height,
			Error:      err.Error(),
			Details:    details,
		}
	}

	delta := reading.best() - height

	switch {
	case delta+node.Chain.Allowance < 0:
		details.NodeIsAheadOfPeer = -delta
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionPeerNotSynchronized,
			Height:     height,
			Delta:      delta,
			Details:    details,
		}

	case delta > node.Chain.Allowance:
		if !node.Frontend {
			window := append([]int64{delta}, node.DeltaHistory...)
			details.SecondsToRecover = SecondsToRecover(window, c.interval, c.trigger)
		}
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusError,
			Conditions: domain.ConditionNotSynchronized,
			Height:     height,
			Delta:      delta,
			Details:    details,
		}

	default:
		return domain.HealthResult{
			Name:       node.Name,
			Status:     domain.StatusOK,
			Conditions: domain.ConditionHealthy,
			Height:     height,
			Delta:      delta,
			Details:    details,
		}
	}
}
