package health

import (
	"context"
	"errors"
	"math/rand"

	"nodewarden/internal/core/domain"
)

const (
	// maxOracleReadings is how many healthy oracle heights are collected
	// before oracle probing stops.
	maxOracleReadings = 2
	// maxPeerReadings is how many healthy peer heights are collected
	// before peer probing stops.
	maxPeerReadings = 5
	// peerPoolLimit bounds the candidate pool sampled from the inventory.
	peerPoolLimit = 25
)

// ErrNoPeers is returned when neither oracles nor enough peers could
// provide a reference height.
var ErrNoPeers = errors.New("no oracle or peer heights available")

// referenceReading is the outcome of reference-height resolution: the
// collected heights plus diagnostics about degraded oracle coverage.
type referenceReading struct {
	heights    []int64
	badOracles []string
	noOracle   bool
}

// best returns the reference height. Ties and outliers resolve to the max:
// the furthest-ahead reference is the one a lagging node is measured
// against.
func (r referenceReading) best() int64 {
	best := r.heights[0]
	for _, h := range r.heights[1:] {
		if h > best {
			best = h
		}
	}
	return best
}

// resolveReference collects reference heights for a node. Oracles are
// probed first when the chain opts in, in random order to spread load;
// fewer than two healthy oracle readings degrade to peer sampling.
func (c *Checker) resolveReference(ctx context.Context, node domain.Node) (referenceReading, error) {
	var reading referenceReading
	chain := node.Chain

	if PolicyFor(chain) == OracleHeightPolicy {
		oracles, err := c.oracles.FindByChain(ctx, chain.Name)
		if err != nil {
			return reading, err
		}
		rand.Shuffle(len(oracles), func(i, j int) { oracles[i], oracles[j] = oracles[j], oracles[i] })

		for _, o := range oracles {
			if len(reading.heights) >= maxOracleReadings {
				break
			}
			h, err := c.probeHeight(ctx, o.URL, chain.RPCRequest, "", chain.ResponsePath)
			if err != nil {
				reading.badOracles = append(reading.badOracles, o.Name)
				continue
			}
			reading.heights = append(reading.heights, h)
		}
		reading.noOracle = len(reading.heights) == 0
	}

	oracleCount := len(reading.heights)
	if oracleCount < maxOracleReadings {
		peers, err := c.nodes.FindPeerCandidates(ctx, chain.ID, node.ID, peerPoolLimit)
		if err != nil {
			return reading, err
		}

		peerCount := 0
		for _, peer := range peers {
			if peerCount >= maxPeerReadings {
				break
			}
			h, err := c.probeHeight(ctx, peer.URL+chain.Endpoint, chain.RPCRequest, peer.BasicAuth, chain.ResponsePath)
			if err != nil {
				continue
			}
			reading.heights = append(reading.heights, h)
			peerCount++
		}

		if oracleCount == 0 && peerCount < 2 {
			return reading, ErrNoPeers
		}
	}

	return reading, nil
}
