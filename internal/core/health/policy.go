// Package health runs the per-node health check: liveness probe, RPC
// probe, and chain-agnostic classification against a reference height or a
// chain-provided health field.
package health

import "nodewarden/internal/core/domain"

// Policy is the per-chain health strategy, selected once from the chain
// configuration so the checker's branches stay exhaustive.
type Policy int

const (
	// OwnEndpointPolicy compares a chain-provided health field against a
	// configured healthy value.
	OwnEndpointPolicy Policy = iota
	// OracleHeightPolicy compares block heights against external oracle
	// endpoints, falling back to fleet peers.
	OracleHeightPolicy
	// PeerHeightPolicy compares block heights against fleet peers only.
	PeerHeightPolicy
)

// PolicyFor selects the health policy for a chain.
func PolicyFor(chain domain.Chain) Policy {
	switch {
	case chain.HasOwnEndpoint:
		return OwnEndpointPolicy
	case chain.UseOracles:
		return OracleHeightPolicy
	default:
		return PeerHeightPolicy
	}
}
