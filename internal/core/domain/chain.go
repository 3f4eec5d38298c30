package domain

// Chain is the per-blockchain configuration driving the chain-agnostic
// health logic. Immutable during a monitoring run.
type Chain struct {
	ID   string
	Name string
	Type string
	// Allowance is the max tolerated height delta before a node counts as
	// unsynchronized.
	Allowance int64
	// HasOwnEndpoint selects the own-endpoint policy: the chain exposes a
	// health field compared against HealthyValue instead of a height.
	HasOwnEndpoint bool
	// UseOracles enables external oracle endpoints as the height reference
	// before falling back to fleet peers.
	UseOracles bool
	// ResponsePath is the dot-path to the health/height field within the
	// RPC response body, e.g. "result.sync_info.latest_block_height".
	ResponsePath string
	// RPCRequest is an optional JSON body template; when set the probe is a
	// POST, otherwise a GET against Endpoint.
	RPCRequest string
	// Endpoint is an optional path suffix appended to the node URL.
	Endpoint string
	// HealthyValue is the expected value at ResponsePath for own-endpoint
	// chains, stored as its JSON encoding to preserve the original type.
	HealthyValue string
}

// Oracle is an external, chain-operated reference RPC endpoint.
type Oracle struct {
	ID    string
	Chain string
	Name  string
	URL   string
}

// Webhook routes alert messages for a chain/location pair to a Discord
// webhook URL.
type Webhook struct {
	ID       string
	Chain    string
	Location string
	URL      string
}
