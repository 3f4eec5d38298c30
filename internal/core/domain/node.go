// Package domain defines the inventory and monitoring types shared across
// the health checker, escalation engine and rotation engine.
package domain

import "fmt"

// HealthStatus is the coarse per-node status persisted to the inventory.
type HealthStatus string

const (
	StatusOK      HealthStatus = "OK"
	StatusError   HealthStatus = "ERROR"
	StatusInfo    HealthStatus = "INFO"
	StatusWarning HealthStatus = "WARNING"
	StatusPending HealthStatus = "PENDING"
)

// HealthCondition is the fine-grained classification produced by a check.
// StatusPending/ConditionPending are initial states only, never produced
// by a health check.
type HealthCondition string

const (
	ConditionHealthy             HealthCondition = "HEALTHY"
	ConditionOffline             HealthCondition = "OFFLINE"
	ConditionNoResponse          HealthCondition = "NO_RESPONSE"
	ConditionErrorResponse       HealthCondition = "ERROR_RESPONSE"
	ConditionNotSynchronized     HealthCondition = "NOT_SYNCHRONIZED"
	ConditionNoPeers             HealthCondition = "NO_PEERS"
	ConditionPeerNotSynchronized HealthCondition = "PEER_NOT_SYNCHRONIZED"
	ConditionPending             HealthCondition = "PENDING"
)

// Host is the physical/network location of a node or load balancer.
type Host struct {
	ID           string
	Name         string
	IP           string
	FQDN         string
	Location     string
	LoadBalancer bool
}

// Address returns the preferred address for reaching the host. FQDN wins
// over IP when both are set.
func (h Host) Address() string {
	if h.FQDN != "" {
		return h.FQDN
	}
	return h.IP
}

// Node is one monitored unit: a chain client process on a host.
type Node struct {
	ID        string
	Name      string
	Chain     Chain
	Host      Host
	Port      int
	URL       string
	Muted     bool
	Status    HealthStatus
	Condition HealthCondition
	Backend   string
	// LoadBalancers is the set of LB hosts this node's backend is served
	// through. Empty for nodes not behind a load balancer.
	LoadBalancers []Host
	// Frontend marks nodes reached through a public domain rather than a
	// backend/server pair. Frontends never contribute peer heights and are
	// counted through their URL.
	Frontend bool
	// Server is the backend member name known to the load balancers.
	Server string
	// BasicAuth is an optional "user:pass" credential for the RPC endpoint.
	BasicAuth string
	// Automation gates rotation actions for this node.
	Automation bool
	// Dispatch marks nodes that belong to the internal dispatch routing
	// tier; the dispatch policy hook treats their conditions specially.
	Dispatch bool
	// DeltaHistory is a bounded ring of recent height deltas, newest first,
	// used to estimate time to resynchronization.
	DeltaHistory []int64
}

// HostPort returns the TCP endpoint probed for liveness.
func (n Node) HostPort() string {
	return fmt.Sprintf("%s:%d", n.Host.Address(), n.Port)
}
