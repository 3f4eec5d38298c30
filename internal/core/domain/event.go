package domain

// HealthDetails carries optional diagnostics attached to a check result.
type HealthDetails struct {
	// BadOracles names oracles that errored during reference resolution.
	BadOracles []string `json:"badOracles,omitempty"`
	// NoOracle is set when oracles were required but none answered and the
	// check degraded to peer heights.
	NoOracle bool `json:"noOracle,omitempty"`
	// NodeIsAheadOfPeer is the absolute height the node leads the best
	// reference by, for PEER_NOT_SYNCHRONIZED results.
	NodeIsAheadOfPeer int64 `json:"nodeIsAheadOfPeer,omitempty"`
	// SecondsToRecover is a linear-trend estimate of time until the node
	// catches up. 0 means the delta is stuck, -1 means it is growing. Nil
	// until enough samples exist.
	SecondsToRecover *int64 `json:"secondsToRecover,omitempty"`
}

// HealthResult is the classified outcome of one health check.
type HealthResult struct {
	Name       string          `json:"name"`
	Status     HealthStatus    `json:"status"`
	Conditions HealthCondition `json:"conditions"`
	Height     int64           `json:"height,omitempty"`
	Delta      int64           `json:"delta,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    *HealthDetails  `json:"details,omitempty"`
}

// EventType is the alert-worthy transition emitted by the escalation engine.
type EventType string

const (
	EventTrigger   EventType = "TRIGGER"
	EventRetrigger EventType = "RETRIGGER"
	EventResolved  EventType = "RESOLVED"
)

// MonitorEvent is the ephemeral unit handed from the escalation engine to
// the rotation engine and alert dispatcher. Created per escalation,
// discarded after handling.
type MonitorEvent struct {
	ID              string
	Type            EventType
	NodeID          string
	Status          HealthStatus
	Conditions      HealthCondition
	Height          int64
	Details         *HealthDetails
	OccurrenceCount int
}
