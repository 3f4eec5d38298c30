// Package storage defines the inventory repository contracts. The monitor
// treats the inventory as an external collaborator behind these interfaces;
// postgres and memory implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"nodewarden/internal/core/domain"
)

// ErrNodeNotFound is returned when a node lookup misses.
var ErrNodeNotFound = errors.New("node not found")

// DeltaOp selects how a health update touches the node's delta history.
type DeltaOp int

const (
	// DeltaNone leaves the history untouched.
	DeltaNone DeltaOp = iota
	// DeltaAppend pushes a new delta sample, evicting the oldest entry
	// once the ring reaches MaxSamples.
	DeltaAppend
	// DeltaClear empties the history.
	DeltaClear
)

// HealthUpdate is the per-node single-document write applied after a check.
type HealthUpdate struct {
	Status     domain.HealthStatus
	Condition  domain.HealthCondition
	DeltaOp    DeltaOp
	Delta      int64
	MaxSamples int
}

// NodeRepository provides read/write access to monitored nodes with their
// chain and host joined.
type NodeRepository interface {
	// FindMonitored returns all non-deleted nodes eligible for monitoring.
	FindMonitored(ctx context.Context) ([]domain.Node, error)

	// FindByID re-reads one node with chain and host joined. The monitor
	// calls this every tick so externally mutated state (muted flag,
	// delta history) is observed fresh.
	FindByID(ctx context.Context, id string) (domain.Node, error)

	// FindPeerCandidates returns up to limit nodes on the same chain,
	// excluding excludeID, frontend nodes and nodes currently in ERROR,
	// in random order.
	FindPeerCandidates(ctx context.Context, chainID, excludeID string, limit int) ([]domain.Node, error)

	// Exists reports whether a node with the given name exists.
	Exists(ctx context.Context, name string) (bool, error)

	// UpdateHealth applies the post-check status/condition/delta write.
	UpdateHealth(ctx context.Context, id string, upd HealthUpdate) error

	// ClearHealthyDeltas drops the delta history of every node currently
	// HEALTHY, returning the number of nodes touched. Run periodically so
	// stale recovery estimates do not outlive an incident.
	ClearHealthyDeltas(ctx context.Context) (int, error)
}

// OracleRepository provides the external reference endpoints per chain.
type OracleRepository interface {
	FindByChain(ctx context.Context, chain string) ([]domain.Oracle, error)
}

// WebhookRepository resolves the alert channel for a chain/location pair.
type WebhookRepository interface {
	FindByChainLocation(ctx context.Context, chain, location string) (*domain.Webhook, error)
}
