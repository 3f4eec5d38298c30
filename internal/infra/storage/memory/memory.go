// Package memory implements the inventory repositories in process memory.
// Used by tests and by standalone runs without a database.
package memory

import (
	"context"
	"math/rand"
	"sync"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/storage"
)

// Store holds the whole inventory under one lock. Fleet sizes are small
// enough that sharding is not worth it here.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*domain.Node
	oracles  []domain.Oracle
	webhooks []domain.Webhook
}

// NewStore creates an empty in-memory inventory.
func NewStore() *Store {
	return &Store{nodes: make(map[string]*domain.Node)}
}

// AddNode inserts or replaces a node.
func (s *Store) AddNode(n domain.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := n
	s.nodes[n.ID] = &copied
}

// AddOracle registers a reference endpoint.
func (s *Store) AddOracle(o domain.Oracle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oracles = append(s.oracles, o)
}

// AddWebhook registers an alert channel route.
func (s *Store) AddWebhook(w domain.Webhook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks = append(s.webhooks, w)
}

// GetNode returns a copy of the stored node, for test assertions.
func (s *Store) GetNode(id string) (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return domain.Node{}, false
	}
	return *n, true
}

func (s *Store) FindMonitored(ctx context.Context) ([]domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return domain.Node{}, storage.ErrNodeNotFound
	}
	return *n, nil
}

func (s *Store) FindPeerCandidates(ctx context.Context, chainID, excludeID string, limit int) ([]domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pool []domain.Node
	for _, n := range s.nodes {
		if n.Chain.ID != chainID || n.ID == excludeID || n.Frontend {
			continue
		}
		if n.Status == domain.StatusError {
			continue
		}
		pool = append(pool, *n)
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.nodes {
		if n.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateHealth(ctx context.Context, id string, upd storage.HealthUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return storage.ErrNodeNotFound
	}
	n.Status = upd.Status
	n.Condition = upd.Condition
	switch upd.DeltaOp {
	case storage.DeltaAppend:
		n.DeltaHistory = append([]int64{upd.Delta}, n.DeltaHistory...)
		if upd.MaxSamples > 0 && len(n.DeltaHistory) > upd.MaxSamples {
			n.DeltaHistory = n.DeltaHistory[:upd.MaxSamples]
		}
	case storage.DeltaClear:
		n.DeltaHistory = nil
	}
	return nil
}

func (s *Store) ClearHealthyDeltas(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cleared := 0
	for _, n := range s.nodes {
		if n.Condition == domain.ConditionHealthy && len(n.DeltaHistory) > 0 {
			n.DeltaHistory = nil
			cleared++
		}
	}
	return cleared, nil
}

func (s *Store) FindByChain(ctx context.Context, chain string) ([]domain.Oracle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Oracle
	for _, o := range s.oracles {
		if o.Chain == chain {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) FindByChainLocation(ctx context.Context, chain, location string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, w := range s.webhooks {
		if w.Chain == chain && w.Location == location {
			copied := w
			return &copied, nil
		}
	}
	return nil, nil
}
