// Package escalation converts raw per-tick health results into trigger,
// retrigger and resolved events with hysteresis, and drives the alert and
// rotation side effects.
package escalation

import (
	"sync"

	"nodewarden/internal/core/domain"
)

// Counters is the process-lifetime map of consecutive-error counts per
// node. An entry exists iff the node is in a non-OK streak. Ticks from
// different node tasks run concurrently, so access is mutex-guarded; each
// task only touches its own key, so contention stays low.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounters creates an empty failure-counter map.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int)}
}

// Increment bumps the node's consecutive-error count, initializing to 1,
// and returns the new count.
func (c *Counters) Increment(nodeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[nodeID]++
	return c.counts[nodeID]
}

// Get returns the node's count and whether the node is tracked.
func (c *Counters) Get(nodeID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.counts[nodeID]
	return n, ok
}

// Delete removes the node's entry.
func (c *Counters) Delete(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, nodeID)
}

// Seed sets a node's count without incrementing.
func (c *Counters) Seed(nodeID string, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[nodeID] = count
}

// Snapshot returns a copy of all tracked counts, for status reporting.
func (c *Counters) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// SeedFromPersistedState pre-populates counters from the last persisted
// status of each node, so a monitor restart does not forget an in-progress
// incident. Nodes persisted in ERROR are seeded at the trigger threshold:
// the incident already alerted before the restart, so the next OK emits
// Resolved and further errors retrigger instead of re-triggering.
func (c *Counters) SeedFromPersistedState(nodes []domain.Node, triggerThreshold int) {
	for _, n := range nodes {
		if n.Status == domain.StatusError {
			c.Seed(n.ID, triggerThreshold)
		}
	}
}
