// Package metrics exposes the monitor's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChecksTotal counts health checks per chain and resulting condition.
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewarden_checks_total",
			Help: "Total number of health checks by resulting condition",
		},
		[]string{"chain", "condition"},
	)

	// EventsTotal counts escalation events by type.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewarden_events_total",
			Help: "Total number of trigger/retrigger/resolved events",
		},
		[]string{"type"},
	)

	// RotationActionsTotal counts rotation actions and their outcome.
	RotationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodewarden_rotation_actions_total",
			Help: "Total number of load balancer rotation actions",
		},
		[]string{"action", "outcome"},
	)

	// NodeHeight tracks the latest observed block height per node.
	NodeHeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodewarden_node_height",
			Help: "Latest block height observed for a node",
		},
		[]string{"chain", "node"},
	)

	// BlockDelta tracks the height delta against the best reference.
	BlockDelta = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nodewarden_block_delta",
			Help: "Height delta between a node and its best reference",
		},
		[]string{"chain", "node"},
	)

	// CheckDuration tracks end-to-end health check latency.
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nodewarden_check_duration_seconds",
			Help:    "Health check latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain"},
	)
)
