package escalation

import (
	"context"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/alert"
)

// DispatchPolicy is the deployment-specific hook consulted by the engine.
// The default policy does nothing; internal deployments substitute one
// that knows about their dispatch routing tier.
type DispatchPolicy interface {
	// NormalizeCondition may reclassify a raw condition for specific
	// nodes before escalation handling.
	NormalizeCondition(node domain.Node, cond domain.HealthCondition) domain.HealthCondition

	// OnTrigger runs after a Trigger event has been emitted, for policies
	// that escalate certain outages beyond chat alerting.
	OnTrigger(ctx context.Context, node domain.Node, ev domain.MonitorEvent)
}

// NopPolicy is the default policy: conditions pass through untouched and
// no extra escalation happens.
type NopPolicy struct{}

func (NopPolicy) NormalizeCondition(_ domain.Node, cond domain.HealthCondition) domain.HealthCondition {
	return cond
}

func (NopPolicy) OnTrigger(context.Context, domain.Node, domain.MonitorEvent) {}

// PNFPolicy implements the internal dispatch-tier rules: dispatch nodes
// that are OFFLINE or unresponsive count as NOT_SYNCHRONIZED (the dispatch
// chain serves traffic through its own routing layer, so reachability and
// sync failures are operationally the same), and a downed dispatch
// frontend pages immediately.
type PNFPolicy struct {
	Pager alert.Dispatcher
}

func (PNFPolicy) NormalizeCondition(node domain.Node, cond domain.HealthCondition) domain.HealthCondition {
	if !node.Dispatch {
		return cond
	}
	if cond == domain.ConditionOffline || cond == domain.ConditionNoResponse {
		return domain.ConditionNotSynchronized
	}
	return cond
}

func (p PNFPolicy) OnTrigger(ctx context.Context, node domain.Node, ev domain.MonitorEvent) {
	if !node.Dispatch || !node.Frontend || p.Pager == nil {
		return
	}
	_ = p.Pager.CreateUrgentIncident(ctx,
		"Dispatch frontend down: "+node.Name,
		"Condition: "+string(ev.Conditions))
}
