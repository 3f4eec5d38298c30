package escalation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/alert"
	"nodewarden/internal/infra/storage"
	"nodewarden/internal/metrics"
)

// Rotator is the slice of the rotation engine the escalation engine needs.
type Rotator interface {
	// RemoveFromRotation takes the node's server out of its backend pool.
	// Returns false without error when the action was refused.
	RemoveFromRotation(ctx context.Context, node domain.Node) (bool, error)
	// AddToRotation puts the node's server back into its backend pool.
	AddToRotation(ctx context.Context, node domain.Node) (bool, error)
	// OnlineCount returns the backend's online member count, or an error
	// when the load balancers disagree.
	OnlineCount(ctx context.Context, node domain.Node) (int, error)
}

// Config holds the escalation thresholds.
type Config struct {
	// TriggerThreshold is the consecutive-error count that emits the
	// first alert.
	TriggerThreshold int
	// RetriggerThreshold is the cadence of repeat alerts past the
	// trigger point.
	RetriggerThreshold int
}

// Engine is the per-node escalation state machine. State is the failure
// counter plus the node's persisted status; one Process call handles one
// polling tick.
type Engine struct {
	cfg      Config
	counters *Counters
	nodes    storage.NodeRepository
	alerts   alert.Dispatcher
	rotator  Rotator
	policy   DispatchPolicy
	log      *slog.Logger
}

// NewEngine creates the escalation engine. rotator may be nil to disable
// automation entirely; policy may be nil for the default pass-through.
func NewEngine(
	cfg Config,
	counters *Counters,
	nodes storage.NodeRepository,
	alerts alert.Dispatcher,
	rotator Rotator,
	policy DispatchPolicy,
) *Engine {
	if policy == nil {
		policy = NopPolicy{}
	}
	return &Engine{
		cfg:      cfg,
		counters: counters,
		nodes:    nodes,
		alerts:   alerts,
		rotator:  rotator,
		policy:   policy,
		log:      slog.Default().With("component", "escalation"),
	}
}

// Process consumes one health result for one node: persists the new
// status, advances the failure counter and emits whatever event the
// transition calls for. Called strictly in tick order per node.
func (e *Engine) Process(ctx context.Context, node domain.Node, result domain.HealthResult) {
	result.Conditions = e.policy.NormalizeCondition(node, result.Conditions)

	if err := e.persist(ctx, node, result); err != nil {
		e.log.Error("failed to persist health result", "node", node.Name, "error", err)
	}

	switch result.Status {
	case domain.StatusError:
		e.processError(ctx, node, result)
	case domain.StatusOK:
		e.processOK(ctx, node, result)
	}
}

func (e *Engine) persist(ctx context.Context, node domain.Node, result domain.HealthResult) error {
	upd := storage.HealthUpdate{
		Status:    result.Status,
		Condition: result.Conditions,
	}
	if result.Conditions == domain.ConditionNotSynchronized && !node.Frontend {
		upd.DeltaOp = storage.DeltaAppend
		upd.Delta = result.Delta
		upd.MaxSamples = e.cfg.RetriggerThreshold
	}
	return e.nodes.UpdateHealth(ctx, node.ID, upd)
}

func (e *Engine) processError(ctx context.Context, node domain.Node, result domain.HealthResult) {
	count := e.counters.Increment(node.ID)

	switch {
	case count == e.cfg.TriggerThreshold:
		ev := e.newEvent(domain.EventTrigger, node, result, count)
		e.notify(ctx, node, ev)
		e.policy.OnTrigger(ctx, node, ev)
		e.removeFromRotation(ctx, node)

	case count > e.cfg.TriggerThreshold && (count-e.cfg.TriggerThreshold)%e.cfg.RetriggerThreshold == 0:
		ev := e.newEvent(domain.EventRetrigger, node, result, count)
		e.notify(ctx, node, ev)
		// A retrigger wave can hit every backend member at once; only
		// pull the server when at least one other member stays online.
		if e.rotator != nil && node.Automation && node.Backend != "" {
			online, err := e.rotator.OnlineCount(ctx, node)
			if err != nil {
				e.log.Error("online count failed on retrigger", "node", node.Name, "error", err)
				return
			}
			if online >= 2 {
				e.removeFromRotation(ctx, node)
			}
		}
	}
}

func (e *Engine) processOK(ctx context.Context, node domain.Node, result domain.HealthResult) {
	count, tracked := e.counters.Get(node.ID)
	if !tracked {
		return
	}
	e.counters.Delete(node.ID)

	// Recovered before ever alerting: nothing externally visible.
	if count < e.cfg.TriggerThreshold {
		return
	}

	ev := e.newEvent(domain.EventResolved, node, result, count)
	e.notify(ctx, node, ev)
	e.addToRotation(ctx, node)
}

func (e *Engine) newEvent(t domain.EventType, node domain.Node, result domain.HealthResult, count int) domain.MonitorEvent {
	metrics.EventsTotal.WithLabelValues(string(t)).Inc()
	return domain.MonitorEvent{
		ID:              uuid.NewString(),
		Type:            t,
		NodeID:          node.ID,
		Status:          result.Status,
		Conditions:      result.Conditions,
		Height:          result.Height,
		Details:         result.Details,
		OccurrenceCount: count,
	}
}

// notify routes the event to the alert channels. Muted nodes skip the
// dispatch entirely but still drive rotation.
func (e *Engine) notify(ctx context.Context, node domain.Node, ev domain.MonitorEvent) {
	if node.Muted {
		return
	}

	m := alert.Message{
		Title:     alert.TitleFor(ev, node.Name),
		Body:      alert.BodyFor(ev, node),
		Chain:     node.Chain.Name,
		Location:  node.Host.Location,
		Frontend:  node.Frontend,
		Retrigger: ev.Type == domain.EventRetrigger,
	}

	var ok bool
	switch ev.Status {
	case domain.StatusOK:
		ok = e.alerts.SendSuccess(ctx, m)
	case domain.StatusWarning:
		ok = e.alerts.SendWarn(ctx, m)
	case domain.StatusError:
		ok = e.alerts.SendError(ctx, m)
	default:
		ok = e.alerts.SendInfo(ctx, m)
	}
	if !ok {
		e.log.Error("alert delivery failed", "node", node.Name, "event", ev.Type)
	}
}

// removeFromRotation pulls the node's backend server, reporting the
// outcome. Rotation errors are never retried automatically: a miscounted
// backend is unsafe to act on blindly, so an operator gets paged by alert
// instead.
func (e *Engine) removeFromRotation(ctx context.Context, node domain.Node) {
	if e.rotator == nil || !node.Automation || node.Backend == "" {
		return
	}

	removed, err := e.rotator.RemoveFromRotation(ctx, node)
	switch {
	case err != nil:
		e.rotationAlert(ctx, node, e.alerts.SendError,
			fmt.Sprintf("Could not remove %s from rotation: %v", node.Name, err))
	case removed:
		e.rotationAlert(ctx, node, e.alerts.SendInfo,
			fmt.Sprintf("%s removed from rotation on backend %s.", node.Name, node.Backend))
	default:
		e.rotationAlert(ctx, node, e.alerts.SendWarn,
			fmt.Sprintf("Removal of %s refused: backend %s has no other online server.", node.Name, node.Backend))
	}
}

func (e *Engine) addToRotation(ctx context.Context, node domain.Node) {
	if e.rotator == nil || !node.Automation || node.Backend == "" {
		return
	}

	added, err := e.rotator.AddToRotation(ctx, node)
	switch {
	case err != nil:
		e.rotationAlert(ctx, node, e.alerts.SendError,
			fmt.Sprintf("Could not add %s back to rotation: %v", node.Name, err))
	case added:
		e.rotationAlert(ctx, node, e.alerts.SendInfo,
			fmt.Sprintf("%s added back to rotation on backend %s.", node.Name, node.Backend))
	}
}

func (e *Engine) rotationAlert(ctx context.Context, node domain.Node, send func(context.Context, alert.Message) bool, body string) {
	if node.Muted {
		return
	}
	send(ctx, alert.Message{
		Title:    "Rotation: " + node.Name,
		Body:     body,
		Chain:    node.Chain.Name,
		Location: node.Host.Location,
		Frontend: node.Frontend,
	})
}
