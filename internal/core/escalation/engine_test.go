package escalation

import (
	"context"
	"strings"
	"testing"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/alert"
	"nodewarden/internal/infra/storage/memory"
)

type fakeDispatcher struct {
	sent      []string // "severity|title"
	incidents []string
}

func (f *fakeDispatcher) record(sev string, m alert.Message) bool {
	f.sent = append(f.sent, sev+"|"+m.Title)
	return true
}

func (f *fakeDispatcher) SendSuccess(_ context.Context, m alert.Message) bool {
	return f.record("success", m)
}
func (f *fakeDispatcher) SendInfo(_ context.Context, m alert.Message) bool {
	return f.record("info", m)
}
func (f *fakeDispatcher) SendWarn(_ context.Context, m alert.Message) bool {
	return f.record("warn", m)
}
func (f *fakeDispatcher) SendError(_ context.Context, m alert.Message) bool {
	return f.record("error", m)
}
func (f *fakeDispatcher) CreateUrgentIncident(_ context.Context, title, _ string) error {
	f.incidents = append(f.incidents, title)
	return nil
}

func (f *fakeDispatcher) countPrefix(prefix string) int {
	n := 0
	for _, s := range f.sent {
		if strings.Contains(s, prefix) {
			n++
		}
	}
	return n
}

type fakeRotator struct {
	online    int
	countErr  error
	removals  int
	additions int
}

func (f *fakeRotator) RemoveFromRotation(context.Context, domain.Node) (bool, error) {
	f.removals++
	return true, nil
}

func (f *fakeRotator) AddToRotation(context.Context, domain.Node) (bool, error) {
	f.additions++
	return true, nil
}

func (f *fakeRotator) OnlineCount(context.Context, domain.Node) (int, error) {
	return f.online, f.countErr
}

func testNode() domain.Node {
	return domain.Node{
		ID:         "node-1",
		Name:       "test/node-1",
		Chain:      domain.Chain{ID: "chain-1", Name: "TST"},
		Host:       domain.Host{Name: "host-1", Location: "EU"},
		Backend:    "tstbackend",
		Server:     "2a",
		Automation: true,
		Status:     domain.StatusOK,
	}
}

func newTestEngine(t *testing.T, node domain.Node) (*Engine, *fakeDispatcher, *fakeRotator, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddNode(node)
	dispatcher := &fakeDispatcher{}
	rotator := &fakeRotator{online: 3}
	cfg := Config{TriggerThreshold: 3, RetriggerThreshold: 5}
	return NewEngine(cfg, NewCounters(), store, dispatcher, rotator, nil), dispatcher, rotator, store
}

func errResult() domain.HealthResult {
	return domain.HealthResult{
		Name:       "test/node-1",
		Status:     domain.StatusError,
		Conditions: domain.ConditionNotSynchronized,
		Height:     100,
		Delta:      12,
	}
}

func okResult() domain.HealthResult {
	return domain.HealthResult{
		Name:       "test/node-1",
		Status:     domain.StatusOK,
		Conditions: domain.ConditionHealthy,
		Height:     120,
	}
}

func TestRecoveryBeforeTriggerIsSilent(t *testing.T) {
	node := testNode()
	engine, dispatcher, rotator, _ := newTestEngine(t, node)
	ctx := context.Background()

	engine.Process(ctx, node, okResult())
	engine.Process(ctx, node, errResult())
	engine.Process(ctx, node, errResult())
	engine.Process(ctx, node, okResult())

	if len(dispatcher.sent) != 0 {
		t.Fatalf("expected no alerts, got %v", dispatcher.sent)
	}
	if rotator.removals != 0 || rotator.additions != 0 {
		t.Fatal("expected no rotation actions")
	}
	if _, tracked := engine.counters.Get(node.ID); tracked {
		t.Fatal("expected counter entry removed")
	}
}

func TestTriggerFiresExactlyOnce(t *testing.T) {
	node := testNode()
	engine, dispatcher, rotator, _ := newTestEngine(t, node)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		engine.Process(ctx, node, errResult())
	}

	if got := dispatcher.countPrefix("|TRIGGER:"); got != 1 {
		t.Fatalf("expected 1 trigger alert, got %d (%v)", got, dispatcher.sent)
	}
	if rotator.removals != 1 {
		t.Fatalf("expected 1 rotation removal, got %d", rotator.removals)
	}
}

func TestRetriggerCadence(t *testing.T) {
	node := testNode()
	engine, dispatcher, _, _ := newTestEngine(t, node)
	ctx := context.Background()

	// trigger=3, retrigger=5: the retrigger fires at count 8 and 13.
	for i := 0; i < 13; i++ {
		engine.Process(ctx, node, errResult())
	}

	if got := dispatcher.countPrefix("|TRIGGER:"); got != 1 {
		t.Fatalf("expected 1 trigger, got %d", got)
	}
	if got := dispatcher.countPrefix("|RETRIGGER:"); got != 2 {
		t.Fatalf("expected 2 retriggers, got %d (%v)", got, dispatcher.sent)
	}
}

func TestRetriggerSkipsRotationWhenLastServer(t *testing.T) {
	node := testNode()
	engine, _, rotator, _ := newTestEngine(t, node)
	rotator.online = 1
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		engine.Process(ctx, node, errResult())
	}

	// One removal from the trigger; the retrigger at count 8 must not pull
	// the last online server.
	if rotator.removals != 1 {
		t.Fatalf("expected 1 removal, got %d", rotator.removals)
	}
}

func TestResolvedAfterTrigger(t *testing.T) {
	node := testNode()
	engine, dispatcher, rotator, _ := newTestEngine(t, node)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		engine.Process(ctx, node, errResult())
	}
	engine.Process(ctx, node, okResult())

	if got := dispatcher.countPrefix("|RESOLVED:"); got != 1 {
		t.Fatalf("expected 1 resolved alert, got %d (%v)", got, dispatcher.sent)
	}
	if rotator.additions != 1 {
		t.Fatalf("expected 1 rotation addition, got %d", rotator.additions)
	}
	if _, tracked := engine.counters.Get(node.ID); tracked {
		t.Fatal("expected counter removed after resolve")
	}
}

func TestMutedNodeSkipsAlertsButRotates(t *testing.T) {
	node := testNode()
	node.Muted = true
	engine, dispatcher, rotator, _ := newTestEngine(t, node)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		engine.Process(ctx, node, errResult())
	}

	if len(dispatcher.sent) != 0 {
		t.Fatalf("muted node must not alert, got %v", dispatcher.sent)
	}
	if rotator.removals != 1 {
		t.Fatalf("muted node must still rotate, got %d removals", rotator.removals)
	}
}

func TestSeedFromPersistedState(t *testing.T) {
	node := testNode()
	node.Status = domain.StatusError
	engine, dispatcher, _, _ := newTestEngine(t, node)

	engine.counters.SeedFromPersistedState([]domain.Node{node}, 3)

	if count, ok := engine.counters.Get(node.ID); !ok || count != 3 {
		t.Fatalf("expected seeded count 3, got %d ok=%v", count, ok)
	}

	// The incident predates this process; the first OK resolves it.
	engine.Process(context.Background(), node, okResult())
	if got := dispatcher.countPrefix("|RESOLVED:"); got != 1 {
		t.Fatalf("expected resolved after seeded recovery, got %v", dispatcher.sent)
	}
}

func TestDeltaHistoryPersistedOnNotSynchronized(t *testing.T) {
	node := testNode()
	engine, _, _, store := newTestEngine(t, node)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		engine.Process(ctx, node, errResult())
	}

	stored, ok := store.GetNode(node.ID)
	if !ok {
		t.Fatal("node missing from store")
	}
	// Ring capped at the retrigger threshold (5).
	if len(stored.DeltaHistory) != 5 {
		t.Fatalf("expected delta ring of 5, got %d", len(stored.DeltaHistory))
	}
	if stored.Status != domain.StatusError || stored.Condition != domain.ConditionNotSynchronized {
		t.Fatalf("unexpected persisted state %s/%s", stored.Status, stored.Condition)
	}
}

func TestPNFPolicyNormalizesDispatchConditions(t *testing.T) {
	pager := &fakeDispatcher{}
	policy := PNFPolicy{Pager: pager}

	node := testNode()
	node.Dispatch = true
	if got := policy.NormalizeCondition(node, domain.ConditionOffline); got != domain.ConditionNotSynchronized {
		t.Fatalf("expected OFFLINE normalized, got %s", got)
	}

	node.Dispatch = false
	if got := policy.NormalizeCondition(node, domain.ConditionOffline); got != domain.ConditionOffline {
		t.Fatalf("non-dispatch node must pass through, got %s", got)
	}

	frontend := testNode()
	frontend.Dispatch = true
	frontend.Frontend = true
	policy.OnTrigger(context.Background(), frontend, domain.MonitorEvent{
		Type:       domain.EventTrigger,
		Conditions: domain.ConditionNotSynchronized,
	})
	if len(pager.incidents) != 1 {
		t.Fatalf("expected urgent incident for dispatch frontend, got %v", pager.incidents)
	}
}
