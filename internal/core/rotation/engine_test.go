package rotation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"nodewarden/internal/core/domain"
	"nodewarden/internal/infra/lbagent"
)

// fakeAgent scripts per-host answers and records state-changing calls.
type fakeAgent struct {
	mu       sync.Mutex
	statuses map[string]bool
	counts   map[string]lbagent.Count
	failOn   map[string]error

	enabled  []string
	disabled []string
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{
		statuses: make(map[string]bool),
		counts:   make(map[string]lbagent.Count),
		failOn:   make(map[string]error),
	}
}

func (f *fakeAgent) ServerStatus(_ context.Context, host, _, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[host]; err != nil {
		return false, err
	}
	return f.statuses[host], nil
}

func (f *fakeAgent) Enable(_ context.Context, host, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[host]; err != nil {
		return err
	}
	f.enabled = append(f.enabled, host)
	return nil
}

func (f *fakeAgent) Disable(_ context.Context, host, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[host]; err != nil {
		return err
	}
	f.disabled = append(f.disabled, host)
	return nil
}

func (f *fakeAgent) Count(_ context.Context, host, _ string) (lbagent.Count, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[host]; err != nil {
		return lbagent.Count{}, err
	}
	return f.counts[host], nil
}

var testHosts = []string{"lb-1", "lb-2"}

func TestDisableRefusedAtSafetyFloor(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["lb-1"] = lbagent.Count{Online: 1, Total: 3}
	agent.counts["lb-2"] = lbagent.Count{Online: 1, Total: 3}
	engine := NewEngine(agent, Config{})

	ok, err := engine.DisableServer(context.Background(), "backend", "2a", testHosts, false)
	if err != nil {
		t.Fatalf("safety refusal must not be an error: %v", err)
	}
	if ok {
		t.Fatal("expected refusal at one online server")
	}
	if len(agent.disabled) != 0 {
		t.Fatalf("refusal must issue no disable calls, got %v", agent.disabled)
	}
}

func TestDisableManualBypassesSafety(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["lb-1"] = lbagent.Count{Online: 1, Total: 3}
	agent.counts["lb-2"] = lbagent.Count{Online: 1, Total: 3}
	engine := NewEngine(agent, Config{})

	ok, err := engine.DisableServer(context.Background(), "backend", "2a", testHosts, true)
	if err != nil || !ok {
		t.Fatalf("manual disable failed: ok=%v err=%v", ok, err)
	}
	if len(agent.disabled) != 2 {
		t.Fatalf("expected disable on both load balancers, got %v", agent.disabled)
	}
}

func TestDisableSucceedsAboveFloor(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["lb-1"] = lbagent.Count{Online: 2, Total: 3}
	agent.counts["lb-2"] = lbagent.Count{Online: 2, Total: 3}
	engine := NewEngine(agent, Config{})

	ok, err := engine.DisableServer(context.Background(), "backend", "2a", testHosts, false)
	if err != nil || !ok {
		t.Fatalf("disable failed: ok=%v err=%v", ok, err)
	}
	if len(agent.disabled) != 2 {
		t.Fatalf("expected unanimous disable, got %v", agent.disabled)
	}
}

func TestDisablePartialFailurePropagates(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["lb-1"] = lbagent.Count{Online: 2, Total: 3}
	agent.counts["lb-2"] = lbagent.Count{Online: 2, Total: 3}
	agent.failOn["lb-2"] = errors.New("agent unreachable")
	// Count also fails on lb-2, so use manual to reach the fan-out.
	engine := NewEngine(agent, Config{})

	ok, err := engine.DisableServer(context.Background(), "backend", "2a", testHosts, true)
	if ok || err == nil {
		t.Fatalf("expected partial failure to propagate, got ok=%v", ok)
	}
	if !strings.Contains(err.Error(), "backend/2a") {
		t.Errorf("error should name destination and server: %v", err)
	}
}

func TestStatusConsensus(t *testing.T) {
	agent := newFakeAgent()
	hosts := []string{"lb-1", "lb-2", "lb-3"}
	agent.statuses["lb-1"] = true
	agent.statuses["lb-2"] = true
	agent.statuses["lb-3"] = true
	engine := NewEngine(agent, Config{})

	status, err := engine.GetServerStatus(context.Background(), "backend", "2a", hosts)
	if err != nil || status != StatusOnline {
		t.Fatalf("expected ONLINE, got %s err=%v", status, err)
	}

	// Two against one is still ambiguous.
	agent.statuses["lb-2"] = false
	status, _ = engine.GetServerStatus(context.Background(), "backend", "2a", hosts)
	if status != StatusError {
		t.Fatalf("expected ERROR on disagreement, got %s", status)
	}

	agent.statuses["lb-1"] = false
	agent.statuses["lb-3"] = false
	status, err = engine.GetServerStatus(context.Background(), "backend", "2a", hosts)
	if err != nil || status != StatusOffline {
		t.Fatalf("expected OFFLINE, got %s err=%v", status, err)
	}
}

func TestCountConsensus(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["lb-1"] = lbagent.Count{Online: 2, Total: 3}
	agent.counts["lb-2"] = lbagent.Count{Online: 3, Total: 3}
	engine := NewEngine(agent, Config{})

	_, err := engine.GetServerCount(context.Background(), "backend", testHosts)
	if !errors.Is(err, ErrCountConflict) {
		t.Fatalf("expected ErrCountConflict, got %v", err)
	}

	agent.counts["lb-2"] = lbagent.Count{Online: 2, Total: 3}
	count, err := engine.GetServerCount(context.Background(), "backend", testHosts)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count.Online != 2 || count.Total != 3 {
		t.Fatalf("unexpected count %+v", count)
	}
}

func TestEnableSkipsWhenOnline(t *testing.T) {
	agent := newFakeAgent()
	agent.statuses["lb-1"] = true
	agent.statuses["lb-2"] = true
	engine := NewEngine(agent, Config{})

	ok, err := engine.EnableServer(context.Background(), "backend", "2a", testHosts, false)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if ok || len(agent.enabled) != 0 {
		t.Fatalf("expected skip for already-online server, ok=%v calls=%v", ok, agent.enabled)
	}
}

func TestEnableAmbiguousStatusErrors(t *testing.T) {
	agent := newFakeAgent()
	agent.statuses["lb-1"] = true
	agent.statuses["lb-2"] = false
	engine := NewEngine(agent, Config{})

	ok, err := engine.EnableServer(context.Background(), "backend", "2a", testHosts, false)
	if ok || !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("expected status conflict, got ok=%v err=%v", ok, err)
	}
	if len(agent.enabled) != 0 {
		t.Fatal("ambiguous state must not be acted on")
	}
}

func TestEnableWhenOffline(t *testing.T) {
	agent := newFakeAgent()
	engine := NewEngine(agent, Config{})

	ok, err := engine.EnableServer(context.Background(), "backend", "2a", testHosts, false)
	if err != nil || !ok {
		t.Fatalf("enable failed: ok=%v err=%v", ok, err)
	}
	if len(agent.enabled) != 2 {
		t.Fatalf("expected enable on both load balancers, got %v", agent.enabled)
	}
}

func TestTestModeRedirectsDestinations(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["test.local"] = lbagent.Count{Online: 2, Total: 2}
	engine := NewEngine(agent, Config{TestMode: true, TestDomain: "test.local"})

	node := domain.Node{
		Name:    "test/node-1",
		Backend: "backend",
		Server:  "2a",
		LoadBalancers: []domain.Host{
			{Name: "lb-prod", FQDN: "lb.example.com"},
		},
	}

	ok, err := engine.RemoveFromRotation(context.Background(), node)
	if err != nil || !ok {
		t.Fatalf("remove failed: ok=%v err=%v", ok, err)
	}
	for _, host := range agent.disabled {
		if host != "test.local" {
			t.Fatalf("production host contacted in test mode: %s", host)
		}
	}
	if len(agent.disabled) != 1 {
		t.Fatalf("expected exactly one redirected call, got %v", agent.disabled)
	}
}

func TestFrontendOnlineCountUsesPublicDomain(t *testing.T) {
	agent := newFakeAgent()
	agent.counts["frontend.example.com"] = lbagent.Count{Online: 4, Total: 5}
	engine := NewEngine(agent, Config{})

	node := domain.Node{
		Name:     "test/frontend-1",
		Backend:  "frontendpool",
		Frontend: true,
		URL:      "https://frontend.example.com:8080/v1",
	}

	online, err := engine.OnlineCount(context.Background(), node)
	if err != nil {
		t.Fatalf("frontend count: %v", err)
	}
	if online != 4 {
		t.Fatalf("expected 4 online, got %d", online)
	}
}
