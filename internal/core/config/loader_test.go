package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  url: postgres://localhost/warden
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Monitor.Interval.Std() != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", cfg.Monitor.Interval)
	}
	if cfg.Monitor.TriggerThreshold != 6 || cfg.Monitor.RetriggerThreshold != 20 {
		t.Errorf("unexpected default thresholds %d/%d",
			cfg.Monitor.TriggerThreshold, cfg.Monitor.RetriggerThreshold)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.LoadBalancer.AgentPort != 3001 {
		t.Errorf("expected default agent port 3001, got %d", cfg.LoadBalancer.AgentPort)
	}
	if cfg.LoadBalancer.Timeout.Std() != 10*time.Second {
		t.Errorf("expected default lb timeout 10s, got %v", cfg.LoadBalancer.Timeout)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("WARDEN_DB_URL", "postgres://db.internal/warden")

	cfg, err := Load(writeConfig(t, `
database:
  url: ${WARDEN_DB_URL}
monitor:
  interval: 10s
  trigger_threshold: 3
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.URL != "postgres://db.internal/warden" {
		t.Errorf("env not expanded: %s", cfg.Database.URL)
	}
	if cfg.Monitor.Interval.Std() != 10*time.Second || cfg.Monitor.TriggerThreshold != 3 {
		t.Errorf("explicit values overridden: %+v", cfg.Monitor)
	}
}

func TestLoadTestModeRequiresDomain(t *testing.T) {
	_, err := Load(writeConfig(t, `
load_balancer:
  test_mode: true
`))
	if err == nil {
		t.Fatal("expected error for test_mode without test_domain")
	}
}
