package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if cfg.LoadBalancer.Rotation.TestMode && cfg.LoadBalancer.Rotation.TestDomain == "" {
		return nil, fmt.Errorf("test_mode requires test_domain")
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Monitor.Interval == 0 {
		cfg.Monitor.Interval = Duration(30 * time.Second)
	}
	if cfg.Monitor.TriggerThreshold == 0 {
		cfg.Monitor.TriggerThreshold = 6
	}
	if cfg.Monitor.RetriggerThreshold == 0 {
		cfg.Monitor.RetriggerThreshold = 20
	}
	if cfg.Monitor.DispatchPolicy == "" {
		cfg.Monitor.DispatchPolicy = "none"
	}
	if cfg.Monitor.MigrationsDir == "" {
		cfg.Monitor.MigrationsDir = "migrations"
	}
	if cfg.LoadBalancer.AgentPort == 0 {
		cfg.LoadBalancer.AgentPort = 3001
	}
	if cfg.LoadBalancer.Timeout == 0 {
		cfg.LoadBalancer.Timeout = Duration(10 * time.Second)
	}
}
