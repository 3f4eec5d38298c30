// Package config loads the monitor's YAML configuration.
package config

import (
	"nodewarden/internal/core/rotation"
	"nodewarden/internal/infra/logsink"
	"nodewarden/internal/infra/storage/postgres"
)

// AppConfig is the top-level configuration.
type AppConfig struct {
	Server       ServerConfig        `yaml:"server"`
	Monitor      MonitorConfig       `yaml:"monitor"`
	Database     postgres.Config     `yaml:"database"`
	Redis        logsink.RedisConfig `yaml:"redis"`
	Alert        AlertConfig         `yaml:"alert"`
	LoadBalancer LBConfig            `yaml:"load_balancer"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds the status/metrics HTTP endpoint settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MonitorConfig drives the polling loop and escalation thresholds.
type MonitorConfig struct {
	// Interval is the per-node polling cadence. It also derives the RPC
	// probe timeout.
	Interval Duration `yaml:"interval"`
	// TriggerThreshold is the consecutive-error count before the first
	// alert fires.
	TriggerThreshold int `yaml:"trigger_threshold"`
	// RetriggerThreshold is the cadence of repeat alerts past the
	// trigger point; it also caps the delta-history ring.
	RetriggerThreshold int `yaml:"retrigger_threshold"`
	// DispatchPolicy selects the deployment policy hook: "none" or "pnf".
	DispatchPolicy string `yaml:"dispatch_policy"`
	// MigrationsDir is where the goose inventory migrations live.
	MigrationsDir string `yaml:"migrations_dir"`
}

// AlertConfig holds the notification channel settings.
type AlertConfig struct {
	DiscordDefaultWebhook string `yaml:"discord_default_webhook"`
	PagerDutyRoutingKey   string `yaml:"pagerduty_routing_key"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LBConfig holds load-balancer agent settings.
type LBConfig struct {
	// AgentPort is the webhook port the agents listen on.
	AgentPort int `yaml:"agent_port"`
	// Timeout bounds each control call, independent of the monitor
	// interval.
	Timeout  Duration        `yaml:"timeout"`
	Rotation rotation.Config `yaml:",inline"`
}
