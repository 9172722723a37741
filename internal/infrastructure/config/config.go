package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Fixtures  FixtureConfig
	Workflow  WorkflowConfig
	Monitor   MonitorConfig
	Journal   JournalConfig
	Sandbox   SandboxConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string `envconfig:"PORT" default:"8000"`
	Host        string `envconfig:"HOST" default:"0.0.0.0"`
	InitFixture string `envconfig:"INIT_FIXTURE" default:"login"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// FixtureConfig holds fixture source configuration.
type FixtureConfig struct {
	Catalog string        `envconfig:"FIXTURE_CATALOG"`
	Timeout time.Duration `envconfig:"FIXTURE_TIMEOUT" default:"5s"`
}

// WorkflowConfig holds workflow engine configuration.
type WorkflowConfig struct {
	Dir           string        `envconfig:"WORKFLOW_DIR"`
	ReadyTimeout  time.Duration `envconfig:"WORKFLOW_READY_TIMEOUT" default:"2500ms"`
	SettleDelay   time.Duration `envconfig:"WORKFLOW_SETTLE_DELAY" default:"200ms"`
	AssertTimeout time.Duration `envconfig:"WORKFLOW_ASSERT_TIMEOUT" default:"800ms"`
}

// MonitorConfig holds security monitor configuration.
type MonitorConfig struct {
	ClickWindow    time.Duration `envconfig:"MONITOR_CLICK_WINDOW" default:"800ms"`
	ClickThreshold int           `envconfig:"MONITOR_CLICK_THRESHOLD" default:"4"`
}

// JournalConfig holds event and alert log capacities.
type JournalConfig struct {
	EventCapacity int `envconfig:"EVENT_LOG_CAPACITY" default:"10000"`
	AlertCapacity int `envconfig:"ALERT_LOG_CAPACITY" default:"2000"`
}

// SandboxConfig holds fixture script execution limits.
type SandboxConfig struct {
	ScriptTimeout time.Duration `envconfig:"SCRIPT_TIMEOUT" default:"2s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Monitor.ClickThreshold < 1:
		return fmt.Errorf("MONITOR_CLICK_THRESHOLD must be at least 1")
	case c.Monitor.ClickWindow <= 0:
		return fmt.Errorf("MONITOR_CLICK_WINDOW must be positive")
	case c.Journal.EventCapacity < 1 || c.Journal.AlertCapacity < 1:
		return fmt.Errorf("log capacities must be at least 1")
	case c.Workflow.ReadyTimeout <= 0 || c.Workflow.AssertTimeout <= 0:
		return fmt.Errorf("workflow timeouts must be positive")
	case c.Workflow.SettleDelay < 0:
		return fmt.Errorf("WORKFLOW_SETTLE_DELAY must not be negative")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			InitFixture: "login",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Fixtures: FixtureConfig{
			Timeout: 5 * time.Second,
		},
		Workflow: WorkflowConfig{
			ReadyTimeout:  2500 * time.Millisecond,
			SettleDelay:   200 * time.Millisecond,
			AssertTimeout: 800 * time.Millisecond,
		},
		Monitor: MonitorConfig{
			ClickWindow:    800 * time.Millisecond,
			ClickThreshold: 4,
		},
		Journal: JournalConfig{
			EventCapacity: 10000,
			AlertCapacity: 2000,
		},
		Sandbox: SandboxConfig{
			ScriptTimeout: 2 * time.Second,
		},
	}
}
