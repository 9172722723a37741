package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "login", cfg.Server.InitFixture)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Workflow config
	assert.Equal(t, 2500*time.Millisecond, cfg.Workflow.ReadyTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Workflow.SettleDelay)
	assert.Equal(t, 800*time.Millisecond, cfg.Workflow.AssertTimeout)

	// Monitor config
	assert.Equal(t, 800*time.Millisecond, cfg.Monitor.ClickWindow)
	assert.Equal(t, 4, cfg.Monitor.ClickThreshold)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	// envconfig defaults and Default() must agree
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                    "9000",
		"HOST":                    "127.0.0.1",
		"LOG_LEVEL":               "debug",
		"LOG_DEV":                 "true",
		"RATE_LIMIT_RPS":          "500",
		"RATE_LIMIT_BURST":        "1000",
		"RATE_LIMIT_ENABLED":      "false",
		"FIXTURE_CATALOG":         "/etc/fixtures.toml",
		"FIXTURE_TIMEOUT":         "1s",
		"WORKFLOW_DIR":            "/srv/workflows",
		"WORKFLOW_READY_TIMEOUT":  "4s",
		"WORKFLOW_SETTLE_DELAY":   "50ms",
		"WORKFLOW_ASSERT_TIMEOUT": "2s",
		"MONITOR_CLICK_WINDOW":    "1s",
		"MONITOR_CLICK_THRESHOLD": "6",
		"EVENT_LOG_CAPACITY":      "50",
		"ALERT_LOG_CAPACITY":      "5",
		"SCRIPT_TIMEOUT":          "500ms",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "/etc/fixtures.toml", cfg.Fixtures.Catalog)
	assert.Equal(t, time.Second, cfg.Fixtures.Timeout)
	assert.Equal(t, "/srv/workflows", cfg.Workflow.Dir)
	assert.Equal(t, 4*time.Second, cfg.Workflow.ReadyTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Workflow.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Workflow.AssertTimeout)
	assert.Equal(t, time.Second, cfg.Monitor.ClickWindow)
	assert.Equal(t, 6, cfg.Monitor.ClickThreshold)
	assert.Equal(t, 50, cfg.Journal.EventCapacity)
	assert.Equal(t, 5, cfg.Journal.AlertCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.Sandbox.ScriptTimeout)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Verify overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Verify default values still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 4, cfg.Monitor.ClickThreshold)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "malformed duration", key: "WORKFLOW_SETTLE_DELAY", value: "soon"},
		{name: "malformed number", key: "MONITOR_CLICK_THRESHOLD", value: "many"},
		{name: "zero threshold", key: "MONITOR_CLICK_THRESHOLD", value: "0"},
		{name: "zero window", key: "MONITOR_CLICK_WINDOW", value: "0s"},
		{name: "empty event log", key: "EVENT_LOG_CAPACITY", value: "0"},
		{name: "negative settle", key: "WORKFLOW_SETTLE_DELAY", value: "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestRateLimitConfig(t *testing.T) {
	tests := []struct {
		name        string
		rps         string
		burst       string
		enabled     string
		wantRPS     int
		wantBurst   int
		wantEnabled bool
	}{
		{
			name:        "default values",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: true,
		},
		{
			name:        "high limits",
			rps:         "1000",
			burst:       "2000",
			wantRPS:     1000,
			wantBurst:   2000,
			wantEnabled: true,
		},
		{
			name:        "disabled",
			enabled:     "false",
			wantRPS:     100,
			wantBurst:   200,
			wantEnabled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rps != "" {
				t.Setenv("RATE_LIMIT_RPS", tt.rps)
			}
			if tt.burst != "" {
				t.Setenv("RATE_LIMIT_BURST", tt.burst)
			}
			if tt.enabled != "" {
				t.Setenv("RATE_LIMIT_ENABLED", tt.enabled)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantRPS, cfg.RateLimit.RequestsPerSecond)
			assert.Equal(t, tt.wantBurst, cfg.RateLimit.Burst)
			assert.Equal(t, tt.wantEnabled, cfg.RateLimit.Enabled)
		})
	}
}
