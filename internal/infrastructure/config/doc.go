// Package config provides 12-factor configuration for the browser sandbox.
//
// Configuration is loaded from environment variables with sensible defaults.
// cmd/server reads a .env file first when one is present.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host, fixture opened at start)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Fixtures: Optional TOML catalog and fetch timeout
//   - Workflow: Workflow directory and engine waits
//   - Monitor: Click storm window and threshold
//   - Journal: Event and alert log capacities
//   - Sandbox: Fixture script time limit
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, INIT_FIXTURE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - FIXTURE_CATALOG, FIXTURE_TIMEOUT
//   - WORKFLOW_DIR, WORKFLOW_READY_TIMEOUT, WORKFLOW_SETTLE_DELAY, WORKFLOW_ASSERT_TIMEOUT
//   - MONITOR_CLICK_WINDOW, MONITOR_CLICK_THRESHOLD
//   - EVENT_LOG_CAPACITY, ALERT_LOG_CAPACITY
//   - SCRIPT_TIMEOUT
package config
