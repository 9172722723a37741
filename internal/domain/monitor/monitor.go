package monitor

import (
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
)

// Config defines rule thresholds
type Config struct {
	ClickWindow    time.Duration
	ClickThreshold int
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		ClickWindow:    800 * time.Millisecond,
		ClickThreshold: 4,
	}
}

// Monitor evaluates every rule against each record
type Monitor struct {
	mu    sync.Mutex
	rules []Rule
}

// New creates a monitor with the built-in rules
func New(cfg Config) *Monitor {
	if cfg.ClickWindow <= 0 {
		cfg.ClickWindow = DefaultConfig().ClickWindow
	}
	if cfg.ClickThreshold <= 0 {
		cfg.ClickThreshold = DefaultConfig().ClickThreshold
	}

	// field names come from untrusted documents and end up in alert text
	policy := bluemonday.StrictPolicy()
	clean := policy.Sanitize

	return &Monitor{
		rules: []Rule{
			&sensitiveSubmit{clean: clean},
			&potentialXSS{clean: clean},
			&clickStorm{window: cfg.ClickWindow, threshold: cfg.ClickThreshold},
		},
	}
}

// Evaluate runs every rule against rec and returns the raised alerts
func (m *Monitor) Evaluate(rec journal.Record) []journal.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var alerts []journal.Alert
	for _, rule := range m.rules {
		for _, detail := range rule.Evaluate(rec) {
			alerts = append(alerts, journal.NewAlert(rec, rule.Kind(), detail))
		}
	}
	return alerts
}

// Kinds lists the alert kinds this monitor can raise
func (m *Monitor) Kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make([]string, 0, len(m.rules))
	for _, rule := range m.rules {
		kinds = append(kinds, rule.Kind())
	}
	return kinds
}
