package monitor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
)

// Rule inspects one record and returns the details of any findings
type Rule interface {
	Kind() string
	Evaluate(rec journal.Record) []string
}

// sensitiveSubmit flags submissions carrying password-like fields
type sensitiveSubmit struct {
	clean func(string) string
}

func (r *sensitiveSubmit) Kind() string { return journal.KindSensitiveSubmit }

func (r *sensitiveSubmit) Evaluate(rec journal.Record) []string {
	if rec.Event != protocol.EventFormSubmit {
		return nil
	}
	var fields []string
	for _, name := range sortedKeys(rec.Payload) {
		if strings.Contains(strings.ToLower(name), "pass") {
			fields = append(fields, r.clean(name))
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return []string{fmt.Sprintf("Form submitted with sensitive field(s): %s", strings.Join(fields, ", "))}
}

// potentialXSS flags submissions whose values carry a script tag
type potentialXSS struct {
	clean func(string) string
}

const scriptMarker = "<script"

func (r *potentialXSS) Kind() string { return journal.KindPotentialXSS }

func (r *potentialXSS) Evaluate(rec journal.Record) []string {
	if rec.Event != protocol.EventFormSubmit {
		return nil
	}

	keys := sortedKeys(rec.Payload)
	var joined strings.Builder
	for _, k := range keys {
		joined.WriteString(stringify(rec.Payload[k]))
	}
	if !strings.Contains(joined.String(), scriptMarker) {
		return nil
	}

	var fields []string
	for _, k := range keys {
		if strings.Contains(stringify(rec.Payload[k]), scriptMarker) {
			fields = append(fields, r.clean(k))
		}
	}
	if len(fields) == 0 {
		// the marker spans a value boundary
		return []string{"Form submission contains a script tag across fields"}
	}
	return []string{fmt.Sprintf("Form submission contains a script tag in: %s", strings.Join(fields, ", "))}
}

// clickStorm flags bursts of clicks inside a trailing window
type clickStorm struct {
	window    time.Duration
	threshold int
	clicks    []time.Time // ascending, trimmed to the window
}

func (r *clickStorm) Kind() string { return journal.KindClickStorm }

func (r *clickStorm) Evaluate(rec journal.Record) []string {
	if rec.Event != protocol.EventClick {
		return nil
	}

	now := rec.Timestamp
	cutoff := now.Add(-r.window)
	drop := 0
	for drop < len(r.clicks) && r.clicks[drop].Before(cutoff) {
		drop++
	}
	r.clicks = append(r.clicks[drop:], now)

	if len(r.clicks) < r.threshold {
		return nil
	}
	return []string{fmt.Sprintf("%d clicks within %s", len(r.clicks), r.window)}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
