package journal

import (
	"time"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/shared/id"
)

// Alert kinds raised by the security monitor
const (
	KindSensitiveSubmit = "SensitiveSubmit"
	KindPotentialXSS    = "PotentialXSS"
	KindClickStorm      = "ClickStorm"
)

// Record is one observed event. Controller-side records (workflow and tab
// lifecycle) use namespaced names such as "workflow:assert".
type Record struct {
	ID        id.EventID     `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ContextID string         `json:"sourceContextId"`
	Event     string         `json:"eventName"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewRecord stamps a record with a fresh id and the current time
func NewRecord(contextID, event string, payload map[string]any) Record {
	return Record{
		ID:        id.NewEventID(),
		Timestamp: time.Now(),
		ContextID: contextID,
		Event:     event,
		Payload:   payload,
	}
}

// Alert is a security finding
type Alert struct {
	ID        id.AlertID `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	ContextID string     `json:"sourceContextId"`
	Kind      string     `json:"kind"`
	Detail    string     `json:"detail"`
	EventID   id.EventID `json:"eventId,omitempty"`
}

// NewAlert stamps an alert raised by record
func NewAlert(record Record, kind, detail string) Alert {
	return Alert{
		ID:        id.NewAlertID(),
		Timestamp: record.Timestamp,
		ContextID: record.ContextID,
		Kind:      kind,
		Detail:    detail,
		EventID:   record.ID,
	}
}
