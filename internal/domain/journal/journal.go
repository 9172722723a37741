package journal

// Query narrows a log read
type Query struct {
	Limit     int
	ContextID string
	Name      string // event name or alert kind
}

// Journal is the pair of event and alert logs
type Journal struct {
	events *Ring[Record]
	alerts *Ring[Alert]
}

// New creates a journal with the given capacities
func New(eventCapacity, alertCapacity int) *Journal {
	return &Journal{
		events: NewRing[Record](eventCapacity),
		alerts: NewRing[Alert](alertCapacity),
	}
}

// AppendEvent records an event
func (j *Journal) AppendEvent(r Record) {
	j.events.Append(r)
}

// AppendAlert records an alert
func (j *Journal) AppendAlert(a Alert) {
	j.alerts.Append(a)
}

// Events returns matching records, most recent first
func (j *Journal) Events(q Query) []Record {
	if q.ContextID == "" && q.Name == "" {
		return j.events.Recent(q.Limit)
	}
	return j.events.Filter(q.Limit, func(r Record) bool {
		return (q.ContextID == "" || r.ContextID == q.ContextID) &&
			(q.Name == "" || r.Event == q.Name)
	})
}

// Alerts returns matching alerts, most recent first
func (j *Journal) Alerts(q Query) []Alert {
	if q.ContextID == "" && q.Name == "" {
		return j.alerts.Recent(q.Limit)
	}
	return j.alerts.Filter(q.Limit, func(a Alert) bool {
		return (q.ContextID == "" || a.ContextID == q.ContextID) &&
			(q.Name == "" || a.Kind == q.Name)
	})
}

// Stats summarizes log sizes
type Stats struct {
	Events      int    `json:"events"`
	EventsTotal uint64 `json:"eventsTotal"`
	Alerts      int    `json:"alerts"`
	AlertsTotal uint64 `json:"alertsTotal"`
}

// Stats returns current log sizes
func (j *Journal) Stats() Stats {
	return Stats{
		Events:      j.events.Len(),
		EventsTotal: j.events.Total(),
		Alerts:      j.alerts.Len(),
		AlertsTotal: j.alerts.Total(),
	}
}
