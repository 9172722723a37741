package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// several can coexist in one process. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Context metrics
	ContextsOpen prometheus.Gauge
	FixtureLoads *prometheus.CounterVec
	FixtureFetch *prometheus.HistogramVec

	// Event intake metrics
	EventsTotal     *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	AlertsTotal     *prometheus.CounterVec
	IntakeQueueSize prometheus.Gauge

	// Workflow metrics
	WorkflowRuns     *prometheus.CounterVec
	WorkflowSteps    *prometheus.HistogramVec
	WorkflowAsserts  *prometheus.CounterVec
	WorkflowsRunning prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	OpenContexts      int64   `json:"openContexts"`
	TotalEvents       int64   `json:"totalEvents"`
	TotalAlerts       int64   `json:"totalAlerts"`
	ActiveConnections int64   `json:"activeConnections"`
	AvgResponseTime   float64 `json:"avgResponseTimeSeconds"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browser_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browser_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Context metrics
		ContextsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "browser_contexts_open",
				Help: "Number of open document contexts",
			},
		),
		FixtureLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_fixture_loads_total",
				Help: "Fixture loads by outcome (applied, superseded, failed)",
			},
			[]string{"outcome"},
		),
		FixtureFetch: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browser_fixture_fetch_duration_seconds",
				Help:    "Fixture fetch duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"key", "outcome"},
		),

		// Event intake metrics
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_events_total",
				Help: "Events appended to the log by name",
			},
			[]string{"event"},
		),
		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_events_dropped_total",
				Help: "Inbound messages dropped by reason",
			},
			[]string{"reason"},
		),
		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_alerts_total",
				Help: "Security alerts raised by kind",
			},
			[]string{"kind"},
		),
		IntakeQueueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "browser_intake_queue_size",
				Help: "Messages waiting for the event intake loop",
			},
		),

		// Workflow metrics
		WorkflowRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_workflow_runs_total",
				Help: "Workflow runs by final state",
			},
			[]string{"state"},
		),
		WorkflowSteps: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browser_workflow_step_duration_seconds",
				Help:    "Workflow step duration in seconds",
				Buckets: []float64{.001, .01, .05, .1, .2, .3, .5, .8, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		WorkflowAsserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_workflow_asserts_total",
				Help: "Workflow assertions by result",
			},
			[]string{"result"},
		),
		WorkflowsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "browser_workflows_running",
				Help: "Number of workflow runs in flight",
			},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "browser_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "browser_uptime_seconds",
			Help: "Backend uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing this collector
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetContextsOpen sets the number of open contexts
func (m *Metrics) SetContextsOpen(count int) {
	if m == nil {
		return
	}
	m.ContextsOpen.Set(float64(count))
	m.mu.Lock()
	m.snapshot.OpenContexts = int64(count)
	m.mu.Unlock()
}

// RecordFixtureLoad records the outcome of a context load
func (m *Metrics) RecordFixtureLoad(outcome string) {
	if m == nil {
		return
	}
	m.FixtureLoads.WithLabelValues(outcome).Inc()
}

// RecordFixtureFetch records one fixture fetch
func (m *Metrics) RecordFixtureFetch(key, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.FixtureFetch.WithLabelValues(key, outcome).Observe(duration.Seconds())
}

// RecordEvent records an event appended to the log
func (m *Metrics) RecordEvent(name string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(name).Inc()
	m.mu.Lock()
	m.snapshot.TotalEvents++
	m.mu.Unlock()
}

// RecordDropped records an inbound message that never reached the log
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordAlert records a raised alert
func (m *Metrics) RecordAlert(kind string) {
	if m == nil {
		return
	}
	m.AlertsTotal.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.TotalAlerts++
	m.mu.Unlock()
}

// SetIntakeQueue sets the intake backlog
func (m *Metrics) SetIntakeQueue(size int) {
	if m == nil {
		return
	}
	m.IntakeQueueSize.Set(float64(size))
}

// RecordWorkflowRun records a finished run
func (m *Metrics) RecordWorkflowRun(state string) {
	if m == nil {
		return
	}
	m.WorkflowRuns.WithLabelValues(state).Inc()
}

// RecordWorkflowStep records one step duration
func (m *Metrics) RecordWorkflowStep(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.WorkflowSteps.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordAssert records an assertion result
func (m *Metrics) RecordAssert(ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "pass"
	}
	m.WorkflowAsserts.WithLabelValues(result).Inc()
}

// IncWorkflowsRunning increments the in-flight run gauge
func (m *Metrics) IncWorkflowsRunning() {
	if m == nil {
		return
	}
	m.WorkflowsRunning.Inc()
}

// DecWorkflowsRunning decrements the in-flight run gauge
func (m *Metrics) DecWorkflowsRunning() {
	if m == nil {
		return
	}
	m.WorkflowsRunning.Dec()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	if snap.TotalRequests > 0 {
		snap.AvgResponseTime = snap.totalDuration / float64(snap.TotalRequests)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
