package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/monitor"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/tabs"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/workflow"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/fixtures"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	tabs         *tabs.Manager
	hub          *events.Hub
	engine       *workflow.Engine
	library      *workflow.Library
	catalog      *fixtures.Catalog
	monitor      *monitor.Monitor
	metrics      *monitoring.Metrics
	logger       *zap.Logger
	replyTimeout time.Duration
	started      time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(
	manager *tabs.Manager,
	hub *events.Hub,
	engine *workflow.Engine,
	library *workflow.Library,
	catalog *fixtures.Catalog,
	mon *monitor.Monitor,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		tabs:         manager,
		hub:          hub,
		engine:       engine,
		library:      library,
		catalog:      catalog,
		monitor:      mon,
		metrics:      metrics,
		logger:       logger,
		replyTimeout: workflow.DefaultConfig().AssertTimeout,
		started:      time.Now(),
	}
}

// WithReplyTimeout bounds how long awaited manual commands wait
func (h *Handlers) WithReplyTimeout(d time.Duration) *Handlers {
	if d > 0 {
		h.replyTimeout = d
	}
	return h
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Agentic Browser Sandbox",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snap := h.tabs.Snapshot()

	running := 0
	for _, r := range h.engine.List() {
		if r.State == workflow.StateRunning {
			running++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.started).Seconds(),
		"contexts": gin.H{
			"open":   len(snap.Tabs),
			"active": snap.ActiveID,
		},
		"journal":   h.hub.Journal().Stats(),
		"workflows": gin.H{"running": running, "library": len(h.library.List())},
		"monitor":   gin.H{"rules": h.monitor.Kinds()},
	})
}

// MetricsJSON returns the metrics snapshot as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// fail maps domain errors to HTTP statuses
func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tabs.ErrNotFound),
		errors.Is(err, fixtures.ErrUnknownFixture),
		errors.Is(err, workflow.ErrRunNotFound),
		errors.Is(err, workflow.ErrUnknownWorkflow):
		return http.StatusNotFound
	case errors.Is(err, tabs.ErrNotLoaded),
		errors.Is(err, tabs.ErrSuperseded),
		errors.Is(err, workflow.ErrNoActiveContext),
		errors.Is(err, workflow.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidWorkflow),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, fixtures.ErrNotMarkup),
		errors.Is(err, fixtures.ErrTooLarge),
		fixtures.IsFetchError(err):
		return http.StatusBadGateway
	case errors.Is(err, errNoReply):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
