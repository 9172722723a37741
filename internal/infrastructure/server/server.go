package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/api/http"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/api/middleware"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/api/ws"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/monitor"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/tabs"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/workflow"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/browser/agent"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/fixtures"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *nethttp.Server
	hub     *events.Hub
	tabs    *tabs.Manager
	engine  *workflow.Engine
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing Agentic Browser Sandbox",
		zap.String("port", cfg.Server.Port),
		zap.String("fixture_catalog", cfg.Fixtures.Catalog),
		zap.String("workflow_dir", cfg.Workflow.Dir),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New(logger.Component(logging.HTTP), 1000)

	// Event intake: journal and security monitor behind one hub
	mon := monitor.New(monitor.Config{
		ClickWindow:    cfg.Monitor.ClickWindow,
		ClickThreshold: cfg.Monitor.ClickThreshold,
	})
	hub := events.NewHub(
		journal.New(cfg.Journal.EventCapacity, cfg.Journal.AlertCapacity),
		mon,
		logger.Component(logging.Hub),
	).WithMetrics(metrics)

	// Fixture source
	catalog := fixtures.NewCatalog()
	if cfg.Fixtures.Catalog != "" {
		loaded, err := fixtures.LoadCatalog(cfg.Fixtures.Catalog)
		if err != nil {
			hub.Close()
			tracer.Close()
			return nil, fmt.Errorf("failed to load fixture catalog: %w", err)
		}
		catalog = loaded
		logger.Info("Fixture catalog loaded", zap.Int("fixtures", len(catalog.List())))
	}
	loader := fixtures.NewLoader(catalog, fixtures.Config{Timeout: cfg.Fixtures.Timeout}, logger.Component(logging.Fixtures))
	loader.Observe = metrics.RecordFixtureFetch

	// Contexts run agent frames
	frameCfg := agent.DefaultConfig()
	frameCfg.Sandbox.Timeout = cfg.Sandbox.ScriptTimeout
	manager := tabs.NewManager(
		loader,
		hub,
		tabs.AgentLauncher(frameCfg, logger.Component(logging.Agent)),
		logger.Component(logging.Tabs),
	).WithMetrics(metrics)

	// Workflows
	library := workflow.NewLibrary()
	if err := library.Register(workflow.Sample()); err != nil {
		return nil, fmt.Errorf("failed to register sample workflow: %w", err)
	}
	if cfg.Workflow.Dir != "" {
		loadWorkflows(library, cfg.Workflow.Dir, logger)
	}

	engine := workflow.NewEngine(manager, hub, workflow.Config{
		ReadyTimeout:  cfg.Workflow.ReadyTimeout,
		SettleDelay:   cfg.Workflow.SettleDelay,
		AssertTimeout: cfg.Workflow.AssertTimeout,
		MaxRuns:       workflow.DefaultConfig().MaxRuns,
	}, logger.Component(logging.Workflow)).WithMetrics(metrics)

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	// Create handlers and register routes
	handlers := http.NewHandlers(manager, hub, engine, library, catalog, mon, metrics, logger.Component(logging.HTTP)).
		WithReplyTimeout(cfg.Workflow.AssertTimeout)
	wsHandler := ws.NewHandler(hub, metrics, logger.Component(logging.Stream))
	http.Register(router, handlers, wsHandler.HandleConnection)

	s := &Server{
		router: router,
		http: &nethttp.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		hub:     hub,
		tabs:    manager,
		engine:  engine,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}

	s.openInitial()

	logger.Info("Server initialized successfully")
	return s, nil
}

// loadWorkflows registers every workflow file under dir. Bad files are
// logged and skipped.
func loadWorkflows(library *workflow.Library, dir string, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	found, err := workflow.LoadDir(ctx, dir)
	if err != nil {
		logger.Warn("Some workflow files could not be loaded", zap.String("dir", dir), zap.Error(err))
	}
	for _, w := range found {
		if err := library.Register(w); err != nil {
			logger.Warn("Skipping workflow", zap.String("name", w.Name), zap.Error(err))
		}
	}
	logger.Info("Workflow library loaded", zap.Int("workflows", len(library.List())))
}

// openInitial opens the first context so the sandbox starts with one tab
func (s *Server) openInitial() {
	key := s.config.Server.InitFixture
	if key == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Fixtures.Timeout+time.Second)
	defer cancel()

	tab, err := s.tabs.Open(ctx, key)
	if err != nil {
		s.logger.Warn("Initial context opened without content",
			zap.String("context_id", tab.ID),
			zap.String("fixture", key),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Initial context opened", zap.String("context_id", tab.ID), zap.String("fixture", key))
}

// Router exposes the configured router
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until Shutdown is called. It returns nil after a graceful
// shutdown.
func (s *Server) Run() error {
	s.logger.Info("Server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, cancels running workflows and tears
// down every context
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(shutdownErr))
		err = fmt.Errorf("failed to shut down http server: %w", shutdownErr)
	}

	s.engine.Shutdown()
	s.logger.Info("Workflow runs stopped")

	s.tabs.Shutdown()
	s.hub.Close()
	s.logger.Info("Contexts closed", zap.Uint64("events_total", s.hub.Journal().Stats().EventsTotal))

	s.tracer.Close()
	_ = s.logger.Sync()

	return err
}
