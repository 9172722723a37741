package tabs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/browser/agent"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/fixtures"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/shared/id"
)

// Load outcomes reported to metrics
const (
	outcomeApplied    = "applied"
	outcomeSuperseded = "superseded"
	outcomeFailed     = "failed"
)

type tab struct {
	Tab
	requested uint64 // sequence of the newest requested load
	applied   uint64 // sequence of the load currently shown
	frame     Frame
	sub       *events.Subscription // subscription the current frame posts to
}

// Manager orchestrates context lifecycle
type Manager struct {
	mu       sync.RWMutex
	tabs     map[string]*tab // Protected by mu
	order    []string        // creation order, protected by mu
	activeID string          // Protected by mu

	source  fixtures.Source
	hub     *events.Hub
	launch  Launcher
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewManager creates a context manager
func NewManager(source fixtures.Source, hub *events.Hub, launch Launcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if launch == nil {
		launch = AgentLauncher(agent.DefaultConfig(), logger)
	}
	return &Manager{
		tabs:   make(map[string]*tab),
		source: source,
		hub:    hub,
		launch: launch,
		logger: logger,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Open creates a context, makes it active and loads fixtureKey into it. The
// context exists even when the load fails.
func (m *Manager) Open(ctx context.Context, fixtureKey string) (Tab, error) {
	t := &tab{Tab: Tab{
		ID:         id.NewTabID().String(),
		FixtureKey: fixtureKey,
		Title:      fixtureKey,
		CreatedAt:  time.Now(),
	}}

	m.mu.Lock()
	m.tabs[t.ID] = t
	m.order = append(m.order, t.ID)
	m.activeID = t.ID
	m.metrics.SetContextsOpen(len(m.tabs))
	m.mu.Unlock()

	m.logger.Info("Context opened", zap.String("context_id", t.ID), zap.String("fixture", fixtureKey))

	err := m.LoadFixture(ctx, t.ID, fixtureKey)
	current, _ := m.Get(t.ID)
	return current, err
}

// LoadFixture fetches fixtureKey and replaces the context's document in
// place. Stale completions return ErrSuperseded; fetch failures keep the
// previous content and return a *fixtures.FetchError.
func (m *Manager) LoadFixture(ctx context.Context, contextID, fixtureKey string) error {
	m.mu.Lock()
	t, ok := m.tabs[contextID]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	t.requested++
	seq := t.requested
	m.mu.Unlock()

	markup, err := m.source.Fetch(ctx, fixtureKey)
	if err != nil {
		m.metrics.RecordFixtureLoad(outcomeFailed)
		m.logger.Warn("Fixture load failed",
			zap.String("context_id", contextID),
			zap.String("fixture", fixtureKey),
			zap.Error(err),
		)
		return err
	}

	instrumented, err := agent.Instrument(markup)
	if err != nil {
		m.metrics.RecordFixtureLoad(outcomeFailed)
		return fmt.Errorf("instrument %s: %w", fixtureKey, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok = m.tabs[contextID]
	if !ok {
		return ErrNotFound
	}
	if seq <= t.applied {
		m.metrics.RecordFixtureLoad(outcomeSuperseded)
		m.logger.Debug("Discarded stale load",
			zap.String("context_id", contextID),
			zap.String("fixture", fixtureKey),
			zap.Uint64("seq", seq),
			zap.Uint64("applied", t.applied),
		)
		return ErrSuperseded
	}

	sub := m.hub.Attach(contextID)
	frame, err := m.launch(contextID, instrumented, sub, sub.Loaded)
	if err != nil {
		// the previous document is still running and must stay connected
		if t.sub != nil {
			m.hub.Restore(t.sub)
		}
		m.metrics.RecordFixtureLoad(outcomeFailed)
		return fmt.Errorf("start document for %s: %w", contextID, err)
	}

	if t.frame != nil {
		t.frame.Close()
	}
	t.frame = frame
	t.sub = sub
	t.applied = seq
	t.FixtureKey = fixtureKey
	t.Title = titleOf(instrumented, fixtureKey)
	t.Content = instrumented
	t.LoadedAt = time.Now()
	t.Loads++

	m.metrics.RecordFixtureLoad(outcomeApplied)
	m.logger.Info("Fixture loaded",
		zap.String("context_id", contextID),
		zap.String("fixture", fixtureKey),
		zap.Uint64("seq", seq),
	)
	return nil
}

// Close destroys a context. Focus falls back to the first remaining context
// in creation order.
func (m *Manager) Close(contextID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tabs[contextID]
	if !ok {
		return false
	}

	if t.frame != nil {
		t.frame.Close()
	}
	m.hub.Detach(contextID)
	delete(m.tabs, contextID)
	for i, other := range m.order {
		if other == contextID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.activeID == contextID {
		m.activeID = ""
		if len(m.order) > 0 {
			m.activeID = m.order[0]
		}
	}

	m.metrics.SetContextsOpen(len(m.tabs))
	m.logger.Info("Context closed", zap.String("context_id", contextID), zap.String("active", m.activeID))
	return true
}

// SetActive focuses a context. Unknown ids are ignored.
func (m *Manager) SetActive(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tabs[contextID]; ok {
		m.activeID = contextID
	}
}

// ActiveID returns the active context id, empty when none exist
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Exists reports whether contextID is open
func (m *Manager) Exists(contextID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tabs[contextID]
	return ok
}

// Get returns a copy of one context
func (m *Manager) Get(contextID string) (Tab, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tabs[contextID]
	if !ok {
		return Tab{}, false
	}
	return t.Tab, true
}

// Snapshot returns copies of every context in creation order
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := Snapshot{Tabs: make([]Tab, 0, len(m.order)), ActiveID: m.activeID}
	for _, contextID := range m.order {
		out.Tabs = append(out.Tabs, m.tabs[contextID].Tab)
	}
	return out
}

// Send posts a command to a context's document. port may be nil.
func (m *Manager) Send(contextID string, cmd protocol.Command, port *protocol.Port) error {
	data, err := protocol.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	frame, err := m.frame(contextID)
	if err != nil {
		if port != nil {
			port.Close()
		}
		return err
	}
	frame.PostMessage(protocol.Message{Data: data, Port: port})
	return nil
}

// Render returns the live markup of a context's document
func (m *Manager) Render(ctx context.Context, contextID string) (string, error) {
	frame, err := m.frame(contextID)
	if err != nil {
		return "", err
	}
	return frame.Snapshot(ctx)
}

// Shutdown closes every context
func (m *Manager) Shutdown() {
	m.mu.RLock()
	ids := append([]string(nil), m.order...)
	m.mu.RUnlock()

	for _, contextID := range ids {
		m.Close(contextID)
	}
}

func (m *Manager) frame(contextID string) (Frame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tabs[contextID]
	if !ok {
		return nil, ErrNotFound
	}
	if t.frame == nil {
		return nil, ErrNotLoaded
	}
	return t.frame, nil
}

func titleOf(markup, fallback string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fallback
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return fallback
}
