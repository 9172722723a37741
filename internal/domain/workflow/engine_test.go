package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/monitor"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/tabs"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/fixtures"
)

type harness struct {
	hub     *events.Hub
	tabs    *tabs.Manager
	engine  *Engine
	metrics *monitoring.Metrics
}

func newHarness(t *testing.T, launch tabs.Launcher, cfg Config) *harness {
	t.Helper()
	metrics := monitoring.NewMetrics()
	hub := events.NewHub(journal.New(1000, 100), monitor.New(monitor.DefaultConfig()), nil).WithMetrics(metrics)
	manager := tabs.NewManager(fixtures.NewLoader(nil, fixtures.DefaultConfig(), nil), hub, launch, nil)
	engine := NewEngine(manager, hub, cfg, nil).WithMetrics(metrics)

	t.Cleanup(func() {
		engine.Shutdown()
		manager.Shutdown()
		hub.Close()
	})
	return &harness{hub: hub, tabs: manager, engine: engine, metrics: metrics}
}

func (h *harness) asserts(t *testing.T) []journal.Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.hub.Sync(ctx))
	return h.hub.Journal().Events(journal.Query{Name: RecordAssert})
}

// silentFrame accepts commands and never answers them
type silentFrame struct {
	mu    sync.Mutex
	ports []*protocol.Port
}

func (f *silentFrame) PostMessage(msg protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.Port != nil {
		f.ports = append(f.ports, msg.Port)
	}
}

func (f *silentFrame) Snapshot(ctx context.Context) (string, error) { return "", nil }
func (f *silentFrame) Close()                                       {}

// silentLauncher never signals load completion
func silentLauncher(contextID, markup string, parent protocol.Target, onLoad func()) (tabs.Frame, error) {
	return &silentFrame{}, nil
}

func TestSampleWorkflow(t *testing.T) {
	h := newHarness(t, nil, DefaultConfig())
	ctx := context.Background()

	tab, err := h.tabs.Open(ctx, fixtures.KeyLogin)
	require.NoError(t, err)

	result, err := h.engine.Run(ctx, Sample())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, tab.ID, result.ContextID)
	assert.Len(t, result.Steps, len(Sample().Steps))
	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 0, result.Failed)

	records := h.asserts(t)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, true, rec.Payload["ok"], "assert on %v", rec.Payload["selector"])
		assert.Equal(t, result.ID, rec.Payload["runId"])
	}

	alerts := h.hub.Journal().Alerts(journal.Query{Name: journal.KindSensitiveSubmit})
	assert.Len(t, alerts, 1)
	assert.Empty(t, h.hub.Journal().Alerts(journal.Query{Name: journal.KindPotentialXSS}))

	current, _ := h.tabs.Get(tab.ID)
	assert.Equal(t, fixtures.KeySearch, current.FixtureKey)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.WorkflowRuns.WithLabelValues(string(StateCompleted))))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.WorkflowAsserts.WithLabelValues("pass")))
	assert.Equal(t, int64(1), h.metrics.Snapshot().TotalAlerts)
}

func TestAssertOnMissingSelectorFails(t *testing.T) {
	h := newHarness(t, nil, DefaultConfig())
	ctx := context.Background()

	_, err := h.tabs.Open(ctx, fixtures.KeyLogin)
	require.NoError(t, err)

	w := &Workflow{Name: "missing", Steps: []Step{
		Navigate(fixtures.KeyLogin),
		AssertText("#does-not-exist", "anything"),
		AssertText("title", "Sign in"),
	}}
	result, err := h.engine.Run(ctx, w)
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State, "failed assertions never abort")
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Passed)

	records := h.asserts(t)
	require.Len(t, records, 2)
	// most recent first
	assert.Equal(t, "#does-not-exist", records[1].Payload["selector"])
	assert.Equal(t, false, records[1].Payload["ok"])
}

func TestClickOnMissingElementContinues(t *testing.T) {
	h := newHarness(t, nil, DefaultConfig())
	ctx := context.Background()

	tab, err := h.tabs.Open(ctx, fixtures.KeyLogin)
	require.NoError(t, err)

	result, err := h.engine.Run(ctx, &Workflow{Name: "bad-click", Steps: []Step{
		Click("#nope"),
		AssertText("#login-btn", ""),
	}})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 1, result.Passed)

	require.NoError(t, h.hub.Sync(ctx))
	errs := h.hub.Journal().Events(journal.Query{ContextID: tab.ID, Name: protocol.EventError})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Payload["message"], "#nope")
}

func TestFailedNavigateKeepsDocument(t *testing.T) {
	h := newHarness(t, nil, DefaultConfig())
	ctx := context.Background()

	_, err := h.tabs.Open(ctx, fixtures.KeyLogin)
	require.NoError(t, err)

	result, err := h.engine.Run(ctx, &Workflow{Name: "bad-nav", Steps: []Step{
		Navigate("missing"),
		AssertText("#login-btn", ""),
	}})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, OutcomeError, result.Steps[0].Outcome)
	assert.Equal(t, OutcomePassed, result.Steps[1].Outcome)
}

func TestReadinessTimeoutCountsAsCompletion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadyTimeout = 30 * time.Millisecond
	cfg.AssertTimeout = 30 * time.Millisecond
	h := newHarness(t, silentLauncher, cfg)
	ctx := context.Background()

	_, err := h.tabs.Open(ctx, fixtures.KeyLogin)
	require.NoError(t, err)

	result, err := h.engine.Run(ctx, &Workflow{Name: "silent", Steps: []Step{
		Navigate(fixtures.KeySearch),
		AssertText("#results", "Result"),
	}})
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, OutcomeTimeout, result.Steps[0].Outcome)
	assert.Equal(t, OutcomeFailed, result.Steps[1].Outcome, "an unanswered assertion is a failure")

	records := h.asserts(t)
	require.Len(t, records, 1)
	assert.Equal(t, false, records[0].Payload["ok"])
}

func TestNoActiveContext(t *testing.T) {
	h := newHarness(t, silentLauncher, DefaultConfig())

	_, err := h.engine.Run(context.Background(), Sample())
	assert.ErrorIs(t, err, ErrNoActiveContext)
}

func TestInvalidWorkflowRejected(t *testing.T) {
	h := newHarness(t, silentLauncher, DefaultConfig())
	_, err := h.tabs.Open(context.Background(), fixtures.KeyLogin)
	require.NoError(t, err)

	_, err = h.engine.Start(&Workflow{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
}

func longNavigate() *Workflow {
	return &Workflow{Name: "slow", Steps: []Step{
		Navigate(fixtures.KeySearch),
		Click("#go"),
	}}
}

func TestSecondRunOnBusyContextRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadyTimeout = 5 * time.Second
	h := newHarness(t, silentLauncher, cfg)

	_, err := h.tabs.Open(context.Background(), fixtures.KeyLogin)
	require.NoError(t, err)

	first, err := h.engine.Start(longNavigate())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, first.State)

	_, err = h.engine.Start(longNavigate())
	assert.ErrorIs(t, err, ErrRunInProgress)

	// a different context is free
	_, err = h.tabs.Open(context.Background(), fixtures.KeyForm)
	require.NoError(t, err)
	second, err := h.engine.Start(longNavigate())
	require.NoError(t, err)
	assert.NotEqual(t, first.ContextID, second.ContextID)
}

func TestCancelAbortsRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadyTimeout = 5 * time.Second
	h := newHarness(t, silentLauncher, cfg)

	_, err := h.tabs.Open(context.Background(), fixtures.KeyLogin)
	require.NoError(t, err)

	started, err := h.engine.Start(longNavigate())
	require.NoError(t, err)
	require.NoError(t, h.engine.Cancel(started.ID))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := h.engine.Wait(ctx, started.ID)
	require.NoError(t, err)

	assert.Equal(t, StateAborted, result.State)
	assert.Equal(t, "cancelled", result.Error)
	assert.Less(t, len(result.Steps), 2)

	// the context is free again
	_, err = h.engine.Start(longNavigate())
	assert.NoError(t, err)

	assert.ErrorIs(t, h.engine.Cancel("missing"), ErrRunNotFound)
}

func TestRunContextCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadyTimeout = 5 * time.Second
	h := newHarness(t, silentLauncher, cfg)

	_, err := h.tabs.Open(context.Background(), fixtures.KeyLogin)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := h.engine.Run(ctx, longNavigate())
	require.NoError(t, err)
	assert.Equal(t, StateAborted, result.State)
	assert.Equal(t, "deadline exceeded", result.Error)
}

func TestClosedContextAbortsRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadyTimeout = 5 * time.Second
	h := newHarness(t, silentLauncher, cfg)

	tab, err := h.tabs.Open(context.Background(), fixtures.KeyLogin)
	require.NoError(t, err)

	started, err := h.engine.Start(longNavigate())
	require.NoError(t, err)

	// wait until the navigate step has loaded and is waiting for readiness
	require.Eventually(t, func() bool {
		current, _ := h.tabs.Get(tab.ID)
		return current.FixtureKey == fixtures.KeySearch
	}, time.Second, 5*time.Millisecond)
	require.True(t, h.tabs.Close(tab.ID))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := h.engine.Wait(ctx, started.ID)
	require.NoError(t, err)

	assert.Equal(t, StateAborted, result.State)
	assert.Equal(t, ErrContextClosed.Error(), result.Error)
}

func TestRunRegistry(t *testing.T) {
	h := newHarness(t, nil, Config{SettleDelay: time.Millisecond})
	ctx := context.Background()

	_, err := h.tabs.Open(ctx, fixtures.KeyLogin)
	require.NoError(t, err)

	w := &Workflow{Name: "quick", Steps: []Step{AssertText("#status", "")}}
	a, err := h.engine.Run(ctx, w)
	require.NoError(t, err)
	b, err := h.engine.Run(ctx, w)
	require.NoError(t, err)

	got, ok := h.engine.Get(a.ID)
	require.True(t, ok)
	assert.True(t, got.Finished())
	assert.False(t, got.FinishedAt.IsZero())

	runs := h.engine.List()
	require.Len(t, runs, 2)
	assert.Equal(t, b.ID, runs[0].ID)

	_, ok = h.engine.Get("missing")
	assert.False(t, ok)
}
