package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/events"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/tabs"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
)

// Config bounds the engine's waits
type Config struct {
	ReadyTimeout  time.Duration // navigate: longest wait for readiness
	SettleDelay   time.Duration // fill/click: pause after sending
	AssertTimeout time.Duration // assertText: longest wait for the reply
	MaxRuns       int           // finished runs kept for inspection
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		ReadyTimeout:  2500 * time.Millisecond,
		SettleDelay:   200 * time.Millisecond,
		AssertTimeout: 800 * time.Millisecond,
		MaxRuns:       100,
	}
}

// Engine executes workflows against contexts
type Engine struct {
	tabs    *tabs.Manager
	hub     *events.Hub
	config  Config
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu    sync.RWMutex
	runs  map[string]*run   // Protected by mu
	order []string          // run ids oldest first, protected by mu
	busy  map[string]string // context id -> run id, protected by mu
	wg    sync.WaitGroup
}

type run struct {
	Run
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a workflow engine
func NewEngine(manager *tabs.Manager, hub *events.Hub, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = def.ReadyTimeout
	}
	if config.SettleDelay < 0 {
		config.SettleDelay = 0
	}
	if config.AssertTimeout <= 0 {
		config.AssertTimeout = def.AssertTimeout
	}
	if config.MaxRuns <= 0 {
		config.MaxRuns = def.MaxRuns
	}
	return &Engine{
		tabs:   manager,
		hub:    hub,
		config: config,
		logger: logger,
		runs:   make(map[string]*run),
		busy:   make(map[string]string),
	}
}

// WithMetrics adds metrics tracking to the engine
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Run executes w against the active context and blocks until it finishes.
// Cancelling ctx aborts the run.
func (e *Engine) Run(ctx context.Context, w *Workflow) (Run, error) {
	r, err := e.begin(ctx, w)
	if err != nil {
		return Run{}, err
	}
	<-r.done
	return e.snapshot(r), nil
}

// Start executes w in the background and returns the run as it starts.
// Use Cancel to stop it.
func (e *Engine) Start(w *Workflow) (Run, error) {
	r, err := e.begin(context.Background(), w)
	if err != nil {
		return Run{}, err
	}
	return e.snapshot(r), nil
}

// Wait blocks until the run finishes or ctx is done
func (e *Engine) Wait(ctx context.Context, runID string) (Run, error) {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return Run{}, ErrRunNotFound
	}

	select {
	case <-r.done:
		return e.snapshot(r), nil
	case <-ctx.Done():
		return e.snapshot(r), ctx.Err()
	}
}

// Cancel aborts a running workflow. Finished runs are left as they are.
func (e *Engine) Cancel(runID string) error {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return ErrRunNotFound
	}
	r.cancel()
	return nil
}

// Get returns a copy of one run
func (e *Engine) Get(runID string) (Run, bool) {
	e.mu.RLock()
	r, ok := e.runs[runID]
	e.mu.RUnlock()
	if !ok {
		return Run{}, false
	}
	return e.snapshot(r), true
}

// List returns copies of every retained run, newest first
func (e *Engine) List() []Run {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Run, 0, len(e.order))
	for i := len(e.order) - 1; i >= 0; i-- {
		out = append(out, e.runs[e.order[i]].copy())
	}
	return out
}

// Shutdown cancels every run and waits for them to stop
func (e *Engine) Shutdown() {
	e.mu.RLock()
	for _, r := range e.runs {
		r.cancel()
	}
	e.mu.RUnlock()
	e.wg.Wait()
}

func (e *Engine) begin(ctx context.Context, w *Workflow) (*run, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil workflow", ErrInvalidWorkflow)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	target := e.tabs.ActiveID()
	if target == "" {
		return nil, ErrNoActiveContext
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		Run: Run{
			ID:        uuid.New().String(),
			Workflow:  w.Name,
			ContextID: target,
			State:     StateRunning,
			Total:     len(w.Steps),
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if owner, busy := e.busy[target]; busy {
		e.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: run %s", ErrRunInProgress, owner)
	}
	e.busy[target] = r.ID
	e.runs[r.ID] = r
	e.order = append(e.order, r.ID)
	e.evictLocked()
	e.mu.Unlock()

	e.metrics.IncWorkflowsRunning()
	e.logger.Info("Workflow started",
		zap.String("run_id", r.ID),
		zap.String("workflow", w.Name),
		zap.String("context_id", target),
		zap.Int("steps", len(w.Steps)),
	)

	e.wg.Add(1)
	go e.execute(runCtx, r, w)
	return r, nil
}

func (e *Engine) execute(ctx context.Context, r *run, w *Workflow) {
	defer e.wg.Done()
	defer close(r.done)
	defer r.cancel()

	var abortErr error
	for i, step := range w.Steps {
		if err := e.checkpoint(ctx, r.ContextID); err != nil {
			abortErr = err
			break
		}

		timer := monitoring.NewTimer(e.metrics, step.Kind)
		result, err := e.perform(ctx, r, step)
		result.Index = i
		result.Kind = step.Kind
		result.Step = step.String()
		result.Duration = timer.Stop()

		e.mu.Lock()
		r.Steps = append(r.Steps, result)
		switch result.Outcome {
		case OutcomePassed:
			r.Passed++
		case OutcomeFailed:
			r.Failed++
		}
		e.mu.Unlock()

		e.logger.Debug("Workflow step finished",
			zap.String("run_id", r.ID),
			zap.Int("index", i),
			zap.String("step", result.Step),
			zap.String("outcome", result.Outcome),
			zap.Duration("duration", result.Duration),
		)

		if err != nil {
			abortErr = err
			break
		}
	}

	e.finish(r, abortErr)
}

// checkpoint runs before every step
func (e *Engine) checkpoint(ctx context.Context, contextID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.tabs.Exists(contextID) {
		return ErrContextClosed
	}
	return nil
}

// perform runs one step. A non-nil error aborts the run.
func (e *Engine) perform(ctx context.Context, r *run, step Step) (StepResult, error) {
	switch step.Kind {
	case StepNavigate:
		return e.navigate(ctx, r.ContextID, step.Fixture)
	case StepFill:
		return e.command(ctx, r.ContextID, protocol.NewCommand(protocol.CommandFill, map[string]any{
			"fields": step.Fields,
		}))
	case StepClick:
		return e.command(ctx, r.ContextID, protocol.NewCommand(protocol.CommandClick, map[string]any{
			"selector": step.Selector,
		}))
	case StepAssertText:
		return e.assert(ctx, r, step)
	}
	return StepResult{Outcome: OutcomeError, Error: "unknown step kind"}, nil
}

func (e *Engine) navigate(ctx context.Context, contextID, fixture string) (StepResult, error) {
	waiter := e.hub.Expect(contextID)

	err := e.tabs.LoadFixture(ctx, contextID, fixture)
	switch {
	case err == nil, errors.Is(err, tabs.ErrSuperseded):
	case errors.Is(err, tabs.ErrNotFound):
		waiter.Cancel()
		return StepResult{Outcome: OutcomeError, Error: err.Error()}, ErrContextClosed
	case ctx.Err() != nil:
		waiter.Cancel()
		return StepResult{Outcome: OutcomeError, Error: err.Error()}, ctx.Err()
	default:
		// the previous document stays in place and the run goes on
		waiter.Cancel()
		return StepResult{Outcome: OutcomeError, Error: err.Error()}, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.config.ReadyTimeout)
	defer cancel()

	err = waiter.Wait(waitCtx)
	switch {
	case err == nil:
		return StepResult{Outcome: OutcomeDone}, nil
	case errors.Is(err, events.ErrDetached):
		return StepResult{Outcome: OutcomeError, Error: err.Error()}, ErrContextClosed
	case ctx.Err() != nil:
		return StepResult{Outcome: OutcomeError, Error: ctx.Err().Error()}, ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		e.logger.Warn("Readiness wait timed out, continuing",
			zap.String("context_id", contextID),
			zap.String("fixture", fixture),
			zap.Duration("timeout", e.config.ReadyTimeout),
		)
		return StepResult{Outcome: OutcomeTimeout}, nil
	default:
		return StepResult{Outcome: OutcomeError, Error: err.Error()}, nil
	}
}

func (e *Engine) command(ctx context.Context, contextID string, cmd protocol.Command) (StepResult, error) {
	if err := e.tabs.Send(contextID, cmd, nil); err != nil {
		if errors.Is(err, tabs.ErrNotFound) {
			return StepResult{Outcome: OutcomeError, Error: err.Error()}, ErrContextClosed
		}
		return StepResult{Outcome: OutcomeError, Error: err.Error()}, nil
	}

	if err := sleep(ctx, e.config.SettleDelay); err != nil {
		return StepResult{Outcome: OutcomeDone}, err
	}
	return StepResult{Outcome: OutcomeDone}, nil
}

func (e *Engine) assert(ctx context.Context, r *run, step Step) (StepResult, error) {
	port := protocol.NewPort()
	cmd := protocol.NewCommand(protocol.CommandAssertText, map[string]any{
		"selector": step.Selector,
		"expected": step.Expected,
	})

	var (
		ok     bool
		reason string
	)
	if err := e.tabs.Send(r.ContextID, cmd, port); err != nil {
		if errors.Is(err, tabs.ErrNotFound) {
			return StepResult{Outcome: OutcomeError, Error: err.Error()}, ErrContextClosed
		}
		reason = err.Error()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, e.config.AssertTimeout)
		reply, err := port.Await(waitCtx)
		cancel()
		switch {
		case err == nil:
			ok = reply.OK
		case ctx.Err() != nil:
			return StepResult{Outcome: OutcomeError, Error: ctx.Err().Error()}, ctx.Err()
		default:
			reason = err.Error()
		}
	}

	e.metrics.RecordAssert(ok)
	rec := journal.NewRecord(r.ContextID, RecordAssert, map[string]any{
		"selector": step.Selector,
		"expected": step.Expected,
		"ok":       ok,
		"runId":    r.ID,
	})
	if err := e.hub.Record(rec); err != nil {
		e.logger.Warn("Failed to log assertion", zap.String("run_id", r.ID), zap.Error(err))
	}

	result := StepResult{Outcome: OutcomeFailed, Error: reason}
	if ok {
		result = StepResult{Outcome: OutcomePassed}
	}
	return result, nil
}

func (e *Engine) finish(r *run, err error) {
	e.mu.Lock()
	r.FinishedAt = time.Now()
	r.State = StateCompleted
	if err != nil {
		r.State = StateAborted
		r.Error = abortReason(err)
	}
	if e.busy[r.ContextID] == r.ID {
		delete(e.busy, r.ContextID)
	}
	state, passed, failed := r.State, r.Passed, r.Failed
	e.mu.Unlock()

	e.metrics.DecWorkflowsRunning()
	e.metrics.RecordWorkflowRun(string(state))

	fields := []zap.Field{
		zap.String("run_id", r.ID),
		zap.String("workflow", r.Workflow),
		zap.String("state", string(state)),
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Duration("duration", r.FinishedAt.Sub(r.StartedAt)),
	}
	if err != nil {
		e.logger.Warn("Workflow aborted", append(fields, zap.Error(err))...)
		return
	}
	e.logger.Info("Workflow completed", fields...)
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline exceeded"
	}
	return err.Error()
}

// evictLocked drops the oldest finished runs beyond MaxRuns
func (e *Engine) evictLocked() {
	excess := len(e.order) - e.config.MaxRuns
	if excess <= 0 {
		return
	}

	kept := e.order[:0]
	for _, runID := range e.order {
		r := e.runs[runID]
		if excess > 0 && r.State != StateRunning {
			delete(e.runs, runID)
			excess--
			continue
		}
		kept = append(kept, runID)
	}
	e.order = kept
}

func (e *Engine) snapshot(r *run) Run {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return r.copy()
}

func (r *run) copy() Run {
	out := r.Run
	out.Steps = append([]StepResult(nil), r.Steps...)
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
