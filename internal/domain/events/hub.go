package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/monitor"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
)

var (
	// ErrHubClosed is returned once the hub has shut down
	ErrHubClosed = errors.New("event hub closed")
	// ErrDetached is returned to waiters whose context was closed
	ErrDetached = errors.New("context detached")
)

// Drop reasons reported to metrics
const (
	dropStale     = "stale"
	dropTransport = "transport"
)

// DefaultQueueSize is the intake backlog before posters block
const DefaultQueueSize = 1024

type itemKind int

const (
	itemMessage itemKind = iota
	itemLoad
	itemRecord
	itemBarrier
)

type item struct {
	kind      itemKind
	contextID string
	gen       uint64
	data      []byte
	record    journal.Record
	done      chan struct{}
}

// Hub serializes event intake for all contexts
type Hub struct {
	journal *journal.Journal
	monitor *monitor.Monitor
	metrics *monitoring.Metrics
	logger  *zap.Logger

	intake chan item
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup

	mu       sync.Mutex
	gen      uint64            // last generation handed out
	attached map[string]uint64 // context id -> live generation
	waiters  map[string][]*Waiter
	watchers map[uint64]chan Notice
	watchSeq uint64
}

// NewHub creates and starts a hub
func NewHub(j *journal.Journal, m *monitor.Monitor, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		journal:  j,
		monitor:  m,
		logger:   logger,
		intake:   make(chan item, DefaultQueueSize),
		done:     make(chan struct{}),
		attached: make(map[string]uint64),
		waiters:  make(map[string][]*Waiter),
		watchers: make(map[uint64]chan Notice),
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

// WithMetrics adds metrics tracking to the hub
func (h *Hub) WithMetrics(metrics *monitoring.Metrics) *Hub {
	h.metrics = metrics
	return h
}

// Journal returns the logs the hub appends to
func (h *Hub) Journal() *journal.Journal {
	return h.journal
}

// Attach binds a new generation to contextID and returns the target a frame
// for that context must post to. Earlier subscriptions for the context
// become stale.
func (h *Hub) Attach(contextID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.gen++
	h.attached[contextID] = h.gen
	return &Subscription{hub: h, contextID: contextID, gen: h.gen}
}

// Restore makes sub the live generation again. It is used when the frame
// meant to replace sub never started. Detached contexts stay detached.
func (h *Hub) Restore(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.attached[sub.contextID]; ok {
		h.attached[sub.contextID] = sub.gen
	}
}

// Detach tears down the subscription for contextID. Pending readiness
// waiters fail with ErrDetached.
func (h *Hub) Detach(contextID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.attached, contextID)
	for _, w := range h.waiters[contextID] {
		w.resolve(ErrDetached)
	}
	delete(h.waiters, contextID)
}

// Expect registers a readiness waiter for contextID. It is satisfied only by
// a ready event or load signal from a generation attached after this call,
// so it must be registered before the load that it waits for.
func (h *Hub) Expect(contextID string) *Waiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &Waiter{
		hub:       h,
		contextID: contextID,
		after:     h.gen,
		ch:        make(chan struct{}),
	}
	select {
	case <-h.done:
		w.resolve(ErrHubClosed)
		return w
	default:
	}
	h.waiters[contextID] = append(h.waiters[contextID], w)
	return w
}

// Record appends a controller-side record through the intake path and
// returns once it is in the journal.
func (h *Hub) Record(rec journal.Record) error {
	done := make(chan struct{})
	if !h.post(item{kind: itemRecord, contextID: rec.ContextID, record: rec, done: done}) {
		return ErrHubClosed
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

// Sync returns once every item posted before the call has been processed
func (h *Hub) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if !h.post(item{kind: itemBarrier, done: done}) {
		return ErrHubClosed
	}
	select {
	case <-done:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops intake. Pending waiters fail with ErrHubClosed.
func (h *Hub) Close() {
	h.closed.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		defer h.mu.Unlock()
		for id, ws := range h.waiters {
			for _, w := range ws {
				w.resolve(ErrHubClosed)
			}
			delete(h.waiters, id)
		}
		for id, ch := range h.watchers {
			close(ch)
			delete(h.watchers, id)
		}
	})
}

func (h *Hub) post(it item) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.intake <- it:
		h.metrics.SetIntakeQueue(len(h.intake))
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) loop() {
	defer h.wg.Done()
	for {
		select {
		case it := <-h.intake:
			h.process(it)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) process(it item) {
	if it.done != nil {
		defer close(it.done)
	}

	switch it.kind {
	case itemBarrier:
		return
	case itemRecord:
		h.append(it.record)
		return
	}

	if !h.current(it.contextID, it.gen) {
		h.metrics.RecordDropped(dropStale)
		return
	}

	if it.kind == itemLoad {
		h.ready(it.contextID, it.gen)
		return
	}

	ev, err := protocol.DecodeEvent(it.data)
	if err != nil {
		h.metrics.RecordDropped(dropTransport)
		h.logger.Debug("Dropped foreign message",
			zap.String("context_id", it.contextID),
			zap.Error(err),
		)
		return
	}

	// stamped on the intake goroutine so timestamps follow intake order
	rec := journal.NewRecord(it.contextID, ev.Event, ev.Payload)
	h.append(rec)

	if ev.Event == protocol.EventReady {
		h.ready(it.contextID, it.gen)
	}
}

// append logs rec, evaluates the monitor and notifies watchers
func (h *Hub) append(rec journal.Record) {
	h.journal.AppendEvent(rec)
	h.metrics.RecordEvent(rec.Event)
	h.notify(Notice{Kind: NoticeEvent, Event: &rec})

	if h.monitor == nil {
		return
	}
	for _, alert := range h.monitor.Evaluate(rec) {
		alert := alert
		h.journal.AppendAlert(alert)
		h.metrics.RecordAlert(alert.Kind)
		h.logger.Warn("Security alert",
			zap.String("kind", alert.Kind),
			zap.String("context_id", alert.ContextID),
			zap.String("detail", alert.Detail),
		)
		h.notify(Notice{Kind: NoticeAlert, Alert: &alert})
	}
}

func (h *Hub) current(contextID string, gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	live, ok := h.attached[contextID]
	return ok && live == gen
}

// ready resolves the waiters that gen satisfies
func (h *Hub) ready(contextID string, gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending := h.waiters[contextID][:0]
	for _, w := range h.waiters[contextID] {
		if gen > w.after {
			w.resolve(nil)
			continue
		}
		pending = append(pending, w)
	}
	if len(pending) == 0 {
		delete(h.waiters, contextID)
		return
	}
	h.waiters[contextID] = pending
}

func (h *Hub) removeWaiter(w *Waiter) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ws := h.waiters[w.contextID]
	for i, other := range ws {
		if other == w {
			h.waiters[w.contextID] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(h.waiters[w.contextID]) == 0 {
		delete(h.waiters, w.contextID)
	}
}

// Subscription is the parent target handed to one frame generation
type Subscription struct {
	hub       *Hub
	contextID string
	gen       uint64
}

// ContextID returns the logical context this subscription feeds
func (s *Subscription) ContextID() string {
	return s.contextID
}

// Generation returns the subscription generation
func (s *Subscription) Generation() uint64 {
	return s.gen
}

// PostMessage implements protocol.Target
func (s *Subscription) PostMessage(msg protocol.Message) {
	if msg.Port != nil {
		// frames never transfer ports to the controller
		msg.Port.Close()
	}
	s.hub.post(item{
		kind:      itemMessage,
		contextID: s.contextID,
		gen:       s.gen,
		data:      msg.Data,
	})
}

// Loaded raises the load-complete signal for this generation
func (s *Subscription) Loaded() {
	s.hub.post(item{kind: itemLoad, contextID: s.contextID, gen: s.gen})
}

// Waiter is a one-shot readiness wait
type Waiter struct {
	hub       *Hub
	contextID string
	after     uint64

	once sync.Once
	err  error
	ch   chan struct{}
}

func (w *Waiter) resolve(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.ch)
	})
}

// Wait blocks until the context is ready, detached, or ctx is done
func (w *Waiter) Wait(ctx context.Context) error {
	select {
	case <-w.ch:
		return w.err
	case <-ctx.Done():
		w.Cancel()
		return ctx.Err()
	}
}

// Done is closed once the waiter resolves
func (w *Waiter) Done() <-chan struct{} {
	return w.ch
}

// Cancel abandons the wait
func (w *Waiter) Cancel() {
	w.hub.removeWaiter(w)
	w.resolve(context.Canceled)
}

var _ protocol.Target = (*Subscription)(nil)
