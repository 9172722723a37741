package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/protocol"
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/providers/browser/sandbox"
)

// ErrFrameClosed is returned by operations on a closed frame
var ErrFrameClosed = errors.New("frame closed")

// Config defines frame configuration
type Config struct {
	Sandbox    sandbox.Config
	QueueSize  int // Task queue capacity
	TextPrefix int // Max runes of element text reported with click events
}

// DefaultConfig returns the default frame configuration
func DefaultConfig() Config {
	return Config{
		Sandbox:    sandbox.DefaultConfig(),
		QueueSize:  256,
		TextPrefix: 60,
	}
}

// Frame is a running document context
type Frame struct {
	contextID string
	parent    protocol.Target
	onLoad    func()
	logger    *zap.Logger

	doc     *sandbox.Document
	runtime *sandbox.Runtime
	agent   *docAgent

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// Start parses instrumented markup and boots it on a new event loop. Events
// go to parent; onLoad is the load-complete signal raised after boot.
func Start(cfg Config, contextID, markup string, parent protocol.Target, onLoad func(), logger *zap.Logger) (*Frame, error) {
	if parent == nil {
		return nil, fmt.Errorf("frame %s: parent target required", contextID)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.TextPrefix <= 0 {
		cfg.TextPrefix = DefaultConfig().TextPrefix
	}

	doc, err := sandbox.Parse(markup)
	if err != nil {
		return nil, err
	}
	if !IsInstrumented(doc) {
		return nil, ErrNotInstrumented
	}

	f := &Frame{
		contextID: contextID,
		parent:    parent,
		onLoad:    onLoad,
		logger:    logger.With(zap.String("context_id", contextID)),
		doc:       doc,
		tasks:     make(chan func(), cfg.QueueSize),
		done:      make(chan struct{}),
	}

	runtime, err := sandbox.New(cfg.Sandbox, doc, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	f.runtime = runtime
	f.agent = newDocAgent(f, cfg.TextPrefix)

	go f.loop()
	f.enqueue(f.boot)

	return f, nil
}

// ContextID returns the logical context this frame renders
func (f *Frame) ContextID() string {
	return f.contextID
}

// PostMessage delivers a controller message to the frame's own message target
func (f *Frame) PostMessage(msg protocol.Message) {
	if !f.enqueue(func() { f.agent.handle(msg) }) && msg.Port != nil {
		msg.Port.Close()
	}
}

// Snapshot renders the live document
func (f *Frame) Snapshot(ctx context.Context) (string, error) {
	type rendered struct {
		html string
		err  error
	}
	out := make(chan rendered, 1)
	if !f.enqueue(func() {
		h, err := f.doc.HTML()
		out <- rendered{html: h, err: err}
	}) {
		return "", ErrFrameClosed
	}

	select {
	case r := <-out:
		return r.html, r.err
	case <-f.done:
		return "", ErrFrameClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the event loop. Queued tasks are discarded.
func (f *Frame) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
	})
}

// Done is closed when the frame shuts down
func (f *Frame) Done() <-chan struct{} {
	return f.done
}

func (f *Frame) enqueue(task func()) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.tasks <- task:
		return true
	case <-f.done:
		return false
	}
}

func (f *Frame) loop() {
	defer f.runtime.Close()
	for {
		select {
		case task := <-f.tasks:
			f.run(task)
		case <-f.done:
			return
		}
	}
}

func (f *Frame) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Frame task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

// boot installs the agent, runs fixture scripts and signals readiness
func (f *Frame) boot() {
	f.agent.install()

	for _, script := range f.doc.Scripts() {
		if isMarker(script) {
			continue
		}
		if src, ok := sandbox.Attr(script, "src"); ok {
			f.logger.Debug("Skipping external script", zap.String("src", src))
			continue
		}
		code := sandbox.TextContent(script)
		if strings.TrimSpace(code) == "" {
			continue
		}
		if _, err := f.runtime.Execute(code); err != nil {
			f.logger.Warn("Fixture script failed", zap.Error(err))
		}
	}

	f.runtime.SetReadyState("interactive")
	f.agent.emitReady()
	f.runtime.SetReadyState("complete")

	if f.onLoad != nil {
		f.onLoad()
	}
}

// sandbox.Host

// PostToParent forwards raw script traffic to the parent target
func (f *Frame) PostToParent(data []byte) {
	f.parent.PostMessage(protocol.Message{Data: data})
}

// Schedule runs task on the event loop after delay
func (f *Frame) Schedule(delay time.Duration, task func()) {
	time.AfterFunc(delay, func() {
		f.enqueue(task)
	})
}

// Console records fixture console output
func (f *Frame) Console(entry sandbox.LogEntry) {
	f.logger.Debug("Fixture console",
		zap.String("level", entry.Level),
		zap.String("message", entry.Message),
	)
}
