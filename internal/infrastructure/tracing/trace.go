package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentBrowser/backend/internal/shared/id"
)

// Header carries the request id in both directions
const Header = "X-Request-ID"

// Span is one traced HTTP request
type Span struct {
	RequestID  string
	Name       string
	Method     string
	Path       string
	ClientIP   string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	Errors     []string
}

// Tracer collects finished spans and logs them off the request path
type Tracer struct {
	logger *zap.Logger
	spans  chan *Span

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a tracer with a buffer of size finished spans
func New(logger *zap.Logger, size int) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 1000
	}
	t := &Tracer{
		logger: logger,
		spans:  make(chan *Span, size),
		done:   make(chan struct{}),
	}
	go t.collectSpans()
	return t
}

// StartSpan opens a span, reusing the request id in ctx if there is one
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = id.NewRequestID().String()
	}

	span := &Span{
		RequestID: requestID,
		Name:      name,
		StartTime: time.Now(),
	}
	return span, WithRequestID(ctx, requestID)
}

// Finish marks the span as complete
func (s *Span) Finish(status int) {
	s.Duration = time.Since(s.StartTime)
	s.StatusCode = status
}

// Submit sends a span to the collector without blocking
func (t *Tracer) Submit(span *Span) {
	select {
	case <-t.done:
		return
	default:
	}

	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span", zap.String("request_id", span.RequestID))
	}
}

// Close stops the collector after draining buffered spans
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
	})
}

func (t *Tracer) collectSpans() {
	for {
		select {
		case span := <-t.spans:
			t.processSpan(span)
		case <-t.done:
			for {
				select {
				case span := <-t.spans:
					t.processSpan(span)
				default:
					return
				}
			}
		}
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("request_id", span.RequestID),
		zap.String("route", span.Name),
		zap.String("method", span.Method),
		zap.String("path", span.Path),
		zap.String("client_ip", span.ClientIP),
		zap.Int("status", span.StatusCode),
		zap.Duration("duration", span.Duration),
	}

	switch {
	case len(span.Errors) > 0:
		t.logger.Warn("Request failed", append(fields, zap.Strings("errors", span.Errors))...)
	case span.StatusCode >= 500:
		t.logger.Warn("Request failed", fields...)
	default:
		t.logger.Debug("Request completed", fields...)
	}
}

type contextKey struct{}

// WithRequestID stores a request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// RequestID returns the request id stored in ctx
func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(contextKey{}).(string)
	return requestID
}
