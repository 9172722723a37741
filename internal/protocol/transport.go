package protocol

import (
	"context"
	"errors"
	"sync"
)

// ErrPortClosed is returned when a port is closed before a reply arrives
var ErrPortClosed = errors.New("reply port closed")

// Message is the unit delivered through a cross-context channel: encoded
// envelope bytes plus an optional transferred reply port.
type Message struct {
	Data []byte
	Port *Port
}

// Target is anything that accepts posted messages (a context's own message
// target, or the controller-side listener for a context).
type Target interface {
	PostMessage(msg Message)
}

// TargetFunc adapts a function to Target
type TargetFunc func(msg Message)

// PostMessage implements Target
func (f TargetFunc) PostMessage(msg Message) { f(msg) }

// Port is a one-shot reply channel transferred alongside a command
type Port struct {
	ch   chan []byte
	once sync.Once
}

// NewPort creates an unanswered port
func NewPort() *Port {
	return &Port{ch: make(chan []byte, 1)}
}

// Post delivers data on the port. Only the first post or close wins.
func (p *Port) Post(data []byte) bool {
	posted := false
	p.once.Do(func() {
		p.ch <- data
		close(p.ch)
		posted = true
	})
	return posted
}

// Reply encodes and posts a reply
func (p *Port) Reply(r Reply) bool {
	data, err := EncodeReply(r)
	if err != nil {
		return false
	}
	return p.Post(data)
}

// Close closes the port without answering
func (p *Port) Close() {
	p.once.Do(func() {
		close(p.ch)
	})
}

// Await blocks until the port is answered, closed, or ctx is done
func (p *Port) Await(ctx context.Context) (Reply, error) {
	select {
	case data, ok := <-p.ch:
		if !ok {
			return Reply{}, ErrPortClosed
		}
		return DecodeReply(data)
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}
