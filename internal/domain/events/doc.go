// Package events is the controller side of the cross-context transport.
//
// The Hub is the single demultiplexer for every frame. Each frame is started
// with a subscription target obtained from Attach; the subscription is bound
// to the logical context id and to a generation number. Reloading a context
// attaches a new generation, so messages still in flight from the replaced
// frame are recognised as stale and dropped.
//
// All inbound traffic is processed on one intake goroutine: decode, append
// to the journal, run the security monitor, then wake readiness waiters and
// live watchers. Event handling is never interleaved with another event.
package events
