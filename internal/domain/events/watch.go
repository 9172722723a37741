package events

import (
	"github.com/GriffinCanCode/AgentBrowser/backend/internal/domain/journal"
)

// Notice kinds
const (
	NoticeEvent = "event"
	NoticeAlert = "alert"
)

// Notice is one item of the live feed
type Notice struct {
	Kind  string          `json:"kind"`
	Event *journal.Record `json:"event,omitempty"`
	Alert *journal.Alert  `json:"alert,omitempty"`
}

// Watch subscribes to the live feed. Slow watchers miss notices rather than
// stall intake. The returned cancel func releases the subscription.
func (h *Hub) Watch(buffer int) (<-chan Notice, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Notice, buffer)

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	h.watchSeq++
	key := h.watchSeq
	h.watchers[key] = ch
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.watchers[key]; ok {
			close(c)
			delete(h.watchers, key)
		}
	}
}

func (h *Hub) notify(n Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.watchers {
		select {
		case ch <- n:
		default:
			h.metrics.RecordDropped("slow_watcher")
		}
	}
}
