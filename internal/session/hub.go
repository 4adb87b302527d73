package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hansbyte/pairgate/pkg/api"
)

type (
	// EventFilter reports whether a subscriber wants an event
	EventFilter func(api.SessionEvent) bool

	// Hub fans session events out to stream subscribers. Publishing
	// never blocks: a subscriber that falls behind loses events
	Hub struct {
		subscribers map[uuid.UUID]*subscriber
		mu          sync.RWMutex
		closed      bool
	}

	subscriber struct {
		ch     chan api.SessionEvent
		filter EventFilter
	}
)

const subscriberBufferSize = 32

// NewHub creates an empty event hub
func NewHub() *Hub {
	return &Hub{
		subscribers: map[uuid.UUID]*subscriber{},
	}
}

// FilterSession matches events belonging to a single session
func FilterSession(id api.SessionID) EventFilter {
	return func(ev api.SessionEvent) bool {
		return ev.SessionID == id
	}
}

// AllEvents matches every published event
func AllEvents(api.SessionEvent) bool {
	return true
}

// Subscribe registers a consumer and returns its id and receive channel.
// A nil filter receives every event. The channel is closed by Unsubscribe
// or when the hub shuts down
func (h *Hub) Subscribe(
	filter EventFilter,
) (uuid.UUID, <-chan api.SessionEvent) {
	if filter == nil {
		filter = AllEvents
	}
	ch := make(chan api.SessionEvent, subscriberBufferSize)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return uuid.Nil, ch
	}
	id := uuid.New()
	h.subscribers[id] = &subscriber{ch: ch, filter: filter}
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(sub.ch)
}

// Publish delivers an event to every matching subscriber
func (h *Hub) Publish(ev api.SessionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subscribers {
		if !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close shuts the hub down and closes all subscriber channels
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.ch)
	}
}
