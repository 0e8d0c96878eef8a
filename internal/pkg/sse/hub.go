package sse

import (
	"sync"
)

// Event represents an SSE event to be sent to subscribers
type Event struct {
	Event string
	Data  interface{}
}

// Hub fans events out to topic subscribers. A topic is any routing key: a
// user ID for personal notifications, a workplace ID for presence feeds.
// Delivery is non-blocking, so a subscriber that cannot keep up loses events
// rather than stalling the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

// NewHub creates a new SSE Hub instance
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber on a topic and returns the event
// channel and cleanup function. A non-positive buffer falls back to 10.
func (h *Hub) Subscribe(topic string, buffer int) (chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if buffer <= 0 {
		buffer = 10
	}
	ch := make(chan Event, buffer)

	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[topic], ch)
			close(ch)
			if len(h.subscribers[topic]) == 0 {
				delete(h.subscribers, topic)
			}
		})
	}

	return ch, cleanup
}

// Publish sends an event to all subscribers of a topic. It reports how many
// deliveries succeeded and how many were dropped on full buffers so callers
// can log lossy subscribers.
func (h *Hub) Publish(topic string, event Event) (delivered, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[topic]; ok {
		for ch := range subs {
			select {
			case ch <- event:
				delivered++
			default:
				// Skip if channel is full (non-blocking to prevent deadlock)
				dropped++
			}
		}
	}
	return delivered, dropped
}

// PublishToMany sends an event to multiple topics.
func (h *Hub) PublishToMany(topics []string, event Event) {
	for _, topic := range topics {
		h.Publish(topic, event)
	}
}

// SubscriberCount returns the number of active subscribers on a topic
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if subs, ok := h.subscribers[topic]; ok {
		return len(subs)
	}
	return 0
}

// TotalSubscribers returns the total number of active subscribers across all topics
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
