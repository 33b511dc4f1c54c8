// Package events fans session change notifications out to in-process
// subscribers and to browser WebSocket connections.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	TypeSignedIn  = "signed_in"
	TypeSignedOut = "signed_out"
)

// Event is a session change for one account.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	AccountID string    `json:"account_id"`
	Role      string    `json:"role,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionTopic is the topic carrying events for one account.
func SessionTopic(accountID string) string { return "session:" + accountID }

// Publisher is implemented by Hub. Services depend on this rather than Hub.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Subscription receives events on C until Close is called.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	topics []string
	hub    *Hub
	once   sync.Once
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

// Hub tracks subscriptions by topic. A subscription with no topics receives
// every event.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	all    map[*Subscription]struct{}
	buffer int
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		all:    make(map[*Subscription]struct{}),
		buffer: 16,
	}
}

func (h *Hub) Subscribe(topics ...string) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, topics: topics, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(topics) == 0 {
		h.all[sub] = struct{}{}
		return sub
	}
	for _, t := range topics {
		if h.topics[t] == nil {
			h.topics[t] = make(map[*Subscription]struct{})
		}
		h.topics[t][sub] = struct{}{}
	}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.all, sub)
	for _, t := range sub.topics {
		if subs, ok := h.topics[t]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, t)
			}
		}
	}
	close(sub.ch)
}

// Publish delivers event to the subscribers of its topic and to wildcard
// subscribers. A subscriber whose buffer is full misses the event; Publish
// never blocks.
func (h *Hub) Publish(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.topics[event.Topic] {
		deliver(sub, event)
	}
	for sub := range h.all {
		deliver(sub, event)
	}
	return nil
}

func deliver(sub *Subscription, event Event) {
	select {
	case sub.ch <- event:
	default:
	}
}

// SubscriberCount returns the number of open subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Subscription]struct{}, len(h.all))
	for sub := range h.all {
		seen[sub] = struct{}{}
	}
	for _, subs := range h.topics {
		for sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	return len(seen)
}
