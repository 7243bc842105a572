package dispatch

import (
	"sync"
	"time"
)

// Subscription accumulates server-pushed events for one topic. The buffer is
// bounded: once full, incoming events are counted as dropped and discarded,
// so a chatty topic cannot grow memory without bound while preserving the
// oldest (unconsumed) events.
type Subscription struct {
	Topic     string
	CreatedAt time.Time

	// ID is the client-facing identifier minted by the dispatcher; Handle
	// is the server-assigned wire handle, kept internal so clients never
	// depend on its shape. Both are set once, before registry adoption.
	ID     string
	Handle string

	mu      sync.Mutex
	events  []map[string]any
	max     int
	dropped int
}

// NewSubscription creates an unkeyed subscription buffer. The dispatcher
// adopts it into the registry once the server assigns a handle; events pushed
// before adoption are buffered all the same.
func NewSubscription(topic string, maxEvents int) *Subscription {
	return &Subscription{
		Topic:     topic,
		CreatedAt: time.Now(),
		max:       maxEvents,
	}
}

// Push appends an event, discarding it when the buffer is full.
func (s *Subscription) Push(event map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) >= s.max {
		s.dropped++
		return
	}
	s.events = append(s.events, event)
}

// Drain returns up to max buffered events (all of them when max <= 0) along
// with the dropped-event count. When clear is set, returned events and the
// dropped counter are reset.
func (s *Subscription) Drain(max int, clear bool) (events []map[string]any, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	if max > 0 && max < n {
		n = max
	}
	events = make([]map[string]any, n)
	copy(events, s.events[:n])
	dropped = s.dropped

	if clear {
		s.events = append(s.events[:0], s.events[n:]...)
		s.dropped = 0
	}
	return events, dropped
}

// Pending returns the current buffered event count.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// SubscriptionRegistry tracks active subscriptions by client-facing id.
type SubscriptionRegistry struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{subs: make(map[string]*Subscription)}
}

// Adopt keys a subscription under its client-facing id.
func (r *SubscriptionRegistry) Adopt(id string, sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id] = sub
}

// Get looks up a subscription by id.
func (r *SubscriptionRegistry) Get(id string) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	return sub, ok
}

// Remove deletes a subscription, reporting whether it existed.
func (r *SubscriptionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[id]
	delete(r.subs, id)
	return ok
}

// All snapshots the registered subscriptions, for status and shutdown
// cleanup.
func (r *SubscriptionRegistry) All() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := make([]*Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the number of active subscriptions.
func (r *SubscriptionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Clear empties the registry, for teardown after the connection is gone.
func (r *SubscriptionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[string]*Subscription)
}
