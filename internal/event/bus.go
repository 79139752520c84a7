package event

import (
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DefaultMaxSubscribers is the soft per-event-type subscriber bound applied
// when no override is given. Crossing it logs a warning; it never rejects a
// registration.
const DefaultMaxSubscribers = 64

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a simple synchronous pub-sub event bus.
// It allows components to communicate without direct dependencies.
type Bus struct {
	mu             sync.RWMutex
	subscriptions  map[string][]subscription // eventType -> subscriptions
	warned         map[string]bool           // eventType -> soft bound already reported
	maxSubscribers int
	nextID         atomic.Uint64
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxSubscribers overrides the soft per-event-type subscriber bound.
// Zero or negative disables the bound entirely.
func WithMaxSubscribers(n int) Option {
	return func(b *Bus) {
		b.maxSubscribers = n
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions:  make(map[string][]subscription),
		warned:         make(map[string]bool),
		maxSubscribers: DefaultMaxSubscribers,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function that removes exactly this registration.
// Calling it more than once is safe; later calls are no-ops.
func (b *Bus) Subscribe(eventType string, handler Handler) func() {
	b.mu.Lock()

	id := b.nextID.Add(1)
	sub := subscription{
		id:      id,
		handler: handler,
	}

	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)

	count := len(b.subscriptions[eventType])
	crossed := b.maxSubscribers > 0 && count > b.maxSubscribers && !b.warned[eventType]
	if crossed {
		b.warned[eventType] = true
	}
	b.mu.Unlock()

	if crossed {
		log.Printf("WARN: event type %s has %d subscribers, exceeding the soft limit of %d",
			eventType, count, b.maxSubscribers)
	}

	return func() { b.remove(eventType, id) }
}

// SubscribeAll registers a handler for all event types.
// The handler will be called for every published event.
// Returns an unsubscribe function that removes exactly this registration.
func (b *Bus) SubscribeAll(handler Handler) func() {
	return b.Subscribe("*", handler)
}

// remove deletes the subscription with the given id under eventType, if it is
// still registered.
func (b *Bus) remove(eventType string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[eventType]
	for i, sub := range subs {
		if sub.id == id {
			// Remove subscription by re-slicing to exclude index i
			b.subscriptions[eventType] = append(subs[:i], subs[i+1:]...)
			if len(b.subscriptions[eventType]) <= b.maxSubscribers {
				delete(b.warned, eventType)
			}
			return
		}
	}
}

// Publish dispatches an event to all registered handlers.
// Specific handlers (subscribed to this event type) are called first,
// followed by wildcard handlers (subscribed via SubscribeAll).
// Within each group, handlers are called in registration order.
// If a handler panics, the panic is logged, recovered, and publishing
// continues to remaining handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	eventType := event.EventType()

	// Get specific handlers for this event type
	specificSubs := make([]subscription, len(b.subscriptions[eventType]))
	copy(specificSubs, b.subscriptions[eventType])

	// Get wildcard handlers that listen to all events
	wildcardSubs := make([]subscription, len(b.subscriptions["*"]))
	copy(wildcardSubs, b.subscriptions["*"])

	b.mu.RUnlock()

	// Dispatch to specific handlers
	for _, sub := range specificSubs {
		b.safeCall(sub.handler, event)
	}

	// Dispatch to wildcard handlers
	for _, sub := range wildcardSubs {
		b.safeCall(sub.handler, event)
	}
}

// safeCall invokes a handler and recovers from any panics.
// Panics are logged with stack traces to aid debugging while ensuring
// one misbehaving handler cannot block event delivery to other handlers.
func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[string][]subscription)
	b.warned = make(map[string]bool)
}

// SubscriptionCount returns the number of handlers registered for the given
// event type. Wildcard handlers are counted under "*", not under every type.
func (b *Bus) SubscriptionCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[eventType])
}

// TotalSubscriptions returns the total number of active subscriptions across
// all event types, wildcard handlers included.
func (b *Bus) TotalSubscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
