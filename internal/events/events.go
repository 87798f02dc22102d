// Package events is the change-notification bus used to invalidate derived
// data (cached summaries, snapshots) after a record is written.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	ExpenseUpdated Type = "EXPENSE_UPDATED"
	IncomeUpdated  Type = "INCOME_UPDATED"
	TravelUpdated  Type = "TRAVEL_UPDATED"
)

type Type string

// Event describes a committed change. Year and Month (0-based) are set for
// expense changes, which are month scoped; a zero Year means every month.
type Event struct {
	Type      Type      `json:"type"`
	Year      int       `json:"year,omitempty"`
	Month     int       `json:"month,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Forwarder relays events outside the process, e.g. to a message broker.
type Forwarder interface {
	PublishChange(ctx context.Context, e Event) error
}

// Bus dispatches events synchronously to the subscribers of their type.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[Type]map[int]func(Event)
	forwarder Forwarder
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[Type]map[int]func(Event))}
}

// SetForwarder installs f; pass nil to stop forwarding.
func (b *Bus) SetForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarder = f
}

// Subscribe registers fn for events of type t and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(t Type, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.listeners[t] == nil {
		b.listeners[t] = make(map[int]func(Event))
	}
	b.listeners[t][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners[t], id)
			if len(b.listeners[t]) == 0 {
				delete(b.listeners, t)
			}
		})
	}
}

// Publish delivers e to every subscriber. A panicking subscriber is logged
// and does not stop delivery to the others. Forwarding failures are logged
// and otherwise ignored.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.listeners[e.Type]))
	for _, fn := range b.listeners[e.Type] {
		fns = append(fns, fn)
	}
	fwd := b.forwarder
	b.mu.RUnlock()

	slog.DebugContext(ctx, "Event published", "event_type", e.Type, "subscribers", len(fns))

	for _, fn := range fns {
		deliver(ctx, e, fn)
	}

	if fwd != nil {
		if err := fwd.PublishChange(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to forward event", "event_type", e.Type, "error", err)
		}
	}
}

func deliver(ctx context.Context, e Event, fn func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Event subscriber panicked", "event_type", e.Type, "panic", r)
		}
	}()
	fn(e)
}

// Subscribers returns the number of subscriptions for t.
func (b *Bus) Subscribers(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}

// AllMonths reports whether e applies to every month rather than one.
func (e Event) AllMonths() bool {
	return e.Year == 0
}
