// Package events delivers storage and crafting notifications to whatever UI
// layer is attached to a session.
package events

import (
	"sort"
	"sync"
	"time"
)

// Type represents the kind of event.
type Type int

const (
	// CraftCompleted is emitted after a recipe's outputs were delivered.
	CraftCompleted Type = iota
	// CraftFailed is emitted when a craft was refused or rolled back.
	CraftFailed
	// RollbackLoss is emitted when a rollback could not return every item.
	RollbackLoss
	// PlanCompleted is emitted when every step of a recursive plan ran.
	PlanCompleted
	// PlanFailed is emitted when a recursive plan stopped early.
	PlanFailed
	// ChestRegistered is emitted when a container joins the pool.
	ChestRegistered
	// ChestUnregistered is emitted when a container leaves the pool.
	ChestUnregistered
	// StationRemembered is emitted when station memory learns new types.
	StationRemembered
)

// String returns a human-readable representation of the event type.
func (t Type) String() string {
	switch t {
	case CraftCompleted:
		return "CraftCompleted"
	case CraftFailed:
		return "CraftFailed"
	case RollbackLoss:
		return "RollbackLoss"
	case PlanCompleted:
		return "PlanCompleted"
	case PlanFailed:
		return "PlanFailed"
	case ChestRegistered:
		return "ChestRegistered"
	case ChestUnregistered:
		return "ChestUnregistered"
	case StationRemembered:
		return "StationRemembered"
	default:
		return "Unknown"
	}
}

// Event is a single notification.
type Event struct {
	Type      Type           `json:"type"`
	TxID      string         `json:"txId,omitempty"`
	Recipe    int            `json:"recipe,omitempty"`
	ItemID    int            `json:"itemId,omitempty"`
	Count     int            `json:"count,omitempty"`
	X         int            `json:"x,omitempty"`
	Y         int            `json:"y,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus manages event subscriptions and delivery.
type Bus interface {
	// Subscribe registers a handler under a subscriber name, replacing any
	// previous handler with that name.
	Subscribe(name string, handler func(Event))

	// Unsubscribe removes the named handler.
	Unsubscribe(name string)

	// Publish delivers an event to every handler.
	Publish(event Event)
}

// SimpleBus is an in-memory bus. Handlers run synchronously on the
// publishing goroutine, in subscriber name order.
type SimpleBus struct {
	mu       sync.RWMutex
	handlers map[string]func(Event)
	now      func() time.Time
}

// NewSimpleBus creates an empty bus.
func NewSimpleBus() *SimpleBus {
	return &SimpleBus{
		handlers: make(map[string]func(Event)),
		now:      time.Now,
	}
}

// Subscribe registers a handler under name.
func (bus *SimpleBus) Subscribe(name string, handler func(Event)) {
	if handler == nil {
		return
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers[name] = handler
}

// Unsubscribe removes the handler registered under name.
func (bus *SimpleBus) Unsubscribe(name string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.handlers, name)
}

// Publish stamps the event if needed and calls every handler.
func (bus *SimpleBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = bus.now()
	}

	bus.mu.RLock()
	names := make([]string, 0, len(bus.handlers))
	for name := range bus.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	handlers := make([]func(Event), 0, len(names))
	for _, name := range names {
		handlers = append(handlers, bus.handlers[name])
	}
	bus.mu.RUnlock()

	// called without the lock so handlers may subscribe or publish
	for _, h := range handlers {
		h(event)
	}
}

// NullBus is a bus that does nothing.
type NullBus struct{}

// Subscribe does nothing.
func (NullBus) Subscribe(string, func(Event)) {}

// Unsubscribe does nothing.
func (NullBus) Unsubscribe(string) {}

// Publish does nothing.
func (NullBus) Publish(Event) {}

// OrNull returns bus, or a NullBus when bus is nil.
func OrNull(bus Bus) Bus {
	if bus == nil {
		return NullBus{}
	}
	return bus
}
