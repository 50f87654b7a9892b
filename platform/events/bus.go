package events

import (
	"context"
	"sync"

	"valora_backend/platform/logger"
)

// InMemoryBus is a synchronous-or-async in-process event bus.
// Handlers for an event type run in subscription order; a panicking
// handler is recovered and logged so it cannot take down the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	subscribers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	for _, h := range subscribers {
		go func(h Handler) {
			defer b.recoverPanic(event)
			if err := h.Handle(ctx, event); err != nil {
				b.log.Warn("event handler failed", "event", event.EventName(), "error", err)
			}
		}(h)
	}
}

// PublishSync dispatches the event and waits for every handler.
// The first handler error is returned; remaining handlers still run.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	subscribers := append([]Handler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range subscribers {
		func(h Handler) {
			defer b.recoverPanic(event)
			if err := h.Handle(ctx, event); err != nil {
				b.log.Warn("event handler failed", "event", event.EventName(), "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}(h)
	}
	return firstErr
}

func (b *InMemoryBus) recoverPanic(event Event) {
	if r := recover(); r != nil {
		b.log.Error("event handler panicked", "event", event.EventName(), "panic", r)
	}
}

var _ Bus = (*InMemoryBus)(nil)
