package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/grievance-portal/internal/clock"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// inMemoryDispatcher runs handlers synchronously on the publishing goroutine.
type inMemoryDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	clock     clock.Clock
}

// NewInMemoryDispatcher creates a dispatcher that stamps events with clk.
// A nil clk uses wall time.
func NewInMemoryDispatcher(clk clock.Clock) Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	return &inMemoryDispatcher{
		listeners: make(map[EventType][]EventHandler),
		clock:     clk,
	}
}

// Publish assigns a missing ID and timestamp, then invokes every handler
// for the event type. A failing or panicking handler does not stop the
// others; their errors are joined, each labelled with the event type.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.clock.Now().UTC()
	}

	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := invoke(ctx, handler, event); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", event.Type, event.ID, err))
		}
	}
	return errors.Join(errs...)
}

func invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe registers a handler for the given event type.
func (d *inMemoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// SubscribeAll registers handler for each of types.
func SubscribeAll(d Dispatcher, types []EventType, handler EventHandler) {
	for _, eventType := range types {
		d.Subscribe(eventType, handler)
	}
}
