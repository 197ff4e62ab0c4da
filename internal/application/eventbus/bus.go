package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/fleetbot/internal/domain/event"
)

// Bus routes domain events to registered listeners
type Bus interface {
	// Subscribe registers a listener for an event type
	Subscribe(eventType event.Type, listener Listener)

	// SubscribeNamed registers a listener with a name for debugging
	SubscribeNamed(eventType event.Type, name string, listener Listener)

	// Unsubscribe removes a listener by name
	Unsubscribe(eventType event.Type, name string)

	// Publish sends the event to all listeners synchronously, in
	// registration order, and returns the first error
	Publish(ctx context.Context, evt *event.Event) error

	// PublishAsync sends the event to every listener on its own goroutine
	PublishAsync(ctx context.Context, evt *event.Event)

	// Listeners returns registered listeners for an event type
	Listeners(eventType event.Type) []ListenerInfo

	// Close shuts down the bus and waits for async listeners
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type bus struct {
	mu        sync.RWMutex
	listeners map[event.Type][]ListenerInfo
	logger    Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the bus
type Option func(*bus)

// WithLogger sets a logger for the bus
func WithLogger(logger Logger) Option {
	return func(b *bus) {
		b.logger = logger
	}
}

// New creates a new event bus
func New(opts ...Option) Bus {
	b := &bus{
		listeners: make(map[event.Type][]ListenerInfo),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe registers a listener with an auto-generated name
func (b *bus) Subscribe(eventType event.Type, listener Listener) {
	b.mu.RLock()
	name := fmt.Sprintf("%s-%d", eventType, len(b.listeners[eventType]))
	b.mu.RUnlock()
	b.SubscribeNamed(eventType, name, listener)
}

// SubscribeNamed registers a listener with a specific name
func (b *bus) SubscribeNamed(eventType event.Type, name string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listeners[eventType] = append(b.listeners[eventType], ListenerInfo{
		Name:      name,
		EventType: eventType,
		Listener:  listener,
	})

	if b.logger != nil {
		b.logger.Info("Listener registered",
			"event_type", eventType,
			"listener", name,
		)
	}
}

// Unsubscribe removes a listener by name
func (b *bus) Unsubscribe(eventType event.Type, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.listeners[eventType]
	kept := make([]ListenerInfo, 0, len(current))
	for _, l := range current {
		if l.Name != name {
			kept = append(kept, l)
		}
	}
	b.listeners[eventType] = kept
}

func (b *bus) snapshot(eventType event.Type) []ListenerInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]ListenerInfo(nil), b.listeners[eventType]...)
}

// Publish delivers the event synchronously
func (b *bus) Publish(ctx context.Context, evt *event.Event) error {
	if b.closed.Load() {
		return ErrClosed
	}

	for _, info := range b.snapshot(evt.Type) {
		if err := b.safeExecute(ctx, evt, info); err != nil {
			if b.logger != nil {
				b.logger.Error("Listener error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"listener", info.Name,
					"error", err,
				)
			}
			return fmt.Errorf("listener %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// PublishAsync delivers the event without waiting for listeners
func (b *bus) PublishAsync(ctx context.Context, evt *event.Event) {
	if b.closed.Load() {
		if b.logger != nil {
			b.logger.Error("Cannot publish event, bus is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}

	for _, info := range b.snapshot(evt.Type) {
		b.wg.Add(1)
		go func(l ListenerInfo) {
			defer b.wg.Done()

			if err := b.safeExecute(ctx, evt, l); err != nil && b.logger != nil {
				b.logger.Error("Async listener error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"listener", l.Name,
					"error", err,
				)
			}
		}(info)
	}
}

// Listeners returns registered listeners without their functions
func (b *bus) Listeners(eventType event.Type) []ListenerInfo {
	current := b.snapshot(eventType)
	for i := range current {
		current[i].Listener = nil
	}
	return current
}

// Close shuts down the bus and waits for async listeners to complete
func (b *bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	b.wg.Wait()

	if b.logger != nil {
		b.logger.Info("Event bus closed")
	}

	return nil
}

// safeExecute runs a listener with panic recovery
func (b *bus) safeExecute(ctx context.Context, evt *event.Event, info ListenerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()

	return info.Listener(ctx, evt)
}
