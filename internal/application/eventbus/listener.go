package eventbus

import (
	"context"
	"errors"

	"github.com/garyjia/fleetbot/internal/domain/event"
)

// ErrClosed is returned when publishing to, or closing, a closed bus
var ErrClosed = errors.New("event bus is closed")

// Listener processes domain events
type Listener func(ctx context.Context, evt *event.Event) error

// ListenerInfo contains listener metadata for debugging
type ListenerInfo struct {
	Name      string
	EventType event.Type
	Listener  Listener
}
