package port

import (
	"context"

	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

// MessageSender delivers plain text to a chat user
type MessageSender interface {
	SendText(ctx context.Context, userID string, text string) error
}

// Directory resolves a chat identity into an Actor.
// Unknown users resolve to a guest actor, not an error.
type Directory interface {
	Resolve(ctx context.Context, userID string) (entity.Actor, error)
}

// SessionStore keeps at most one in-progress Session per user.
// Get returns nil, nil when the user has no (unexpired) session.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*workflow.Session, error)
	Put(ctx context.Context, session *workflow.Session) error
	Clear(ctx context.Context, userID string) error
}

// SessionSweeper is implemented by stores that need explicit eviction of idle sessions
type SessionSweeper interface {
	Sweep(ctx context.Context) (int, error)
}
