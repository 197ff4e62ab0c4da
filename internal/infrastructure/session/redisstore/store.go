// Package redisstore keeps sessions in Redis so several bot replicas can share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

const defaultPrefix = "fleetbot"

// Store is a Redis-backed session store. Sessions are JSON values under
// "<prefix>:session:<user>" and expire after the idle TTL, refreshed on Put.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// Option configures a Store
type Option func(*Store)

// WithTTL sets the idle expiry. Zero keeps sessions until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis-backed session store
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		ttl:    24 * time.Hour,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(userID string) string {
	return s.prefix + ":session:" + userID
}

// Get returns the user's session, or nil
func (s *Store) Get(ctx context.Context, userID string) (*workflow.Session, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, unavailable("get", err)
	}

	var session workflow.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Put stores the session and restarts its TTL
func (s *Store) Put(ctx context.Context, session *workflow.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.UserID), data, s.ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Clear removes the user's session
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("redis %s failed: %w", op, errors.Join(workflow.ErrStoreUnavailable, err))
}

var _ port.SessionStore = (*Store)(nil)
