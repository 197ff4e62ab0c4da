// Package diskv keeps sessions as JSON files so they survive restarts of a
// single bot instance.
package diskv

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/peterbourgon/diskv/v3"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Store is a diskv-backed session store. Idle sessions are dropped when read
// and by Sweep.
type Store struct {
	dv  *diskv.Diskv
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for idle expiry
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store under path. A zero idleTTL keeps sessions until cleared.
func New(path string, idleTTL time.Duration, opts ...Option) *Store {
	flatTransform := func(s string) []string { return []string{} }
	s := &Store{
		dv: diskv.New(diskv.Options{
			BasePath:     path,
			Transform:    flatTransform,
			CacheSizeMax: 1024 * 1024,
		}),
		ttl: idleTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// user ids come from the chat platform; hex keeps them filename safe
func key(userID string) string {
	return hex.EncodeToString([]byte(userID))
}

// Get returns the user's session, or nil when absent or idle too long
func (s *Store) Get(_ context.Context, userID string) (*workflow.Session, error) {
	session, err := s.read(key(userID))
	if err != nil || session == nil {
		return nil, err
	}
	if session.Expired(s.now(), s.ttl) {
		if err := s.erase(key(userID)); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return session, nil
}

// Put writes the session
func (s *Store) Put(_ context.Context, session *workflow.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.dv.Write(key(session.UserID), data); err != nil {
		return fmt.Errorf("failed to write session: %w", errors.Join(workflow.ErrStoreUnavailable, err))
	}
	return nil
}

// Clear removes the user's session
func (s *Store) Clear(_ context.Context, userID string) error {
	return s.erase(key(userID))
}

// Sweep removes every idle session and reports how many were removed
func (s *Store) Sweep(ctx context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}

	cancel := make(chan struct{})
	defer close(cancel)

	var keys []string
	for k := range s.dv.Keys(cancel) {
		keys = append(keys, k)
	}

	now := s.now()
	removed := 0
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		session, err := s.read(k)
		if err != nil {
			// unreadable files are dropped as well
			if err := s.erase(k); err != nil {
				return removed, err
			}
			removed++
			continue
		}
		if session != nil && session.Expired(now, s.ttl) {
			if err := s.erase(k); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (s *Store) read(k string) (*workflow.Session, error) {
	data, err := s.dv.Read(k)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", errors.Join(workflow.ErrStoreUnavailable, err))
	}

	var session workflow.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *Store) erase(k string) error {
	if err := s.dv.Erase(k); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to erase session: %w", errors.Join(workflow.ErrStoreUnavailable, err))
	}
	return nil
}

var (
	_ port.SessionStore   = (*Store)(nil)
	_ port.SessionSweeper = (*Store)(nil)
)
