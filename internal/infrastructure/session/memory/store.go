// Package memory keeps sessions in process memory with idle expiry.
package memory

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Store is a go-cache backed session store. Every Put restarts the idle timer.
type Store struct {
	cache *cache.Cache
}

// New creates a store that forgets sessions idle for longer than idleTTL.
// A zero idleTTL keeps sessions until they are cleared.
func New(idleTTL time.Duration) *Store {
	expiration, cleanup := cache.NoExpiration, 10*time.Minute
	if idleTTL > 0 {
		expiration = idleTTL
		if idleTTL < cleanup {
			cleanup = idleTTL
		}
	}
	return &Store{cache: cache.New(expiration, cleanup)}
}

// Get returns a copy of the user's session, or nil
func (s *Store) Get(_ context.Context, userID string) (*workflow.Session, error) {
	v, found := s.cache.Get(userID)
	if !found {
		return nil, nil
	}
	return v.(*workflow.Session).Clone(), nil
}

// Put stores a copy of the session
func (s *Store) Put(_ context.Context, session *workflow.Session) error {
	s.cache.Set(session.UserID, session.Clone(), cache.DefaultExpiration)
	return nil
}

// Clear removes the user's session
func (s *Store) Clear(_ context.Context, userID string) error {
	s.cache.Delete(userID)
	return nil
}

// Sweep drops expired sessions ahead of the janitor and reports how many went
func (s *Store) Sweep(_ context.Context) (int, error) {
	before := s.cache.ItemCount()
	s.cache.DeleteExpired()
	return before - s.cache.ItemCount(), nil
}

// Len returns the number of stored sessions, including expired ones not yet swept
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

var (
	_ port.SessionStore   = (*Store)(nil)
	_ port.SessionSweeper = (*Store)(nil)
)
