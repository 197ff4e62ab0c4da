package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/fleetbot/internal/domain/validator"
)

// Session is a user's position within a flow plus the values collected so far
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FlowID    FlowID    `json:"flow_id"`
	StepID    StepID    `json:"step_id"`
	Fields    Fields    `json:"fields"`
	Seed      Fields    `json:"seed,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// AwaitingCommit is set when the terminal commit failed transiently;
	// the next input retries it.
	AwaitingCommit bool `json:"awaiting_commit,omitempty"`

	// Resuming is set after a finalizer sent the user back to one field;
	// once that field is accepted, steps already answered are skipped.
	Resuming bool `json:"resuming,omitempty"`

	// Committed marks a session whose record was stored but which could not
	// be cleared afterwards. It is dropped on the next load, never replayed.
	Committed bool  `json:"committed,omitempty"`
	RecordID  int64 `json:"record_id,omitempty"`
}

// NewSession creates a session positioned at the flow's first step
func NewSession(userID string, flow *Flow, seed Fields, now time.Time) *Session {
	if seed == nil {
		seed = Fields{}
	}
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		FlowID:    flow.ID,
		StepID:    flow.First().ID,
		Fields:    Fields{},
		Seed:      seed,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy
func (s *Session) Clone() *Session {
	cp := *s
	cp.Fields = s.Fields.Clone()
	cp.Seed = s.Seed.Clone()
	return &cp
}

// Scope exposes collected fields layered over the seed to validators
func (s *Session) Scope() validator.Scope {
	return layered{fields: s.Fields, seed: s.Seed}
}

// Expired reports whether the session has been idle longer than ttl.
// A zero ttl never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
