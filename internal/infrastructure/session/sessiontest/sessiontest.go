// Package sessiontest checks that a session store behaves the way the flow
// engine expects.
package sessiontest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Session returns a session for userID positioned mid-flow, updated at now
func Session(userID string, now time.Time) *workflow.Session {
	return &workflow.Session{
		ID:        "sess-" + userID,
		UserID:    userID,
		FlowID:    "add_driver",
		StepID:    "phone",
		Fields:    workflow.Fields{"name": "Ivan Petrov"},
		Seed:      workflow.Fields{workflow.SeedDriverID: "7"},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Run exercises newStore against the session store contract
func Run(t *testing.T, newStore func(t *testing.T) port.SessionStore) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	t.Run("missing user returns nil", func(t *testing.T) {
		store := newStore(t)
		got, err := store.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put then get", func(t *testing.T) {
		store := newStore(t)
		want := Session("ou_put", now)
		require.NoError(t, store.Put(ctx, want))

		got, err := store.Get(ctx, "ou_put")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.FlowID, got.FlowID)
		assert.Equal(t, want.StepID, got.StepID)
		assert.Equal(t, want.Fields, got.Fields)
		assert.Equal(t, want.Seed, got.Seed)
		assert.True(t, want.StartedAt.Equal(got.StartedAt))
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("put replaces previous session", func(t *testing.T) {
		store := newStore(t)
		first := Session("ou_replace", now)
		require.NoError(t, store.Put(ctx, first))

		second := Session("ou_replace", now)
		second.ID = "sess-second"
		second.FlowID = "fuel_report"
		second.StepID = "fuel_level"
		second.Fields = workflow.Fields{}
		require.NoError(t, store.Put(ctx, second))

		got, err := store.Get(ctx, "ou_replace")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "sess-second", got.ID)
		assert.Equal(t, workflow.FlowID("fuel_report"), got.FlowID)
		assert.Empty(t, got.Fields)
	})

	t.Run("returned session is detached", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, Session("ou_copy", now)))

		got, err := store.Get(ctx, "ou_copy")
		require.NoError(t, err)
		got.Fields["name"] = "changed"
		got.StepID = "name"

		again, err := store.Get(ctx, "ou_copy")
		require.NoError(t, err)
		assert.Equal(t, "Ivan Petrov", again.Fields["name"])
		assert.Equal(t, workflow.StepID("phone"), again.StepID)
	})

	t.Run("users are isolated", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, Session("ou_a", now)))
		require.NoError(t, store.Put(ctx, Session("ou_b", now)))
		require.NoError(t, store.Clear(ctx, "ou_a"))

		a, err := store.Get(ctx, "ou_a")
		require.NoError(t, err)
		assert.Nil(t, a)

		b, err := store.Get(ctx, "ou_b")
		require.NoError(t, err)
		assert.NotNil(t, b)
	})

	t.Run("clear missing user is a no-op", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Clear(ctx, "ghost"))
	})

	t.Run("flags survive", func(t *testing.T) {
		store := newStore(t)
		s := Session("ou_flags", now)
		s.AwaitingCommit = true
		s.Resuming = true
		s.Committed = true
		s.RecordID = 42
		require.NoError(t, store.Put(ctx, s))

		got, err := store.Get(ctx, "ou_flags")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.AwaitingCommit)
		assert.True(t, got.Resuming)
		assert.True(t, got.Committed)
		assert.Equal(t, int64(42), got.RecordID)
	})
}
