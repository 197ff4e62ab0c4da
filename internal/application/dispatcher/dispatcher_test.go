package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domainwf.Session
}

func (m *mockSessionStore) Get(ctx context.Context, userID string) (*domainwf.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (m *mockSessionStore) Put(ctx context.Context, s *domainwf.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s.Clone()
	return nil
}

func (m *mockSessionStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

type mockDirectory map[string]entity.Actor

func (m mockDirectory) Resolve(ctx context.Context, userID string) (entity.Actor, error) {
	if a, ok := m[userID]; ok {
		return a, nil
	}
	return entity.Actor{UserID: userID, Role: entity.RoleGuest}, nil
}

type mockCommands struct {
	calls []Command
	err   error
}

func (m *mockCommands) Execute(ctx context.Context, actor entity.Actor, cmd Command) (string, error) {
	m.calls = append(m.calls, cmd)
	if m.err != nil {
		return "", m.err
	}
	return "ran " + string(cmd), nil
}

type mockRenderer struct{}

func (mockRenderer) Result(res *workflow.Result) string {
	return fmt.Sprintf("%s:%s:%s", res.Outcome, res.Prompt, res.Reason)
}

func (mockRenderer) Text(key string, params map[string]string) string {
	return "text:" + key
}

type fixture struct {
	d        *Dispatcher
	store    *mockSessionStore
	commands *mockCommands
	finished []domainwf.Fields
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    &mockSessionStore{sessions: map[string]*domainwf.Session{}},
		commands: &mockCommands{},
	}

	b := domainwf.NewBuilder()
	b.Flow("add_driver").
		Step("name", "name", validator.MinLength(2)).
		Step("phone", "phone", validator.Phone())
	b.Flow("fuel_report").
		Step("fuel_level", "fuel_level", validator.Percentage())
	reg, err := b.Build()
	require.NoError(t, err)

	commit := workflow.FinalizerFunc(func(ctx context.Context, req workflow.CommitRequest) workflow.CommitResult {
		f.finished = append(f.finished, req.Fields)
		return workflow.Committed(1, nil)
	})
	engine, err := workflow.NewEngine(reg, f.store, map[domainwf.FlowID]workflow.Finalizer{
		"add_driver":  commit,
		"fuel_report": commit,
	})
	require.NoError(t, err)

	triggers, err := NewTriggerTable(engine.IsCancel,
		Trigger{Phrases: []string{"add driver", "➕ Add driver"}, Flow: "add_driver", Audience: AudienceAdmin},
		Trigger{Phrases: []string{"fuel"}, Flow: "fuel_report", Audience: AudienceDriver},
		Trigger{Phrases: []string{"/help"}, Command: CommandHelp},
		Trigger{Phrases: []string{"stats"}, Command: CommandStats, Audience: AudienceAdmin},
	)
	require.NoError(t, err)

	lanes := NewLanes(4, 8, nil)
	t.Cleanup(lanes.Close)

	f.d, err = New(Deps{
		Engine:   engine,
		Triggers: triggers,
		Directory: mockDirectory{
			"admin":  {UserID: "admin", Role: entity.RoleAdmin},
			"driver": {UserID: "driver", Role: entity.RoleDriver, DriverID: 5, VehicleID: 2},
		},
		Commands: f.commands,
		Renderer: mockRenderer{},
		Lanes:    lanes,
	}, opts...)
	require.NoError(t, err)
	return f
}

func (f *fixture) send(t *testing.T, user, text string) *Reply {
	t.Helper()
	reply, err := f.d.Dispatch(context.Background(), Message{UserID: user, ChatID: "chat-" + user, Text: text})
	require.NoError(t, err)
	return reply
}

func TestNewTriggerTable_Rejects(t *testing.T) {
	isCancel := func(s string) bool { return s == "/cancel" }

	tests := []struct {
		name     string
		triggers []Trigger
	}{
		{"duplicate after normalization", []Trigger{
			{Phrases: []string{"Open Shift"}, Flow: "open_shift"},
			{Phrases: []string{"  open   shift "}, Flow: "close_shift"},
		}},
		{"cancel token", []Trigger{{Phrases: []string{"/CANCEL"}, Command: CommandHelp}}},
		{"flow and command", []Trigger{{Phrases: []string{"x"}, Flow: "f", Command: CommandHelp}}},
		{"neither flow nor command", []Trigger{{Phrases: []string{"x"}}}},
		{"no phrases", []Trigger{{Flow: "f"}}},
		{"blank phrase", []Trigger{{Phrases: []string{"   "}, Flow: "f"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTriggerTable(isCancel, tt.triggers...)
			assert.ErrorIs(t, err, ErrInvalidTrigger)
		})
	}
}

func TestTriggerTable_Match(t *testing.T) {
	table, err := NewTriggerTable(nil,
		Trigger{Phrases: []string{"🚗 Open shift", "open shift"}, Flow: "open_shift", Audience: AudienceDriver},
	)
	require.NoError(t, err)

	tr, ok := table.Match("  OPEN   shift")
	require.True(t, ok)
	assert.Equal(t, domainwf.FlowID("open_shift"), tr.Flow)

	_, ok = table.Match("open")
	assert.False(t, ok)
	assert.Equal(t, []string{"open shift", "🚗 open shift"}, table.Phrases())
}

func TestNew_RejectsUnknownFlowTrigger(t *testing.T) {
	f := newFixture(t)
	triggers, err := NewTriggerTable(nil, Trigger{Phrases: []string{"x"}, Flow: "missing"})
	require.NoError(t, err)

	deps := f.d.deps
	deps.Triggers = triggers
	_, err = New(deps)
	assert.ErrorIs(t, err, ErrInvalidTrigger)
}

func TestAudience_Allows(t *testing.T) {
	guest := entity.Actor{Role: entity.RoleGuest}
	driver := entity.Actor{Role: entity.RoleDriver, DriverID: 1}
	admin := entity.Actor{Role: entity.RoleAdmin}

	assert.True(t, AudienceAny.Allows(guest))
	assert.True(t, AudienceGuest.Allows(guest))
	assert.False(t, AudienceGuest.Allows(driver))
	assert.True(t, AudienceDriver.Allows(driver))
	assert.False(t, AudienceDriver.Allows(admin))
	assert.True(t, AudienceAdmin.Allows(admin))
	assert.False(t, AudienceAdmin.Allows(driver))
}

func TestDispatch_ActiveSessionOwnsInput(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "admin", "add driver")
	assert.Equal(t, KindStart, reply.Kind)
	assert.Equal(t, workflow.OutcomePrompted, reply.Outcome)

	// a phrase that is also a trigger is still the answer to the current step
	cls, err := f.d.Classify(context.Background(), Message{UserID: "admin", Text: "stats"})
	require.NoError(t, err)
	assert.Equal(t, KindContinue, cls.Kind)

	reply = f.send(t, "admin", "stats")
	assert.Equal(t, KindContinue, reply.Kind)
	assert.Equal(t, workflow.OutcomePrompted, reply.Outcome)
	assert.Empty(t, f.commands.calls)

	reply = f.send(t, "admin", "+79991234567")
	assert.Equal(t, workflow.OutcomeCompleted, reply.Outcome)
	require.Len(t, f.finished, 1)
	assert.Equal(t, "stats", f.finished[0]["name"])
}

func TestDispatch_CancelRoutesToEngine(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "admin", "cancel")
	assert.Equal(t, KindContinue, reply.Kind)
	assert.Equal(t, workflow.OutcomeIdle, reply.Outcome)

	f.send(t, "admin", "add driver")
	reply = f.send(t, "admin", "🚫 Cancel")
	assert.Equal(t, workflow.OutcomeCancelled, reply.Outcome)
	assert.Empty(t, f.finished)
}

func TestDispatch_AudienceRefusalCreatesNoSession(t *testing.T) {
	tests := []struct {
		user string
		text string
		want string
	}{
		{"driver", "add driver", "text:" + KeyNotAuthorized},
		{"stranger", "fuel", "text:" + KeyLoginRequired},
		{"admin", "fuel", "text:" + KeyNotAuthorized},
	}

	for _, tt := range tests {
		t.Run(tt.user+" "+tt.text, func(t *testing.T) {
			f := newFixture(t)
			reply := f.send(t, tt.user, tt.text)
			assert.Equal(t, tt.want, reply.Text)
			assert.Empty(t, f.store.sessions)
		})
	}
}

func TestDispatch_DriverSeedReachesSession(t *testing.T) {
	f := newFixture(t)
	f.send(t, "driver", "fuel")

	s := f.store.sessions["driver"]
	require.NotNil(t, s)
	assert.Equal(t, "5", s.Seed[domainwf.SeedDriverID])
	assert.Equal(t, "2", s.Seed[domainwf.SeedVehicleID])
}

func TestDispatch_Commands(t *testing.T) {
	f := newFixture(t)

	reply := f.send(t, "stranger", "/HELP")
	assert.Equal(t, KindCommand, reply.Kind)
	assert.Equal(t, "ran help", reply.Text)
	assert.Equal(t, "chat-stranger", reply.ChatID)

	f.commands.err = fmt.Errorf("query: %w", domainwf.ErrStoreUnavailable)
	reply = f.send(t, "admin", "stats")
	assert.Equal(t, "text:"+KeyStoreUnavailable, reply.Text)

	f.commands.err = errors.New("boom")
	reply = f.send(t, "admin", "stats")
	assert.Equal(t, "text:"+KeyInternalError, reply.Text)
}

func TestDispatch_Unrecognized(t *testing.T) {
	f := newFixture(t)
	reply := f.send(t, "driver", "what is this")
	assert.Equal(t, KindUnrecognized, reply.Kind)
	assert.Equal(t, "text:"+KeyUnrecognized, reply.Text)
}

func TestDispatch_HandlesLateDeliveryInSendOrder(t *testing.T) {
	f := newFixture(t, WithReorderWindow(80*time.Millisecond))
	f.send(t, "admin", "add driver")

	sent := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	name := Message{UserID: "admin", MessageID: "m1", Text: "Ivan", ReceivedAt: sent}
	phone := Message{UserID: "admin", MessageID: "m2", Text: "+79995554433", ReceivedAt: sent.Add(time.Second)}

	var wg sync.WaitGroup
	dispatch := func(msg Message) {
		defer wg.Done()
		_, err := f.d.Dispatch(context.Background(), msg)
		assert.NoError(t, err)
	}

	// the phone reaches the dispatcher first although it was sent second
	wg.Add(2)
	go dispatch(phone)
	time.Sleep(10 * time.Millisecond)
	go dispatch(name)
	wg.Wait()

	require.Len(t, f.finished, 1)
	assert.Equal(t, "Ivan", f.finished[0]["name"])
	assert.Equal(t, "+79995554433", f.finished[0]["phone"])
}

func TestSequencer_ReleasesInReceivedOrder(t *testing.T) {
	s := newSequencer(0, zap.NewNop())
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := s.acquire(ctx, Message{UserID: "u", ReceivedAt: base.Add(time.Second)})
	require.NoError(t, err)

	// an earlier message queues ahead of everything not yet acquired but
	// never ahead of the running one
	later := s.admit(Message{UserID: "u", ReceivedAt: base.Add(2 * time.Second)})
	earlier := s.admit(Message{UserID: "u", ReceivedAt: base})
	assert.Equal(t, []*ticket{first, earlier, later}, s.users["u"].pending)

	busyCtx, stop := context.WithTimeout(ctx, 20*time.Millisecond)
	_, err = s.acquire(busyCtx, Message{UserID: "u", ReceivedAt: base.Add(-time.Second)})
	stop()
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a running message keeps the head")

	other, err := s.acquire(ctx, Message{UserID: "v", ReceivedAt: base})
	require.NoError(t, err, "other users are not held back")
	s.release(other, true)

	s.release(earlier, true)
	s.release(first, true)
	assert.Equal(t, base.Add(time.Second), s.users["u"].last)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	blocked := s.admit(Message{UserID: "u", ReceivedAt: base.Add(3 * time.Second)})
	assert.Equal(t, later, s.users["u"].pending[0])
	s.release(blocked, false)

	_, err = s.acquire(waitCtx, Message{UserID: "u", ReceivedAt: base.Add(4 * time.Second)})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []*ticket{later}, s.users["u"].pending, "a timed out message leaves the queue")
}

func TestLanes_PreserveOrderPerKey(t *testing.T) {
	lanes := NewLanes(3, 4, nil)
	defer lanes.Close()

	var mu sync.Mutex
	seen := map[string][]int{}
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b", "c", "d"} {
			i, key := i, key
			require.NoError(t, lanes.Submit(ctx, key, func(context.Context) {
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			}))
		}
	}
	require.NoError(t, lanes.Do(ctx, "a", func(context.Context) {}))
	lanes.Close()

	for key, got := range seen {
		require.Len(t, got, 50, key)
		for i := range got {
			assert.Equal(t, i, got[i], "key %s", key)
		}
	}
}

func TestLanes_IndexIsStable(t *testing.T) {
	lanes := NewLanes(8, 1, nil)
	defer lanes.Close()

	first := lanes.Index("ou_42")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, lanes.Index("ou_42"))
	}
	assert.Less(t, first, lanes.Size())
}

func TestLanes_RecoverPanics(t *testing.T) {
	lanes := NewLanes(1, 1, nil)
	defer lanes.Close()

	ctx := context.Background()
	require.NoError(t, lanes.Do(ctx, "k", func(context.Context) { panic("boom") }))

	ran := false
	require.NoError(t, lanes.Do(ctx, "k", func(context.Context) { ran = true }))
	assert.True(t, ran)
}

func TestLanes_Closed(t *testing.T) {
	lanes := NewLanes(2, 1, nil)
	lanes.Close()
	lanes.Close()

	err := lanes.Do(context.Background(), "k", func(context.Context) {})
	assert.ErrorIs(t, err, ErrLanesClosed)
}

func TestLanes_DoHonorsContext(t *testing.T) {
	lanes := NewLanes(1, 1, nil)
	defer lanes.Close()

	release := make(chan struct{})
	require.NoError(t, lanes.Submit(context.Background(), "k", func(context.Context) { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lanes.Do(ctx, "k", func(context.Context) {})
	close(release)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
