package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/event"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Mock implementations

type mockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domainwf.Session
	getErr   error

	// clearFailures makes the next n Clear calls fail
	clearFailures int
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{sessions: make(map[string]*domainwf.Session)}
}

func (m *mockSessionStore) Get(ctx context.Context, userID string) (*domainwf.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
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
	if m.clearFailures > 0 {
		m.clearFailures--
		return domainwf.ErrStoreUnavailable
	}
	delete(m.sessions, userID)
	return nil
}

func (m *mockSessionStore) peek(userID string) *domainwf.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.Clone()
	}
	return nil
}

// fleet is a tiny stand-in for the Store used by the test finalizers
type fleet struct {
	mu          sync.Mutex
	drivers     map[string]string
	shifts      map[string]int64
	deliveries  map[string]string
	commits     int
	unavailable int
	missing     bool
}

func newFleet() *fleet {
	return &fleet{
		drivers:    map[string]string{"+79990000000": "Existing"},
		shifts:     map[string]int64{},
		deliveries: map[string]string{},
	}
}

func (f *fleet) snapshot() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%v|%v|%v|%d", f.drivers, f.shifts, f.deliveries, f.commits)
}

func (f *fleet) hasShift(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.shifts[userID]
	return ok
}

func (f *fleet) finalizers() map[domainwf.FlowID]Finalizer {
	return map[domainwf.FlowID]Finalizer{
		"add_driver": FinalizerFunc(func(ctx context.Context, req CommitRequest) CommitResult {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, exists := f.drivers[req.Fields["phone"]]; exists {
				return Duplicate("phone")
			}
			f.drivers[req.Fields["phone"]] = req.Fields["name"]
			f.commits++
			return Committed(int64(len(f.drivers)), nil)
		}),
		"open_shift": FinalizerFunc(func(ctx context.Context, req CommitRequest) CommitResult {
			m, err := req.Fields.Int("mileage_start")
			if err != nil {
				return Unavailable(err)
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.shifts[req.UserID] = m
			f.commits++
			return Committed(1, map[string]string{"mileage_start": strconv.FormatInt(m, 10)})
		}),
		"close_shift": FinalizerFunc(func(ctx context.Context, req CommitRequest) CommitResult {
			end, _ := req.Fields.Int("mileage_end")
			start, _ := req.Seed.Int("mileage_start")
			if end-start <= 0 {
				return Invalid("mileage_end", string(validator.ReasonMustExceedPrevious))
			}
			f.mu.Lock()
			defer f.mu.Unlock()
			f.commits++
			return Committed(2, map[string]string{"distance": strconv.FormatInt(end-start, 10)})
		}),
		"delivery_status": FinalizerFunc(func(ctx context.Context, req CommitRequest) CommitResult {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.missing {
				return NotFound("delivery_not_found")
			}
			if f.unavailable > 0 {
				f.unavailable--
				return Unavailable(errors.New("database is locked"))
			}
			f.deliveries[req.UserID] = req.Fields["status"]
			f.commits++
			return Committed(3, nil)
		}),
	}
}

func testRegistry(t *testing.T, f *fleet) *domainwf.Registry {
	t.Helper()
	b := domainwf.NewBuilder()

	b.Flow("add_driver").
		Step("name", "name", validator.MinLength(2)).
		Step("phone", "phone", validator.Phone())

	b.Flow("open_shift").
		Prepare(func(ctx context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
			if f.hasShift(seed[domainwf.SeedUserID]) {
				return nil, domainwf.BusyWith("shift_active")
			}
			return seed, nil
		}).
		Step("start_photo", "start_photo", validator.Photo()).
		Step("mileage_start", "mileage_start", validator.Integer(0, 9999999))

	b.Flow("close_shift").
		Prepare(func(ctx context.Context, seed domainwf.Fields) (domainwf.Fields, error) {
			if !seed.Has("mileage_start") {
				return nil, domainwf.Refuse("no_active_shift")
			}
			return seed, nil
		}).
		Step("end_photo", "end_photo", validator.Photo()).
		Step("mileage_end", "mileage_end", validator.Integer(0, 9999999).Above("mileage_start"))

	b.Flow("delivery_status").
		Step("status", "status", validator.OneOf(
			validator.Opt("delivered", "Delivered"),
			validator.Opt("failed", "Failed"),
		)).
		Branch("delivered", "proof_photo").
		Branch("failed", "reason").
		Step("proof_photo", "proof_photo", validator.Photo()).Then(domainwf.Terminal).
		Step("reason", "reason", validator.MinLength(5))

	reg, err := b.Build()
	require.NoError(t, err)
	return reg
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
	events   []*event.Event
}

func (r *recorder) ObserveOutcome(flowID, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, flowID+":"+outcome)
}

func (r *recorder) PublishAsync(ctx context.Context, evt *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) eventTypes() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	engine Engine
	store  *mockSessionStore
	fleet  *fleet
	rec    *recorder
	clock  time.Time
}

func newHarness(t *testing.T, opts ...EngineOption) *harness {
	t.Helper()
	h := &harness{
		store: newMockSessionStore(),
		fleet: newFleet(),
		rec:   &recorder{},
		clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	all := append([]EngineOption{
		WithClock(func() time.Time { return h.clock }),
		WithObserver(h.rec),
		WithPublisher(h.rec),
	}, opts...)

	e, err := NewEngine(testRegistry(t, h.fleet), h.store, h.fleet.finalizers(), all...)
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) start(t *testing.T, user string, flow domainwf.FlowID, seed domainwf.Fields) *Result {
	t.Helper()
	if seed == nil {
		seed = domainwf.Fields{}
	}
	seed[domainwf.SeedUserID] = user
	res, err := h.engine.Handle(context.Background(), user, StartFlow(flow, seed))
	require.NoError(t, err)
	return res
}

func (h *harness) send(t *testing.T, user string, in validator.Input) *Result {
	t.Helper()
	res, err := h.engine.Handle(context.Background(), user, Continue(in))
	require.NoError(t, err)
	return res
}

func text(s string) validator.Input { return validator.Text(s) }

func TestEngine_CompletesAfterOneContinuePerStep(t *testing.T) {
	tests := []struct {
		name   string
		flow   domainwf.FlowID
		seed   domainwf.Fields
		inputs []validator.Input
	}{
		{
			name:   "add driver",
			flow:   "add_driver",
			inputs: []validator.Input{text("Ivan Petrov"), text("8 (999) 123-45-67")},
		},
		{
			name:   "open shift",
			flow:   "open_shift",
			inputs: []validator.Input{validator.PhotoInput("img_1"), text("12345")},
		},
		{
			name:   "close shift",
			flow:   "close_shift",
			seed:   domainwf.Fields{"mileage_start": "12345"},
			inputs: []validator.Input{validator.PhotoInput("img_2"), text("12500")},
		},
		{
			name:   "delivery delivered",
			flow:   "delivery_status",
			inputs: []validator.Input{text("1: Delivered"), validator.PhotoInput("proof")},
		},
		{
			name:   "delivery failed",
			flow:   "delivery_status",
			inputs: []validator.Input{text("2"), text("Nobody at home")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			res := h.start(t, "ou_1", tt.flow, tt.seed)
			require.Equal(t, OutcomePrompted, res.Outcome)

			for i, in := range tt.inputs {
				res = h.send(t, "ou_1", in)
				if i < len(tt.inputs)-1 {
					require.Equal(t, OutcomePrompted, res.Outcome, "step %d", i)
				}
			}

			assert.Equal(t, OutcomeCompleted, res.Outcome)
			assert.Nil(t, h.store.peek("ou_1"))
			assert.Equal(t, 1, h.fleet.commits)
		})
	}
}

func TestEngine_RejectedInputIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "add_driver", nil)
	h.send(t, "ou_1", text("Ivan"))
	before := h.store.peek("ou_1")

	first := h.send(t, "ou_1", text("not a phone"))
	second := h.send(t, "ou_1", text("not a phone"))

	assert.Equal(t, OutcomeReprompt, first.Outcome)
	assert.Equal(t, string(validator.ReasonInvalidPhone), first.Reason)
	assert.Equal(t, "add_driver.phone", first.Prompt)
	assert.Equal(t, first, second)

	after := h.store.peek("ou_1")
	assert.Equal(t, before.StepID, after.StepID)
	assert.Equal(t, before.Fields, after.Fields)
}

func TestEngine_EndMileageMustExceedStart(t *testing.T) {
	for _, end := range []string{"12345", "12344", "100", "0"} {
		t.Run(end, func(t *testing.T) {
			h := newHarness(t)
			h.start(t, "ou_1", "close_shift", domainwf.Fields{"mileage_start": "12345"})
			h.send(t, "ou_1", validator.PhotoInput("img"))

			res := h.send(t, "ou_1", text(end))
			assert.Equal(t, OutcomeReprompt, res.Outcome)
			assert.Equal(t, string(validator.ReasonMustExceedPrevious), res.Reason)
			assert.Equal(t, 0, h.fleet.commits)
		})
	}
}

func TestEngine_CancelAtAnyStepLeavesStoreUntouched(t *testing.T) {
	inputs := []validator.Input{text("Ivan"), text("+79991112233")}

	for cancelAt := 0; cancelAt < len(inputs); cancelAt++ {
		t.Run(fmt.Sprintf("after %d inputs", cancelAt), func(t *testing.T) {
			h := newHarness(t)
			before := h.fleet.snapshot()

			h.start(t, "ou_1", "add_driver", nil)
			for _, in := range inputs[:cancelAt] {
				h.send(t, "ou_1", in)
			}

			res := h.send(t, "ou_1", text("  /CANCEL "))
			assert.Equal(t, OutcomeCancelled, res.Outcome)
			assert.Nil(t, h.store.peek("ou_1"))
			assert.Equal(t, before, h.fleet.snapshot())
		})
	}
}

func TestEngine_DuplicatePhoneKeepsName(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "add_driver", nil)
	h.send(t, "ou_1", text("Ivan Petrov"))

	res := h.send(t, "ou_1", text("+7 999 000-00-00"))
	require.Equal(t, OutcomeReprompt, res.Outcome)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.Equal(t, domainwf.StepID("phone"), res.StepID)
	assert.Equal(t, "phone", res.Params["field"])

	s := h.store.peek("ou_1")
	require.NotNil(t, s)
	assert.Equal(t, "Ivan Petrov", s.Fields["name"])
	assert.False(t, s.Fields.Has("phone"))

	res = h.send(t, "ou_1", text("+79991234567"))
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "Ivan Petrov", h.fleet.drivers["+79991234567"])
}

func TestEngine_InvalidCommitResumesAtOffendingField(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "close_shift", domainwf.Fields{"mileage_start": "100"})
	h.send(t, "ou_1", validator.PhotoInput("img"))

	finals := h.fleet.finalizers()
	finals["close_shift"] = FinalizerFunc(func(ctx context.Context, req CommitRequest) CommitResult {
		if req.Fields["mileage_end"] == "150" {
			return Invalid("mileage_end", "must_exceed_previous")
		}
		return Committed(9, nil)
	})
	engine, err := NewEngine(h.engine.Registry(), h.store, finals, WithClock(func() time.Time { return h.clock }))
	require.NoError(t, err)

	res, err := engine.Handle(context.Background(), "ou_1", Continue(text("150")))
	require.NoError(t, err)
	require.Equal(t, OutcomeReprompt, res.Outcome)
	assert.Equal(t, domainwf.StepID("mileage_end"), res.StepID)
	assert.Equal(t, "img", h.store.peek("ou_1").Fields["end_photo"])

	res, err = engine.Handle(context.Background(), "ou_1", Continue(text("180")))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, int64(9), res.RecordID)
}

func TestEngine_OpenShiftScenario(t *testing.T) {
	h := newHarness(t)

	res := h.start(t, "ou_1", "open_shift", nil)
	require.Equal(t, OutcomePrompted, res.Outcome)
	assert.Equal(t, "open_shift.start_photo", res.Prompt)

	res = h.send(t, "ou_1", validator.PhotoInput("img_start"))
	require.Equal(t, OutcomePrompted, res.Outcome)
	assert.Equal(t, domainwf.StepID("mileage_start"), res.StepID)

	res = h.send(t, "ou_1", text("12345"))
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, int64(12345), h.fleet.shifts["ou_1"])
	assert.Equal(t, "12345", res.Stats["mileage_start"])

	res = h.start(t, "ou_1", "open_shift", nil)
	assert.Equal(t, OutcomeBusy, res.Outcome)
	assert.Equal(t, "shift_active", res.Reason)
	assert.Nil(t, h.store.peek("ou_1"))
}

func TestEngine_DeliveryStatusBranches(t *testing.T) {
	tests := []struct {
		input string
		want  domainwf.StepID
	}{
		{"2: failed", "reason"},
		{"1: delivered", "proof_photo"},
		{"Failed", "reason"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			h := newHarness(t)
			h.start(t, "ou_1", "delivery_status", nil)

			res := h.send(t, "ou_1", text(tt.input))
			assert.Equal(t, OutcomePrompted, res.Outcome)
			assert.Equal(t, tt.want, res.StepID)
			assert.Equal(t, 0, h.fleet.commits)
		})
	}
}

func TestEngine_StartWhileActiveIsBusy(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "add_driver", nil)

	res := h.start(t, "ou_1", "open_shift", nil)
	assert.Equal(t, OutcomeBusy, res.Outcome)
	assert.Equal(t, ReasonSessionActive, res.Reason)
	assert.Equal(t, domainwf.FlowID("add_driver"), res.FlowID)
	assert.Equal(t, domainwf.FlowID("add_driver"), h.store.peek("ou_1").FlowID)
}

func TestEngine_PrepareRefusal(t *testing.T) {
	h := newHarness(t)
	res := h.start(t, "ou_1", "close_shift", nil)

	assert.Equal(t, OutcomeRefused, res.Outcome)
	assert.Equal(t, "no_active_shift", res.Reason)
	assert.Nil(t, h.store.peek("ou_1"))
}

func TestEngine_DeferredCommitRetriesWithoutRevalidation(t *testing.T) {
	h := newHarness(t)
	h.fleet.unavailable = 1

	h.start(t, "ou_1", "delivery_status", nil)
	h.send(t, "ou_1", text("failed"))
	res := h.send(t, "ou_1", text("Customer refused"))

	require.Equal(t, OutcomeDeferred, res.Outcome)
	assert.Equal(t, ReasonStoreUnavailable, res.Reason)
	s := h.store.peek("ou_1")
	require.NotNil(t, s)
	assert.True(t, s.AwaitingCommit)
	assert.Equal(t, "Customer refused", s.Fields["reason"])

	// any input retries the commit, even one the last step would reject
	res = h.send(t, "ou_1", text("ok"))
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "failed", h.fleet.deliveries["ou_1"])
	assert.Nil(t, h.store.peek("ou_1"))
}

func TestEngine_UnclearedCommitIsNotReplayed(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "delivery_status", nil)
	h.send(t, "ou_1", text("failed"))

	h.store.clearFailures = 1
	res := h.send(t, "ou_1", text("tyre burst"))
	require.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, int64(3), res.RecordID)
	assert.Equal(t, 1, h.fleet.commits)

	s := h.store.peek("ou_1")
	require.NotNil(t, s)
	assert.True(t, s.Committed)
	assert.Equal(t, int64(3), s.RecordID)

	active, err := h.engine.Active(context.Background(), "ou_1")
	require.NoError(t, err)
	assert.False(t, active)

	res = h.send(t, "ou_1", text("hello there"))
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Equal(t, 1, h.fleet.commits)
	assert.Nil(t, h.store.peek("ou_1"))
}

func TestEngine_CommittedSessionClearFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "delivery_status", nil)
	h.send(t, "ou_1", text("failed"))

	h.store.clearFailures = 2
	h.send(t, "ou_1", text("tyre burst"))

	_, err := h.engine.Handle(context.Background(), "ou_1", Continue(text("hello there")))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainwf.ErrStoreUnavailable)
	assert.Equal(t, 1, h.fleet.commits)

	res := h.send(t, "ou_1", text("hello again"))
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Equal(t, 1, h.fleet.commits)
}

func TestEngine_NotFoundAborts(t *testing.T) {
	h := newHarness(t)
	h.fleet.missing = true

	h.start(t, "ou_1", "delivery_status", nil)
	h.send(t, "ou_1", text("delivered"))
	res := h.send(t, "ou_1", validator.PhotoInput("proof"))

	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, "delivery_not_found", res.Reason)
	assert.Nil(t, h.store.peek("ou_1"))
}

func TestEngine_ContinueWithoutSession(t *testing.T) {
	h := newHarness(t)

	res := h.send(t, "ou_1", text("hello"))
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Empty(t, res.Reason)

	res = h.send(t, "ou_1", text("cancel"))
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Equal(t, ReasonNothingToCancel, res.Reason)
}

func TestEngine_IdleSessionsExpire(t *testing.T) {
	h := newHarness(t, WithIdleTimeout(time.Hour))
	h.start(t, "ou_1", "add_driver", nil)

	h.clock = h.clock.Add(30 * time.Minute)
	active, err := h.engine.Active(context.Background(), "ou_1")
	require.NoError(t, err)
	assert.True(t, active)

	h.clock = h.clock.Add(2 * time.Hour)
	active, err = h.engine.Active(context.Background(), "ou_1")
	require.NoError(t, err)
	assert.False(t, active)
	assert.Nil(t, h.store.peek("ou_1"))
	assert.Contains(t, h.rec.eventTypes(), event.TypeFlowAborted)
}

func TestEngine_StartedAtSurvivesTransitions(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "add_driver", nil)
	started := h.store.peek("ou_1").StartedAt

	h.clock = h.clock.Add(5 * time.Minute)
	h.send(t, "ou_1", text("Ivan"))

	s := h.store.peek("ou_1")
	assert.Equal(t, started, s.StartedAt)
	assert.Equal(t, h.clock, s.UpdatedAt)
}

func TestEngine_UnknownFlowInSessionAborts(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Put(context.Background(), &domainwf.Session{
		ID: "s1", UserID: "ou_1", FlowID: "retired_flow", StepID: "x",
		Fields: domainwf.Fields{}, UpdatedAt: h.clock,
	}))

	res := h.send(t, "ou_1", text("anything"))
	assert.Equal(t, OutcomeAborted, res.Outcome)
	assert.Equal(t, ReasonFlowUnavailable, res.Reason)
	assert.Nil(t, h.store.peek("ou_1"))
}

func TestEngine_StoreFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.store.getErr = domainwf.ErrStoreUnavailable

	_, err := h.engine.Handle(context.Background(), "ou_1", Continue(text("x")))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainwf.ErrStoreUnavailable)
}

func TestEngine_ObservesAndPublishes(t *testing.T) {
	h := newHarness(t)
	h.start(t, "ou_1", "add_driver", nil)
	h.send(t, "ou_1", text("Ivan"))
	h.send(t, "ou_1", text("+79995554433"))

	assert.Equal(t, []string{"add_driver:prompted", "add_driver:prompted", "add_driver:completed"}, h.rec.outcomes)
	assert.Equal(t, []event.Type{event.TypeFlowStarted, event.TypeFlowCompleted}, h.rec.eventTypes())

	done := h.rec.events[1]
	assert.Equal(t, "+79995554433", done.GetPayloadString("phone"))
	assert.Equal(t, h.rec.events[0].CorrelationID, done.CorrelationID)
}

func TestNewEngine_RequiresFinalizerPerFlow(t *testing.T) {
	f := newFleet()
	finals := f.finalizers()
	delete(finals, "open_shift")

	_, err := NewEngine(testRegistry(t, f), newMockSessionStore(), finals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open_shift")
}

func TestFromError(t *testing.T) {
	columns := map[string]string{"drivers.phone": "phone"}

	res := FromError(fmt.Errorf("insert: %w", &port.ConstraintError{Table: "drivers", Column: "phone", Err: errors.New("UNIQUE constraint failed: drivers.phone")}), columns, "x")
	assert.Equal(t, CommitDuplicate, res.Kind)
	assert.Equal(t, "phone", res.Field)

	res = FromError(fmt.Errorf("update: %w", domainwf.ErrNotFound), columns, "driver_not_found")
	assert.Equal(t, CommitNotFound, res.Kind)
	assert.Equal(t, "driver_not_found", res.Reason)

	res = FromError(fmt.Errorf("link: %w", domainwf.ErrNotFound), columns, "driver_not_found")
	assert.Equal(t, CommitNotFound, res.Kind, "a missing parent row is not a duplicate")
	assert.Equal(t, "driver_not_found", res.Reason)

	// no step collected the column, so there is nothing to re-ask
	res = FromError(&port.ConstraintError{Table: "shifts", Column: "driver_id"}, columns, "x")
	assert.Equal(t, CommitNotFound, res.Kind)
	assert.Equal(t, ReasonDuplicate, res.Reason)

	res = FromError(errors.New("disk I/O error"), columns, "x")
	assert.Equal(t, CommitUnavailable, res.Kind)
}
