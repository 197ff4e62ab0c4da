package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/domain/event"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// DefaultCancelTokens abort the active flow from any step
var DefaultCancelTokens = []string{"/cancel", "cancel", "🚫 Cancel"}

// Publisher receives flow lifecycle events
type Publisher interface {
	PublishAsync(ctx context.Context, evt *event.Event)
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	registry   *domainwf.Registry
	store      port.SessionStore
	finalizers map[domainwf.FlowID]Finalizer

	logger    *zap.Logger
	now       func() time.Time
	cancel    map[string]bool
	idleTTL   time.Duration
	observer  Observer
	publisher Publisher
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithCancelTokens replaces the universal cancel tokens
func WithCancelTokens(tokens ...string) EngineOption {
	return func(e *engineImpl) {
		e.cancel = make(map[string]bool, len(tokens))
		for _, t := range tokens {
			e.cancel[Normalize(t)] = true
		}
	}
}

// WithIdleTimeout evicts sessions idle for longer than ttl. Zero disables eviction.
func WithIdleTimeout(ttl time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.idleTTL = ttl
	}
}

// WithObserver reports every outcome to o
func WithObserver(o Observer) EngineOption {
	return func(e *engineImpl) {
		e.observer = o
	}
}

// WithPublisher emits flow lifecycle events to p
func WithPublisher(p Publisher) EngineOption {
	return func(e *engineImpl) {
		e.publisher = p
	}
}

// NewEngine creates a workflow engine. Every registered flow needs a finalizer.
func NewEngine(
	registry *domainwf.Registry,
	store port.SessionStore,
	finalizers map[domainwf.FlowID]Finalizer,
	opts ...EngineOption,
) (Engine, error) {
	if registry == nil || store == nil {
		return nil, errors.New("registry and session store are required")
	}
	for _, flow := range registry.Flows() {
		if finalizers[flow.ID] == nil {
			return nil, fmt.Errorf("no finalizer registered for flow %s", flow.ID)
		}
	}

	e := &engineImpl{
		registry:   registry,
		store:      store,
		finalizers: finalizers,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	WithCancelTokens(DefaultCancelTokens...)(e)

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Normalize trims, lower-cases and collapses whitespace
func Normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func (e *engineImpl) Registry() *domainwf.Registry {
	return e.registry
}

func (e *engineImpl) IsCancel(text string) bool {
	return e.cancel[Normalize(text)]
}

func (e *engineImpl) Active(ctx context.Context, userID string) (bool, error) {
	s, err := e.load(ctx, userID)
	if err != nil {
		return false, err
	}
	return s != nil, nil
}

func (e *engineImpl) Session(ctx context.Context, userID string) (*domainwf.Session, error) {
	return e.load(ctx, userID)
}

// Handle processes one event for a user
func (e *engineImpl) Handle(ctx context.Context, userID string, evt Event) (*Result, error) {
	session, err := e.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch evt.Kind {
	case EventStart:
		res, err = e.start(ctx, userID, session, evt)
	case EventContinue:
		res, err = e.advance(ctx, session, evt.Input)
	default:
		return nil, fmt.Errorf("unknown event kind %d", evt.Kind)
	}
	if err != nil {
		return nil, err
	}

	if e.observer != nil {
		e.observer.ObserveOutcome(res.FlowID.String(), res.Outcome.String())
	}
	return res, nil
}

// load fetches the session and evicts it once idle for too long.
// A session left behind by a completed commit is cleared, not resumed.
func (e *engineImpl) load(ctx context.Context, userID string) (*domainwf.Session, error) {
	s, err := e.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s != nil && s.Committed {
		if err := e.store.Clear(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to clear committed session: %w", err)
		}
		e.logger.Info("Cleared committed session",
			zap.String("user_id", userID),
			zap.String("flow_id", s.FlowID.String()),
			zap.Int64("record_id", s.RecordID))
		return nil, nil
	}
	if s == nil || !s.Expired(e.now(), e.idleTTL) {
		return s, nil
	}

	e.logger.Info("Session expired",
		zap.String("user_id", userID),
		zap.String("flow_id", s.FlowID.String()),
		zap.String("step_id", s.StepID.String()))
	if err := e.store.Clear(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to clear expired session: %w", err)
	}
	e.publish(ctx, event.TypeFlowAborted, s, map[string]interface{}{"reason": "expired"})
	return nil, nil
}

func (e *engineImpl) start(ctx context.Context, userID string, active *domainwf.Session, evt Event) (*Result, error) {
	if active != nil {
		return &Result{
			Outcome: OutcomeBusy,
			FlowID:  active.FlowID,
			StepID:  active.StepID,
			Reason:  ReasonSessionActive,
		}, nil
	}

	flow, err := e.registry.Flow(evt.FlowID)
	if err != nil {
		return nil, err
	}

	seed, err := flow.Prepare(ctx, evt.Seed.Clone())
	if err != nil {
		var refusal *domainwf.RefusalError
		if errors.As(err, &refusal) {
			outcome := OutcomeRefused
			if errors.Is(err, domainwf.ErrBusy) {
				outcome = OutcomeBusy
			}
			return &Result{Outcome: outcome, FlowID: flow.ID, Reason: refusal.Reason}, nil
		}
		return nil, fmt.Errorf("failed to prepare flow %s: %w", flow.ID, err)
	}

	session := domainwf.NewSession(userID, flow, seed, e.now())
	if err := e.store.Put(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	e.logger.Info("Flow started",
		zap.String("user_id", userID),
		zap.String("flow_id", flow.ID.String()),
		zap.String("session_id", session.ID))
	e.publish(ctx, event.TypeFlowStarted, session, nil)

	return e.prompt(OutcomePrompted, session, flow.First()), nil
}

func (e *engineImpl) advance(ctx context.Context, session *domainwf.Session, in validator.Input) (*Result, error) {
	if session == nil {
		res := &Result{Outcome: OutcomeIdle}
		if e.IsCancel(in.Text) {
			res.Reason = ReasonNothingToCancel
		}
		return res, nil
	}

	if e.IsCancel(in.Text) {
		if err := e.store.Clear(ctx, session.UserID); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}
		e.logger.Info("Flow cancelled",
			zap.String("user_id", session.UserID),
			zap.String("flow_id", session.FlowID.String()),
			zap.String("step_id", session.StepID.String()))
		e.publish(ctx, event.TypeFlowCancelled, session, nil)
		return &Result{Outcome: OutcomeCancelled, FlowID: session.FlowID, StepID: session.StepID}, nil
	}

	flow, err := e.registry.Flow(session.FlowID)
	if err != nil {
		return e.abort(ctx, session, ReasonFlowUnavailable)
	}

	if session.AwaitingCommit {
		return e.commit(ctx, flow, session.Clone())
	}

	step, ok := flow.Step(session.StepID)
	if !ok {
		return e.abort(ctx, session, ReasonFlowUnavailable)
	}

	outcome := step.Validator.Validate(in, session.Scope())
	if !outcome.Accepted() {
		res := e.prompt(OutcomeReprompt, session, step)
		res.Reason = outcome.Reason.String()
		res.Params = outcome.Params
		return res, nil
	}

	next := session.Clone()
	next.Fields[step.Field] = outcome.Value
	to := step.Next(outcome.Value)
	if next.Resuming {
		to = skipCollected(flow, next.Fields, to)
		next.Resuming = false
	}
	next.UpdatedAt = e.now()

	if to.IsTerminal() {
		return e.commit(ctx, flow, next)
	}

	nextStep, ok := flow.Step(to)
	if !ok {
		return e.abort(ctx, session, ReasonFlowUnavailable)
	}
	next.StepID = to
	if err := e.store.Put(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return e.prompt(OutcomePrompted, next, nextStep), nil
}

// skipCollected walks past steps whose fields are still present. The walk is
// bounded by the flow length so loop-back steps cannot spin forever.
func skipCollected(flow *domainwf.Flow, fields domainwf.Fields, to domainwf.StepID) domainwf.StepID {
	for i := 0; i < flow.Len() && !to.IsTerminal(); i++ {
		step, ok := flow.Step(to)
		if !ok {
			return to
		}
		value, collected := fields[step.Field]
		if !collected {
			return to
		}
		to = step.Next(value)
	}
	return to
}

func (e *engineImpl) commit(ctx context.Context, flow *domainwf.Flow, session *domainwf.Session) (*Result, error) {
	req := CommitRequest{
		UserID: session.UserID,
		FlowID: flow.ID,
		Fields: session.Fields.Clone(),
		Seed:   session.Seed.Clone(),
		Now:    e.now(),
	}
	res := e.finalizers[flow.ID].Commit(ctx, req)

	switch res.Kind {
	case CommitCommitted:
		if err := e.store.Clear(ctx, session.UserID); err != nil {
			e.logger.Error("Failed to clear completed session",
				zap.String("user_id", session.UserID),
				zap.String("flow_id", flow.ID.String()),
				zap.Error(err))
			e.markCommitted(ctx, session, res.RecordID)
		}
		e.logger.Info("Flow completed",
			zap.String("user_id", session.UserID),
			zap.String("flow_id", flow.ID.String()),
			zap.Int64("record_id", res.RecordID))

		payload := make(map[string]interface{}, len(req.Fields)+len(res.Stats))
		for k, v := range req.Fields {
			payload[k] = v
		}
		for k, v := range res.Stats {
			payload[k] = v
		}
		if e.publisher != nil {
			evt := event.NewEventWithCorrelation(event.TypeFlowCompleted, session.UserID, flow.ID.String(), payload, session.ID).
				WithRecord(res.RecordID)
			e.publisher.PublishAsync(context.WithoutCancel(ctx), evt)
		}

		return &Result{
			Outcome:  OutcomeCompleted,
			FlowID:   flow.ID,
			RecordID: res.RecordID,
			Stats:    res.Stats,
		}, nil

	case CommitDuplicate, CommitInvalid:
		step, ok := flow.StepForField(res.Field)
		if !ok {
			e.logger.Error("Finalizer rejected an unknown field",
				zap.String("flow_id", flow.ID.String()),
				zap.String("field", res.Field))
			return e.abort(ctx, session, res.Reason)
		}
		delete(session.Fields, res.Field)
		session.StepID = step.ID
		session.Resuming = true
		session.AwaitingCommit = false
		if err := e.store.Put(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}

		out := e.prompt(OutcomeReprompt, session, step)
		out.Reason = res.Reason
		out.Params = map[string]string{"field": res.Field}
		return out, nil

	case CommitNotFound:
		return e.abort(ctx, session, res.Reason)

	default:
		e.logger.Error("Commit deferred",
			zap.String("user_id", session.UserID),
			zap.String("flow_id", flow.ID.String()),
			zap.Error(res.Err))
		session.AwaitingCommit = true
		if err := e.store.Put(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
		return &Result{
			Outcome: OutcomeDeferred,
			FlowID:  flow.ID,
			StepID:  session.StepID,
			Reason:  ReasonStoreUnavailable,
		}, nil
	}
}

// markCommitted keeps a stale session from committing its record twice
// when it could not be cleared.
func (e *engineImpl) markCommitted(ctx context.Context, session *domainwf.Session, recordID int64) {
	session.Committed = true
	session.RecordID = recordID
	session.AwaitingCommit = false
	session.UpdatedAt = e.now()
	if err := e.store.Put(ctx, session); err != nil {
		e.logger.Error("Failed to mark session committed",
			zap.String("user_id", session.UserID),
			zap.Int64("record_id", recordID),
			zap.Error(err))
	}
}

func (e *engineImpl) abort(ctx context.Context, session *domainwf.Session, reason string) (*Result, error) {
	if err := e.store.Clear(ctx, session.UserID); err != nil {
		return nil, fmt.Errorf("failed to clear session: %w", err)
	}
	e.logger.Info("Flow aborted",
		zap.String("user_id", session.UserID),
		zap.String("flow_id", session.FlowID.String()),
		zap.String("reason", reason))
	e.publish(ctx, event.TypeFlowAborted, session, map[string]interface{}{"reason": reason})
	return &Result{Outcome: OutcomeAborted, FlowID: session.FlowID, StepID: session.StepID, Reason: reason}, nil
}

func (e *engineImpl) prompt(outcome Outcome, session *domainwf.Session, step *domainwf.Step) *Result {
	return &Result{
		Outcome: outcome,
		FlowID:  session.FlowID,
		StepID:  step.ID,
		Prompt:  step.Prompt,
		Options: step.Options(session.Scope()),
	}
}

func (e *engineImpl) publish(ctx context.Context, t event.Type, session *domainwf.Session, payload map[string]interface{}) {
	if e.publisher == nil {
		return
	}
	evt := event.NewEventWithCorrelation(t, session.UserID, session.FlowID.String(), payload, session.ID)
	e.publisher.PublishAsync(context.WithoutCancel(ctx), evt)
}
