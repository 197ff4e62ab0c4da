package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/fleetbot/internal/application/port"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Message keys rendered by the dispatcher itself
const (
	KeyNotAuthorized    = "error.not_authorized"
	KeyAlreadyLinked    = "auth.already_linked"
	KeyLoginRequired    = "auth.login_required"
	KeyUnrecognized     = "unrecognized"
	KeyInternalError    = "error.internal"
	KeyStoreUnavailable = "error.store_unavailable"
)

// Message is one inbound chat message
type Message struct {
	UserID     string
	ChatID     string
	MessageID  string
	Text       string
	PhotoID    string
	ReceivedAt time.Time
}

// Input converts the message into validator input
func (m Message) Input() validator.Input {
	return validator.Input{Text: m.Text, PhotoID: m.PhotoID}
}

// Kind is the classification of an inbound message
type Kind int

const (
	KindUnrecognized Kind = iota
	KindContinue
	KindStart
	KindCommand
)

var kindNames = map[Kind]string{
	KindUnrecognized: "unrecognized",
	KindContinue:     "continue",
	KindStart:        "start",
	KindCommand:      "command",
}

// String returns the kind name
func (k Kind) String() string {
	return kindNames[k]
}

// Classification is the result of Classify
type Classification struct {
	Kind    Kind
	Trigger Trigger
}

// Reply is the text to send back for one message
type Reply struct {
	UserID  string
	ChatID  string
	Text    string
	Kind    Kind
	Outcome workflow.Outcome
}

// Renderer turns engine results and message keys into text
type Renderer interface {
	Result(res *workflow.Result) string
	Text(key string, params map[string]string) string
}

// Commands answers stateless requests
type Commands interface {
	Execute(ctx context.Context, actor entity.Actor, cmd Command) (string, error)
}

// Observer receives the classification and latency of each dispatch
type Observer interface {
	ObserveDispatch(kind string, elapsed time.Duration)
}

// Deps are the collaborators of a Dispatcher
type Deps struct {
	Engine    workflow.Engine
	Triggers  *TriggerTable
	Directory port.Directory
	Commands  Commands
	Renderer  Renderer
	Lanes     *Lanes
}

// Dispatcher classifies inbound messages and routes them to the engine or
// to a command, one message at a time per user
type Dispatcher struct {
	deps     Deps
	logger   *zap.Logger
	observer Observer

	reorderWindow time.Duration
	seq           *sequencer
}

// Option configures the dispatcher
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithObserver reports every dispatch to o
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithReorderWindow holds every message for window so that messages of one
// user delivered out of order are handled in ReceivedAt order
func WithReorderWindow(window time.Duration) Option {
	return func(d *Dispatcher) {
		d.reorderWindow = window
	}
}

// New creates a dispatcher. Every flow trigger must name a registered flow.
func New(deps Deps, opts ...Option) (*Dispatcher, error) {
	if deps.Engine == nil || deps.Triggers == nil || deps.Directory == nil ||
		deps.Commands == nil || deps.Renderer == nil || deps.Lanes == nil {
		return nil, errors.New("dispatcher: missing dependency")
	}
	registry := deps.Engine.Registry()
	for _, tr := range deps.Triggers.Triggers() {
		if tr.Flow.IsValid() && !registry.Has(tr.Flow) {
			return nil, fmt.Errorf("%w: flow %s is not registered", ErrInvalidTrigger, tr.Flow)
		}
	}

	d := &Dispatcher{deps: deps, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.seq = newSequencer(d.reorderWindow, d.logger)
	return d, nil
}

// Classify decides how a message is routed. An active session owns every
// message until it completes or is cancelled, even one matching a trigger.
func (d *Dispatcher) Classify(ctx context.Context, msg Message) (Classification, error) {
	active, err := d.deps.Engine.Active(ctx, msg.UserID)
	if err != nil {
		return Classification{}, err
	}
	if active || d.deps.Engine.IsCancel(msg.Text) {
		return Classification{Kind: KindContinue}, nil
	}

	if tr, ok := d.deps.Triggers.Match(msg.Text); ok {
		if tr.Flow.IsValid() {
			return Classification{Kind: KindStart, Trigger: tr}, nil
		}
		return Classification{Kind: KindCommand, Trigger: tr}, nil
	}
	return Classification{Kind: KindUnrecognized}, nil
}

// Dispatch handles msg on its user's lane and returns the reply to send.
// Messages of one user are handled one at a time in ReceivedAt order.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (*Reply, error) {
	t, err := d.seq.acquire(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("waiting for earlier messages: %w", err)
	}
	defer d.seq.release(t, true)

	var reply *Reply
	err = d.deps.Lanes.Do(ctx, msg.UserID, func(ctx context.Context) {
		reply = d.handle(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	if reply == nil {
		// the job panicked; the lane already logged it
		reply = d.reply(msg, KindUnrecognized, d.deps.Renderer.Text(KeyInternalError, nil))
	}
	return reply, nil
}

func (d *Dispatcher) handle(ctx context.Context, msg Message) *Reply {
	started := time.Now()

	cls, err := d.Classify(ctx, msg)
	if err != nil {
		return d.failure(msg, cls.Kind, err)
	}
	if d.observer != nil {
		defer func() {
			d.observer.ObserveDispatch(cls.Kind.String(), time.Since(started))
		}()
	}

	switch cls.Kind {
	case KindContinue:
		res, err := d.deps.Engine.Handle(ctx, msg.UserID, workflow.Continue(msg.Input()))
		if err != nil {
			return d.failure(msg, cls.Kind, err)
		}
		return d.result(msg, cls.Kind, res)

	case KindStart, KindCommand:
		actor, err := d.deps.Directory.Resolve(ctx, msg.UserID)
		if err != nil {
			return d.failure(msg, cls.Kind, err)
		}
		if !cls.Trigger.Audience.Allows(actor) {
			d.logger.Info("Trigger refused",
				zap.String("user_id", msg.UserID),
				zap.String("target", cls.Trigger.Target()),
				zap.String("role", actor.Role))
			return d.reply(msg, cls.Kind, d.deps.Renderer.Text(refusalKey(cls.Trigger.Audience, actor), nil))
		}

		if cls.Kind == KindCommand {
			text, err := d.deps.Commands.Execute(ctx, actor, cls.Trigger.Command)
			if err != nil {
				return d.failure(msg, cls.Kind, err)
			}
			return d.reply(msg, cls.Kind, text)
		}

		res, err := d.deps.Engine.Handle(ctx, msg.UserID, workflow.StartFlow(cls.Trigger.Flow, actor.Seed()))
		if err != nil {
			return d.failure(msg, cls.Kind, err)
		}
		return d.result(msg, cls.Kind, res)

	default:
		return d.reply(msg, cls.Kind, d.deps.Renderer.Text(KeyUnrecognized, nil))
	}
}

func refusalKey(a Audience, actor entity.Actor) string {
	switch {
	case a == AudienceGuest:
		return KeyAlreadyLinked
	case a == AudienceDriver && !actor.IsAdmin():
		return KeyLoginRequired
	default:
		return KeyNotAuthorized
	}
}

func (d *Dispatcher) result(msg Message, kind Kind, res *workflow.Result) *Reply {
	r := d.reply(msg, kind, d.deps.Renderer.Result(res))
	r.Outcome = res.Outcome
	return r
}

func (d *Dispatcher) reply(msg Message, kind Kind, text string) *Reply {
	return &Reply{UserID: msg.UserID, ChatID: msg.ChatID, Text: text, Kind: kind}
}

func (d *Dispatcher) failure(msg Message, kind Kind, err error) *Reply {
	d.logger.Error("Failed to handle message",
		zap.String("user_id", msg.UserID),
		zap.String("message_id", msg.MessageID),
		zap.String("kind", kind.String()),
		zap.Error(err))

	key := KeyInternalError
	if domainwf.Classify(err).Retryable() {
		key = KeyStoreUnavailable
	}
	return d.reply(msg, kind, d.deps.Renderer.Text(key, nil))
}
