package workflow

import (
	"context"

	"github.com/garyjia/fleetbot/internal/domain/validator"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// Engine drives per-user flows: it starts them, validates each step's input,
// advances or re-prompts, and hands completed field sets to a Finalizer.
// Calls for the same user must be serialized by the caller.
type Engine interface {
	// Handle processes one event for a user
	Handle(ctx context.Context, userID string, evt Event) (*Result, error)

	// Active reports whether the user has an in-progress session
	Active(ctx context.Context, userID string) (bool, error)

	// Session returns the user's in-progress session, or nil
	Session(ctx context.Context, userID string) (*domainwf.Session, error)

	// IsCancel reports whether text is a universal cancel token
	IsCancel(text string) bool

	// Registry returns the flow definitions the engine runs
	Registry() *domainwf.Registry
}

// EventKind distinguishes flow starts from continuations
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventContinue
)

// Event is the input to Engine.Handle
type Event struct {
	Kind   EventKind
	FlowID domainwf.FlowID
	Seed   domainwf.Fields
	Input  validator.Input
}

// StartFlow builds an event that starts a flow with the given seed
func StartFlow(id domainwf.FlowID, seed domainwf.Fields) Event {
	return Event{Kind: EventStart, FlowID: id, Seed: seed}
}

// Continue builds an event carrying user input for the current step
func Continue(in validator.Input) Event {
	return Event{Kind: EventContinue, Input: in}
}

// Outcome describes what Handle did
type Outcome string

const (
	OutcomePrompted  Outcome = "prompted"
	OutcomeReprompt  Outcome = "reprompt"
	OutcomeBusy      Outcome = "busy"
	OutcomeRefused   Outcome = "refused"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeDeferred  Outcome = "deferred"
	OutcomeIdle      Outcome = "idle"
)

// String returns the outcome name
func (o Outcome) String() string {
	return string(o)
}

// Reasons set by the engine itself
const (
	ReasonSessionActive    = "session_active"
	ReasonFlowUnavailable  = "flow_unavailable"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonDuplicate        = "duplicate"
	ReasonNothingToCancel  = "nothing_to_cancel"
)

// Result is the presenter-facing description of one transition
type Result struct {
	Outcome  Outcome
	FlowID   domainwf.FlowID
	StepID   domainwf.StepID
	Prompt   string
	Reason   string
	Params   map[string]string
	Options  []validator.Option
	RecordID int64
	Stats    map[string]string
}

// Observer receives every outcome, typically for metrics
type Observer interface {
	ObserveOutcome(flowID string, outcome string)
}
