package dispatcher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/entity"
	domainwf "github.com/garyjia/fleetbot/internal/domain/workflow"
)

// ErrInvalidTrigger is returned for an inconsistent trigger table
var ErrInvalidTrigger = errors.New("invalid trigger table")

// Audience restricts who may use a trigger
type Audience string

const (
	AudienceAny    Audience = "any"
	AudienceGuest  Audience = "guest"
	AudienceDriver Audience = "driver"
	AudienceAdmin  Audience = "admin"
)

// Allows reports whether the actor belongs to the audience
func (a Audience) Allows(actor entity.Actor) bool {
	switch a {
	case AudienceAny, "":
		return true
	case AudienceGuest:
		return actor.DriverID == 0
	case AudienceDriver:
		return actor.DriverID > 0
	case AudienceAdmin:
		return actor.IsAdmin()
	}
	return false
}

// Command names a stateless request answered without a session
type Command string

const (
	CommandStart          Command = "start"
	CommandHelp           Command = "help"
	CommandLogout         Command = "logout"
	CommandMyShifts       Command = "my_shifts"
	CommandMyDeliveries   Command = "my_deliveries"
	CommandVehicleStatus  Command = "vehicle_status"
	CommandVehicleReports Command = "vehicle_reports"
	CommandVehicleStats   Command = "vehicle_stats"
	CommandDrivers        Command = "drivers"
	CommandVehicles       Command = "vehicles"
	CommandStats          Command = "stats"
)

// Trigger maps phrases to either a flow or a command
type Trigger struct {
	Phrases  []string
	Flow     domainwf.FlowID
	Command  Command
	Audience Audience
}

// Target returns the flow or command name
func (t Trigger) Target() string {
	if t.Flow.IsValid() {
		return t.Flow.String()
	}
	return string(t.Command)
}

// TriggerTable resolves normalized phrases to triggers
type TriggerTable struct {
	byPhrase map[string]Trigger
	triggers []Trigger
}

// NewTriggerTable validates the triggers once: every phrase is unique after
// normalization, no phrase is a cancel token, and each trigger names exactly
// one of a flow or a command.
func NewTriggerTable(isCancel func(string) bool, triggers ...Trigger) (*TriggerTable, error) {
	t := &TriggerTable{byPhrase: make(map[string]Trigger)}

	for i, tr := range triggers {
		if tr.Flow.IsValid() == (tr.Command != "") {
			return nil, fmt.Errorf("%w: trigger %d must name exactly one of flow or command", ErrInvalidTrigger, i)
		}
		if len(tr.Phrases) == 0 {
			return nil, fmt.Errorf("%w: trigger %s has no phrases", ErrInvalidTrigger, tr.Target())
		}
		if tr.Audience == "" {
			tr.Audience = AudienceAny
		}
		for _, p := range tr.Phrases {
			key := workflow.Normalize(p)
			if key == "" {
				return nil, fmt.Errorf("%w: trigger %s has an empty phrase", ErrInvalidTrigger, tr.Target())
			}
			if isCancel != nil && isCancel(key) {
				return nil, fmt.Errorf("%w: phrase %q of %s is a cancel token", ErrInvalidTrigger, p, tr.Target())
			}
			if other, dup := t.byPhrase[key]; dup {
				return nil, fmt.Errorf("%w: phrase %q used by both %s and %s", ErrInvalidTrigger, p, other.Target(), tr.Target())
			}
			t.byPhrase[key] = tr
		}
		t.triggers = append(t.triggers, tr)
	}

	return t, nil
}

// Match looks up the trigger for a message text
func (t *TriggerTable) Match(text string) (Trigger, bool) {
	tr, ok := t.byPhrase[workflow.Normalize(text)]
	return tr, ok
}

// Triggers returns the triggers in declaration order
func (t *TriggerTable) Triggers() []Trigger {
	return append([]Trigger(nil), t.triggers...)
}

// Phrases returns every normalized phrase, sorted
func (t *TriggerTable) Phrases() []string {
	out := make([]string, 0, len(t.byPhrase))
	for p := range t.byPhrase {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
