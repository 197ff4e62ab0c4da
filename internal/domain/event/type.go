package event

// Type identifies the type of domain event
type Type string

const (
	TypeFlowStarted   Type = "flow.started"
	TypeFlowCompleted Type = "flow.completed"
	TypeFlowCancelled Type = "flow.cancelled"
	TypeFlowAborted   Type = "flow.aborted"
	TypeShiftOverdue  Type = "shift.overdue"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeFlowStarted,
		TypeFlowCompleted,
		TypeFlowCancelled,
		TypeFlowAborted,
		TypeShiftOverdue:
		return true
	default:
		return false
	}
}
