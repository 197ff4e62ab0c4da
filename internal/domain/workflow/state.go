package workflow

// FlowID names a registered flow
type FlowID string

// StepID names a step within a flow
type StepID string

// Terminal is the pseudo-step reached after the last step of a flow.
// Reaching it hands the collected fields to the flow's Finalizer.
const Terminal StepID = "TERMINAL"

// String returns the string representation of the flow id
func (f FlowID) String() string {
	return string(f)
}

// IsValid returns true if the flow id is non-empty
func (f FlowID) IsValid() bool {
	return f != ""
}

// String returns the string representation of the step id
func (s StepID) String() string {
	return string(s)
}

// IsTerminal returns true if the step is the terminal pseudo-step
func (s StepID) IsTerminal() bool {
	return s == Terminal
}

// IsValid returns true if the step id is non-empty
func (s StepID) IsValid() bool {
	return s != ""
}
