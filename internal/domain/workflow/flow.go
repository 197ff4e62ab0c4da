package workflow

import (
	"context"

	"github.com/garyjia/fleetbot/internal/domain/validator"
)

// PrepareFunc runs when a flow starts. It receives the seed supplied by the
// caller and returns the seed the session starts with, or a RefusalError.
type PrepareFunc func(ctx context.Context, seed Fields) (Fields, error)

// Step is one prompt/validate/advance unit of a flow
type Step struct {
	ID        StepID
	Field     string
	Validator validator.Validator
	Prompt    string

	next     StepID
	branches map[string]StepID
	fallback StepID
}

// Next returns the step that follows once value has been accepted
func (s *Step) Next(value string) StepID {
	if s.branches == nil {
		return s.next
	}
	if to, ok := s.branches[value]; ok {
		return to
	}
	return s.fallback
}

// IsBranch returns true if the next step depends on the accepted value
func (s *Step) IsBranch() bool {
	return s.branches != nil
}

// Targets returns every step id this step can lead to
func (s *Step) Targets() []StepID {
	if s.branches == nil {
		return []StepID{s.next}
	}
	targets := make([]StepID, 0, len(s.branches)+1)
	for _, to := range s.branches {
		targets = append(targets, to)
	}
	if s.fallback.IsValid() {
		targets = append(targets, s.fallback)
	}
	return targets
}

// Options returns the choices rendered with the prompt, if any
func (s *Step) Options(scope validator.Scope) []validator.Option {
	if l, ok := s.Validator.(validator.Lister); ok {
		return l.List(scope)
	}
	return nil
}

// Flow is an immutable, ordered set of steps
type Flow struct {
	ID FlowID

	steps   []*Step
	index   map[StepID]int
	prepare PrepareFunc
}

// First returns the entry step
func (f *Flow) First() *Step {
	return f.steps[0]
}

// Step looks up a step by id
func (f *Flow) Step(id StepID) (*Step, bool) {
	i, ok := f.index[id]
	if !ok {
		return nil, false
	}
	return f.steps[i], true
}

// StepForField returns the step that collects field
func (f *Flow) StepForField(field string) (*Step, bool) {
	for _, s := range f.steps {
		if s.Field == field {
			return s, true
		}
	}
	return nil, false
}

// Steps returns the steps in declaration order
func (f *Flow) Steps() []*Step {
	return append([]*Step(nil), f.steps...)
}

// Len returns the number of steps
func (f *Flow) Len() int {
	return len(f.steps)
}

// Prepare runs the flow's start hook, if any
func (f *Flow) Prepare(ctx context.Context, seed Fields) (Fields, error) {
	if seed == nil {
		seed = Fields{}
	}
	if f.prepare == nil {
		return seed, nil
	}
	return f.prepare(ctx, seed)
}
