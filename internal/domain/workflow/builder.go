package workflow

import (
	"fmt"
	"sort"

	"github.com/garyjia/fleetbot/internal/domain/validator"
)

// RegistryBuilder collects flow definitions and produces an immutable Registry
type RegistryBuilder interface {
	// Flow returns the configuration for the given flow, creating it on first use
	Flow(id FlowID) FlowConfiguration

	// Build checks every flow and returns the registry
	Build() (*Registry, error)
}

// FlowConfiguration configures the steps of one flow
type FlowConfiguration interface {
	// Prepare sets the hook run when the flow starts
	Prepare(fn PrepareFunc) FlowConfiguration

	// Step appends a step collecting field with v
	Step(id StepID, field string, v validator.Validator) StepConfiguration
}

// StepConfiguration configures how a step advances
type StepConfiguration interface {
	// Prompt overrides the message key, which defaults to "<flow>.<step>"
	Prompt(key string) StepConfiguration

	// Then sets a static next step. Without it the step falls through to the
	// next declared step, or to Terminal for the last one.
	Then(next StepID) StepConfiguration

	// Branch routes an accepted value to a step
	Branch(value string, next StepID) StepConfiguration

	// Otherwise routes every value without an explicit branch
	Otherwise(next StepID) StepConfiguration

	// Step appends the following step to the same flow
	Step(id StepID, field string, v validator.Validator) StepConfiguration
}

type stepConfig struct {
	flow     *flowConfig
	step     *Step
	then     StepID
	branches map[string]StepID
	fallback StepID
}

type flowConfig struct {
	builder *registryBuilder
	id      FlowID
	prepare PrepareFunc
	steps   []*stepConfig
}

type registryBuilder struct {
	flows map[FlowID]*flowConfig
	order []FlowID
	errs  []error
}

// NewBuilder creates a new registry builder
func NewBuilder() RegistryBuilder {
	return &registryBuilder{
		flows: make(map[FlowID]*flowConfig),
	}
}

// Flow returns the configuration for the given flow
func (b *registryBuilder) Flow(id FlowID) FlowConfiguration {
	if fc, ok := b.flows[id]; ok {
		return fc
	}
	fc := &flowConfig{builder: b, id: id}
	b.flows[id] = fc
	b.order = append(b.order, id)
	return fc
}

// Prepare sets the flow's start hook
func (c *flowConfig) Prepare(fn PrepareFunc) FlowConfiguration {
	c.prepare = fn
	return c
}

// Step appends a step to the flow
func (c *flowConfig) Step(id StepID, field string, v validator.Validator) StepConfiguration {
	sc := &stepConfig{
		flow: c,
		step: &Step{
			ID:        id,
			Field:     field,
			Validator: v,
			Prompt:    fmt.Sprintf("%s.%s", c.id, id),
		},
	}
	c.steps = append(c.steps, sc)
	return sc
}

func (c *stepConfig) Prompt(key string) StepConfiguration {
	c.step.Prompt = key
	return c
}

func (c *stepConfig) Then(next StepID) StepConfiguration {
	c.then = next
	return c
}

func (c *stepConfig) Branch(value string, next StepID) StepConfiguration {
	if c.branches == nil {
		c.branches = make(map[string]StepID)
	}
	if _, exists := c.branches[value]; exists {
		c.flow.builder.errs = append(c.flow.builder.errs,
			fmt.Errorf("%w: flow %s step %s: branch %q declared twice", ErrInvalidFlow, c.flow.id, c.step.ID, value))
	}
	c.branches[value] = next
	return c
}

func (c *stepConfig) Otherwise(next StepID) StepConfiguration {
	c.fallback = next
	if c.branches == nil {
		c.branches = make(map[string]StepID)
	}
	return c
}

func (c *stepConfig) Step(id StepID, field string, v validator.Validator) StepConfiguration {
	return c.flow.Step(id, field, v)
}

// Build validates all flows and returns the immutable registry
func (b *registryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.flows) == 0 {
		return nil, fmt.Errorf("%w: no flows registered", ErrInvalidFlow)
	}

	flows := make(map[FlowID]*Flow, len(b.flows))
	for _, id := range b.order {
		flow, err := b.flows[id].build()
		if err != nil {
			return nil, err
		}
		flows[id] = flow
	}

	ids := append([]FlowID(nil), b.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return &Registry{flows: flows, ids: ids}, nil
}

func (c *flowConfig) build() (*Flow, error) {
	if !c.id.IsValid() {
		return nil, fmt.Errorf("%w: empty flow id", ErrInvalidFlow)
	}
	if len(c.steps) == 0 {
		return nil, fmt.Errorf("%w: flow %s has no steps", ErrInvalidFlow, c.id)
	}

	flow := &Flow{
		ID:      c.id,
		steps:   make([]*Step, 0, len(c.steps)),
		index:   make(map[StepID]int, len(c.steps)),
		prepare: c.prepare,
	}
	fields := make(map[string]StepID, len(c.steps))

	for i, sc := range c.steps {
		s := *sc.step
		switch {
		case !s.ID.IsValid() || s.ID.IsTerminal():
			return nil, fmt.Errorf("%w: flow %s: invalid step id %q", ErrInvalidFlow, c.id, s.ID)
		case s.Field == "":
			return nil, fmt.Errorf("%w: flow %s step %s: empty field", ErrInvalidFlow, c.id, s.ID)
		case s.Validator == nil:
			return nil, fmt.Errorf("%w: flow %s step %s: no validator", ErrInvalidFlow, c.id, s.ID)
		}
		if _, dup := flow.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: flow %s: duplicate step %s", ErrInvalidFlow, c.id, s.ID)
		}
		if other, dup := fields[s.Field]; dup {
			return nil, fmt.Errorf("%w: flow %s: field %s collected by both %s and %s", ErrInvalidFlow, c.id, s.Field, other, s.ID)
		}
		fields[s.Field] = s.ID

		if sc.branches != nil {
			s.branches = make(map[string]StepID, len(sc.branches))
			for v, to := range sc.branches {
				s.branches[v] = to
			}
			s.fallback = sc.fallback
		} else {
			switch {
			case sc.then.IsValid():
				s.next = sc.then
			case i+1 < len(c.steps):
				s.next = c.steps[i+1].step.ID
			default:
				s.next = Terminal
			}
		}

		flow.index[s.ID] = len(flow.steps)
		flow.steps = append(flow.steps, &s)
	}

	for _, s := range flow.steps {
		if err := checkTargets(flow, s); err != nil {
			return nil, err
		}
		if err := checkTotal(flow, s); err != nil {
			return nil, err
		}
	}
	if err := checkReachable(flow); err != nil {
		return nil, err
	}
	return flow, nil
}

func checkTargets(flow *Flow, s *Step) error {
	for _, to := range s.Targets() {
		if to.IsTerminal() {
			continue
		}
		if _, ok := flow.index[to]; !ok {
			return fmt.Errorf("%w: flow %s step %s: next step %q does not exist", ErrInvalidFlow, flow.ID, s.ID, to)
		}
	}
	return nil
}

// checkTotal makes sure every value the validator can accept has a next step
func checkTotal(flow *Flow, s *Step) error {
	if !s.IsBranch() || s.fallback.IsValid() {
		return nil
	}
	enum, ok := s.Validator.(validator.Enumerable)
	if !ok {
		return fmt.Errorf("%w: flow %s step %s: branches on a non-enum step need a default", ErrInvalidFlow, flow.ID, s.ID)
	}
	for _, opt := range enum.Options() {
		if _, ok := s.branches[opt.Value]; !ok {
			return fmt.Errorf("%w: flow %s step %s: option %q has no branch", ErrInvalidFlow, flow.ID, s.ID, opt.Value)
		}
	}
	return nil
}

func checkReachable(flow *Flow) error {
	seen := map[StepID]bool{flow.First().ID: true}
	queue := []StepID{flow.First().ID}
	terminal := false

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		s, _ := flow.Step(id)
		for _, to := range s.Targets() {
			if to.IsTerminal() {
				terminal = true
				continue
			}
			if !seen[to] {
				seen[to] = true
				queue = append(queue, to)
			}
		}
	}

	for _, s := range flow.steps {
		if !seen[s.ID] {
			return fmt.Errorf("%w: flow %s: step %s is unreachable", ErrInvalidFlow, flow.ID, s.ID)
		}
	}
	if !terminal {
		return fmt.Errorf("%w: flow %s never reaches the end", ErrInvalidFlow, flow.ID)
	}
	return nil
}
