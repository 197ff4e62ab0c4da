package workflow

import "fmt"

// Registry holds the immutable flow definitions loaded at process start
type Registry struct {
	flows map[FlowID]*Flow
	ids   []FlowID
}

// Flow returns the flow definition for id
func (r *Registry) Flow(id FlowID) (*Flow, error) {
	f, ok := r.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, id)
	}
	return f, nil
}

// Step returns one step of a flow
func (r *Registry) Step(flowID FlowID, stepID StepID) (*Step, error) {
	f, err := r.Flow(flowID)
	if err != nil {
		return nil, err
	}
	s, ok := f.Step(stepID)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownStep, flowID, stepID)
	}
	return s, nil
}

// Flows returns all flows sorted by id
func (r *Registry) Flows() []*Flow {
	out := make([]*Flow, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.flows[id])
	}
	return out
}

// Has reports whether a flow is registered
func (r *Registry) Has(id FlowID) bool {
	_, ok := r.flows[id]
	return ok
}
