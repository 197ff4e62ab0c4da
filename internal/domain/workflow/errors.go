package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFlow is returned when a flow id is not registered
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrUnknownStep is returned when a step id is not part of a flow
	ErrUnknownStep = errors.New("unknown step")

	// ErrInvalidFlow is returned by the builder for an inconsistent definition
	ErrInvalidFlow = errors.New("invalid flow definition")

	// ErrBusy is returned when a flow cannot start because something is in progress
	ErrBusy = errors.New("busy")

	// ErrPrecondition is returned when a flow cannot start in the current state
	ErrPrecondition = errors.New("precondition failed")
)

// Error taxonomy shared by the engine, the finalizers and the store
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthorized    = errors.New("not authorized")
	ErrNotFound         = errors.New("not found")
	ErrDuplicate        = errors.New("duplicate entity")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Class is the handling class of an error
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassNotAuthorized
	ClassNotFound
	ClassDuplicate
	ClassUnavailable
)

var classNames = map[Class]string{
	ClassUnknown:       "unknown",
	ClassValidation:    "validation",
	ClassNotAuthorized: "not_authorized",
	ClassNotFound:      "not_found",
	ClassDuplicate:     "duplicate",
	ClassUnavailable:   "unavailable",
}

// String returns the class name
func (c Class) String() string {
	return classNames[c]
}

// Retryable reports whether the same operation may succeed later unchanged
func (c Class) Retryable() bool {
	return c == ClassUnavailable
}

// Classify maps an error onto the taxonomy
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrNotAuthorized):
		return ClassNotAuthorized
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrDuplicate):
		return ClassDuplicate
	case errors.Is(err, ErrStoreUnavailable):
		return ClassUnavailable
	}
	return ClassUnknown
}

// RefusalError is returned by a flow's prepare hook to refuse a start.
// Reason is a message key shown to the user.
type RefusalError struct {
	Kind   error
	Reason string
}

// Error implements error
func (e *RefusalError) Error() string {
	return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
}

// Unwrap returns the refusal kind (ErrBusy or ErrPrecondition)
func (e *RefusalError) Unwrap() error {
	return e.Kind
}

// Refuse reports that a flow's precondition does not hold
func Refuse(reason string) error {
	return &RefusalError{Kind: ErrPrecondition, Reason: reason}
}

// BusyWith reports that the user already has work of this kind in progress
func BusyWith(reason string) error {
	return &RefusalError{Kind: ErrBusy, Reason: reason}
}
