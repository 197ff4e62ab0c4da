package validator

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ChoiceValidator accepts one of a fixed set of options
type ChoiceValidator struct {
	options []Option
}

// Opt is shorthand for an Option literal
func Opt(value, label string) Option {
	return Option{Value: value, Label: label}
}

// OneOf creates an enum validator. The user may answer with the 1-based
// number, "N: label", the value or the label.
func OneOf(options ...Option) *ChoiceValidator {
	return &ChoiceValidator{options: append([]Option(nil), options...)}
}

// Options implements Enumerable
func (v *ChoiceValidator) Options() []Option {
	return append([]Option(nil), v.options...)
}

// List implements Lister
func (v *ChoiceValidator) List(Scope) []Option {
	return v.Options()
}

// Validate implements Validator
func (v *ChoiceValidator) Validate(in Input, _ Scope) Outcome {
	if opt, ok := matchOption(v.options, in.Text); ok {
		return Accept(opt.Value)
	}
	return Reject(ReasonNotAnOption)
}

// PickValidator accepts one entry of a candidate list stored in the scope
type PickValidator struct {
	key string
}

// Pick creates a validator over the candidates encoded under key
// (see EncodeOptions). The accepted value is the candidate's Value.
func Pick(key string) *PickValidator {
	return &PickValidator{key: key}
}

// Key returns the scope key holding the candidates
func (v *PickValidator) Key() string {
	return v.key
}

// List implements Lister
func (v *PickValidator) List(scope Scope) []Option {
	if scope == nil {
		return nil
	}
	raw, ok := scope.Lookup(v.key)
	if !ok {
		return nil
	}
	opts, err := DecodeOptions(raw)
	if err != nil {
		return nil
	}
	return opts
}

// Validate implements Validator
func (v *PickValidator) Validate(in Input, scope Scope) Outcome {
	if opt, ok := matchOption(v.List(scope), in.Text); ok {
		return Accept(opt.Value)
	}
	return Reject(ReasonNotAnOption)
}

// EncodeOptions serializes a candidate list for storage in a session seed
func EncodeOptions(opts []Option) string {
	data, err := json.Marshal(opts)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeOptions reverses EncodeOptions
func DecodeOptions(raw string) ([]Option, error) {
	var opts []Option
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

func matchOption(options []Option, raw string) (Option, bool) {
	text := strings.TrimSpace(raw)
	if text == "" || len(options) == 0 {
		return Option{}, false
	}

	head := text
	if idx := strings.IndexByte(text, ':'); idx > 0 {
		head = strings.TrimSpace(text[:idx])
	}
	if n, err := strconv.Atoi(head); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return Option{}, false
	}

	for _, opt := range options {
		if strings.EqualFold(text, opt.Value) || strings.EqualFold(text, opt.Label) {
			return opt, true
		}
	}
	return Option{}, false
}
