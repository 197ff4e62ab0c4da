package validator

import (
	"strconv"
	"strings"
)

// IntegerValidator accepts whole numbers within [min, max]
type IntegerValidator struct {
	min   int64
	max   int64
	above string
}

// Integer creates a bounded integer validator
func Integer(min, max int64) *IntegerValidator {
	return &IntegerValidator{min: min, max: max}
}

// Above returns a copy that also requires the value to be strictly greater
// than the value stored under key in the scope
func (v *IntegerValidator) Above(key string) *IntegerValidator {
	cp := *v
	cp.above = key
	return &cp
}

// Validate implements Validator
func (v *IntegerValidator) Validate(in Input, scope Scope) Outcome {
	n, ok := parseInteger(in.Text)
	if !ok {
		return Reject(ReasonNotANumber)
	}

	if n < v.min || n > v.max {
		return Reject(ReasonOutOfRange,
			"min", strconv.FormatInt(v.min, 10),
			"max", strconv.FormatInt(v.max, 10))
	}

	if v.above != "" && scope != nil {
		if raw, found := scope.Lookup(v.above); found {
			prev, err := strconv.ParseInt(raw, 10, 64)
			if err == nil && n <= prev {
				return Reject(ReasonMustExceedPrevious, "previous", raw)
			}
		}
	}

	return Accept(strconv.FormatInt(n, 10))
}

// Percentage accepts an integer 0..100 with an optional trailing percent sign
func Percentage() Validator {
	bounds := Integer(0, 100)
	return Func(func(in Input, scope Scope) Outcome {
		text := strings.TrimSuffix(strings.TrimSpace(in.Text), "%")
		return bounds.Validate(Input{Text: text, PhotoID: in.PhotoID}, scope)
	})
}

// parseInteger reads a decimal integer, ignoring surrounding and grouping spaces
func parseInteger(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
