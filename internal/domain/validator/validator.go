// Package validator holds the pure input checks used by flow steps.
// A validator never performs I/O: it looks at one inbound message and,
// optionally, at values already collected in the same session.
package validator

// Reason identifies why an input was rejected. It doubles as a message key.
type Reason string

const (
	ReasonInvalidPhone       Reason = "invalid_phone"
	ReasonNotANumber         Reason = "not_a_number"
	ReasonOutOfRange         Reason = "out_of_range"
	ReasonMustExceedPrevious Reason = "must_exceed_previous"
	ReasonTextRequired       Reason = "text_required"
	ReasonTooShort           Reason = "too_short"
	ReasonNotAnOption        Reason = "not_an_option"
	ReasonPhotoRequired      Reason = "photo_required"
	ReasonInvalidPlate       Reason = "invalid_plate"
)

// String returns the string representation of the reason
func (r Reason) String() string {
	return string(r)
}

// Input is an inbound message reduced to what validators look at
type Input struct {
	Text    string
	PhotoID string
}

// Text builds a text-only input
func Text(s string) Input {
	return Input{Text: s}
}

// PhotoInput builds an image input
func PhotoInput(imageKey string) Input {
	return Input{PhotoID: imageKey}
}

// Scope gives read access to previously collected values
type Scope interface {
	Lookup(key string) (string, bool)
}

// Outcome is either Accepted (Reason empty) or Rejected
type Outcome struct {
	Value  string
	Reason Reason
	Params map[string]string
}

// Accept returns an accepted outcome carrying the normalized value
func Accept(value string) Outcome {
	return Outcome{Value: value}
}

// Reject returns a rejected outcome; params are substituted into the message
func Reject(reason Reason, params ...string) Outcome {
	o := Outcome{Reason: reason}
	if len(params) > 1 {
		o.Params = make(map[string]string, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			o.Params[params[i]] = params[i+1]
		}
	}
	return o
}

// Accepted reports whether the input passed
func (o Outcome) Accepted() bool {
	return o.Reason == ""
}

// Validator checks one raw input against a field constraint
type Validator interface {
	Validate(in Input, scope Scope) Outcome
}

// Func adapts a plain function to Validator
type Func func(in Input, scope Scope) Outcome

// Validate implements Validator
func (f Func) Validate(in Input, scope Scope) Outcome {
	return f(in, scope)
}

// Option is one selectable value of an enum-like step
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Enumerable is implemented by validators with a fixed option set.
// The registry uses it to check that branch tables are total.
type Enumerable interface {
	Options() []Option
}

// Lister is implemented by validators whose options are rendered to the user.
// The scope lets session-specific candidate lists be shown.
type Lister interface {
	List(scope Scope) []Option
}

type emptyScope struct{}

func (emptyScope) Lookup(string) (string, bool) { return "", false }

// NoScope is a scope with no values
var NoScope Scope = emptyScope{}
