package presenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/internal/application/workflow"
	"github.com/garyjia/fleetbot/internal/domain/validator"
)

func newTestPresenter(t *testing.T, opts ...Option) *Presenter {
	t.Helper()
	p, err := New(opts...)
	require.NoError(t, err)
	return p
}

func TestParse_Flattens(t *testing.T) {
	messages, err := Parse([]byte(`
a:
  b: "one"
  c:
    d: "two"
top: plain
n: 3
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.b":   "one",
		"a.c.d": "two",
		"top":   "plain",
		"n":     "3",
	}, messages)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse([]byte("list:\n  - a\n  - b\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("a: [unclosed"))
	assert.Error(t, err)
}

func TestCatalogCoversFixedKeys(t *testing.T) {
	p := newTestPresenter(t)

	keys := []string{
		dispatcher.KeyNotAuthorized,
		dispatcher.KeyAlreadyLinked,
		dispatcher.KeyLoginRequired,
		dispatcher.KeyUnrecognized,
		dispatcher.KeyInternalError,
		dispatcher.KeyStoreUnavailable,
		keyCancelled,
		keyAborted,
	}
	for _, r := range []validator.Reason{
		validator.ReasonInvalidPhone,
		validator.ReasonNotANumber,
		validator.ReasonOutOfRange,
		validator.ReasonMustExceedPrevious,
		validator.ReasonTextRequired,
		validator.ReasonTooShort,
		validator.ReasonNotAnOption,
		validator.ReasonPhotoRequired,
		validator.ReasonInvalidPlate,
	} {
		keys = append(keys, prefixReason+r.String())
	}
	for _, r := range []string{
		workflow.ReasonSessionActive,
		workflow.ReasonFlowUnavailable,
		workflow.ReasonStoreUnavailable,
		workflow.ReasonDuplicate,
		workflow.ReasonNothingToCancel,
	} {
		keys = append(keys, prefixReason+r)
	}

	for _, key := range keys {
		assert.True(t, p.Has(key), key)
	}
}

func TestText(t *testing.T) {
	p := newTestPresenter(t)

	assert.Equal(t, "The value must be between 0 and 100.",
		p.Text("reason.out_of_range", map[string]string{"min": "0", "max": "100"}))
	assert.Equal(t, "Cancelled.", p.Text("outcome.cancelled", nil))
	assert.Equal(t, "no.such.key", p.Text("no.such.key", nil))
}

func TestWithOverrides(t *testing.T) {
	p := newTestPresenter(t, WithOverrides([]byte("outcome:\n  cancelled: \"Отменено.\"\n")))
	assert.Equal(t, "Отменено.", p.Text("outcome.cancelled", nil))
	assert.Equal(t, "The action was stopped.", p.Text("outcome.aborted", nil))

	broken := newTestPresenter(t, WithOverrides([]byte("outcome: [")))
	assert.Equal(t, "Cancelled.", broken.Text("outcome.cancelled", nil))
}

func TestResult(t *testing.T) {
	p := newTestPresenter(t)
	conditions := []validator.Option{
		validator.Opt("excellent", "Excellent"),
		validator.Opt("good", "Good"),
	}

	tests := []struct {
		name string
		res  *workflow.Result
		want string
	}{
		{
			name: "prompt",
			res:  &workflow.Result{Outcome: workflow.OutcomePrompted, FlowID: "open_shift", Prompt: "open_shift.mileage_start"},
			want: "Enter the current odometer reading in km.",
		},
		{
			name: "prompt with options",
			res:  &workflow.Result{Outcome: workflow.OutcomePrompted, FlowID: "close_shift", Prompt: "close_shift.condition", Options: conditions},
			want: "How is the vehicle?\n1: Excellent\n2: Good",
		},
		{
			name: "reprompt",
			res: &workflow.Result{
				Outcome: workflow.OutcomeReprompt, FlowID: "close_shift", Prompt: "close_shift.mileage_end",
				Reason: "must_exceed_previous", Params: map[string]string{"previous": "12345"},
			},
			want: "The value must be greater than 12345.\nEnter the odometer reading in km.",
		},
		{
			name: "duplicate",
			res: &workflow.Result{
				Outcome: workflow.OutcomeReprompt, FlowID: "add_driver", Prompt: "add_driver.phone",
				Reason: workflow.ReasonDuplicate, Params: map[string]string{"field": "phone"},
			},
			want: "This phone is already registered. Enter another one.\nEnter the driver's phone number.",
		},
		{
			name: "busy",
			res:  &workflow.Result{Outcome: workflow.OutcomeBusy, FlowID: "open_shift", Reason: "shift_active"},
			want: "You already have an open shift.",
		},
		{
			name: "refused",
			res:  &workflow.Result{Outcome: workflow.OutcomeRefused, FlowID: "fuel_report", Reason: "no_vehicle"},
			want: "You have no vehicle assigned. Ask your fleet manager.",
		},
		{
			name: "cancelled",
			res:  &workflow.Result{Outcome: workflow.OutcomeCancelled, FlowID: "add_driver"},
			want: "Cancelled.",
		},
		{
			name: "aborted with known reason",
			res:  &workflow.Result{Outcome: workflow.OutcomeAborted, FlowID: "driver_login", Reason: "driver_not_found"},
			want: "No driver is registered with that phone number.",
		},
		{
			name: "aborted with unknown reason",
			res:  &workflow.Result{Outcome: workflow.OutcomeAborted, FlowID: "driver_login", Reason: "mystery"},
			want: "The action was stopped.",
		},
		{
			name: "completed",
			res: &workflow.Result{
				Outcome: workflow.OutcomeCompleted, FlowID: "open_shift",
				Stats: map[string]string{"mileage_start": "12345", "started_at": "08:00"},
			},
			want: "Shift opened at 08:00. Starting mileage: 12345 km.",
		},
		{
			name: "deferred",
			res:  &workflow.Result{Outcome: workflow.OutcomeDeferred, FlowID: "open_shift", Reason: workflow.ReasonStoreUnavailable},
			want: "The service is temporarily unavailable. Send any message to retry.",
		},
		{
			name: "idle cancel",
			res:  &workflow.Result{Outcome: workflow.OutcomeIdle, Reason: workflow.ReasonNothingToCancel},
			want: "There is nothing to cancel.",
		},
		{
			name: "idle",
			res:  &workflow.Result{Outcome: workflow.OutcomeIdle},
			want: "I did not understand that. Send /help to see what I can do.",
		},
		{
			name: "nil",
			res:  nil,
			want: "Something went wrong. Please try again.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Result(tt.res))
		})
	}
}

func TestFormatOptions(t *testing.T) {
	assert.Equal(t, "", FormatOptions(nil))
	assert.Equal(t, "1: Yes\n2: No, pick another", FormatOptions([]validator.Option{
		validator.Opt("yes", "Yes"),
		validator.Opt("no", "No, pick another"),
	}))
}
