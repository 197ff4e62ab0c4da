package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/fleetbot/internal/application/dispatcher"
	"github.com/garyjia/fleetbot/internal/application/workflow"
)

var (
	_ workflow.Observer   = (*Collector)(nil)
	_ dispatcher.Observer = (*Collector)(nil)
)

func TestCollector_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveOutcome("open_shift", "prompted")
	c.ObserveOutcome("open_shift", "prompted")
	c.ObserveOutcome("open_shift", "completed")
	c.ObserveOutcome("", "idle")

	assert.Equal(t, float64(2), testutil.ToFloat64(c.outcomes.WithLabelValues("open_shift", "prompted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.outcomes.WithLabelValues("open_shift", "completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.outcomes.WithLabelValues("none", "idle")))
}

func TestCollector_Reminders(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveReminder(true)
	c.ObserveReminder(false)

	expected := `
# HELP fleetbot_shift_reminders_total Total number of overdue shift reminders
# TYPE fleetbot_shift_reminders_total counter
fleetbot_shift_reminders_total{status="error"} 1
fleetbot_shift_reminders_total{status="sent"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "fleetbot_shift_reminders_total"))
}

func TestCollector_Dispatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.ObserveDispatch("start", 20*time.Millisecond)
	c.ObserveDispatch("continue", time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(c.dispatch))
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
