// Package metrics exports bot activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fleetbot"

// Collector records flow outcomes, dispatch latency and reminders
type Collector struct {
	outcomes  *prometheus.CounterVec
	dispatch  *prometheus.HistogramVec
	reminders *prometheus.CounterVec
}

// New creates a collector and registers it with reg
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flow_outcomes_total",
				Help:      "Total number of engine outcomes by flow",
			},
			[]string{"flow", "outcome"},
		),
		dispatch: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Histogram of inbound message handling duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"}, // kind: start, continue, command, unrecognized
		),
		reminders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "shift_reminders_total",
				Help:      "Total number of overdue shift reminders",
			},
			[]string{"status"}, // status: sent, error
		),
	}

	for _, col := range []prometheus.Collector{c.outcomes, c.dispatch, c.reminders} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ObserveOutcome counts one engine outcome
func (c *Collector) ObserveOutcome(flowID string, outcome string) {
	if flowID == "" {
		flowID = "none"
	}
	c.outcomes.WithLabelValues(flowID, outcome).Inc()
}

// ObserveDispatch records how long one inbound message took
func (c *Collector) ObserveDispatch(kind string, elapsed time.Duration) {
	c.dispatch.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveReminder counts one reminder attempt
func (c *Collector) ObserveReminder(sent bool) {
	status := "sent"
	if !sent {
		status = "error"
	}
	c.reminders.WithLabelValues(status).Inc()
}
