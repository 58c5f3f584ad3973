// Package metrics defines the Prometheus metrics of the trigger service.
//
// All metrics carry the device_triggers_ prefix and are registered with the
// default registry, served by the /metrics route.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsTotal counts inbound events by message class, or "rejected" when
	// normalization failed.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_triggers_events_total",
			Help: "Inbound device events by message class.",
		},
		[]string{"class"},
	)

	// EvaluationsTotal counts subscription evaluations by outcome reason.
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_triggers_evaluations_total",
			Help: "Subscription evaluations by outcome reason.",
		},
		[]string{"reason"},
	)

	// DispatchFailuresTotal counts failed notification or command dispatches.
	DispatchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_triggers_dispatch_failures_total",
			Help: "Failed side-effect dispatches by stage.",
		},
		[]string{"stage"},
	)

	// CommandsPublishedTotal counts device commands published by action.
	CommandsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_triggers_commands_published_total",
			Help: "Device commands published by action.",
		},
		[]string{"action"},
	)

	PassDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "device_triggers_pass_duration_seconds",
			Help:    "Duration of one evaluation pass over a device's subscriptions.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// AutoDisabledTotal counts subscriptions disabled by the health sweep.
	AutoDisabledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_triggers_auto_disabled_total",
			Help: "Subscriptions auto-disabled by the health sweep, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		EvaluationsTotal,
		DispatchFailuresTotal,
		CommandsPublishedTotal,
		PassDurationSeconds,
		AutoDisabledTotal,
	)
}

// RecordEvent counts one inbound event.
func RecordEvent(class string) {
	EventsTotal.WithLabelValues(class).Inc()
}

// RecordEvaluation counts one subscription outcome.
func RecordEvaluation(reason string) {
	EvaluationsTotal.WithLabelValues(reason).Inc()
}

func RecordDispatchFailure(stage string) {
	DispatchFailuresTotal.WithLabelValues(stage).Inc()
}

func RecordCommand(action string) {
	CommandsPublishedTotal.WithLabelValues(action).Inc()
}

// ObservePass records the duration of an evaluation pass.
func ObservePass(d time.Duration) {
	PassDurationSeconds.Observe(d.Seconds())
}

func RecordAutoDisabled(reason string) {
	AutoDisabledTotal.WithLabelValues(reason).Inc()
}
