package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK         = "ok"
	OutcomeBusiness   = "business"
	OutcomeFailOpen   = "fail_open"
	OutcomeFailClosed = "fail_closed"
)

// ValidationMetrics records how guarded validators finished.
type ValidationMetrics struct {
	outcomes *prometheus.CounterVec
	failOpen *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewValidationMetrics(reg prometheus.Registerer) *ValidationMetrics {
	if reg == nil {
		return &ValidationMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_runs_total",
		Help:      "Validator runs by outcome.",
	}, []string{"validator", "outcome"})
	failOpen := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "validation_fail_open_total",
		Help:      "Validator errors swallowed by a fail-open policy.",
	}, []string{"validator"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "validation_duration_seconds",
		Help:      "Validator run time in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"validator"})
	reg.MustRegister(outcomes, failOpen, duration)
	return &ValidationMetrics{outcomes: outcomes, failOpen: failOpen, duration: duration}
}

// Observe records one validator run.
func (v *ValidationMetrics) Observe(validator, outcome string, elapsed time.Duration) {
	if v == nil || v.outcomes == nil {
		return
	}
	validator = normalizeLabel(validator)
	v.outcomes.WithLabelValues(validator, outcome).Inc()
	v.duration.WithLabelValues(validator).Observe(elapsed.Seconds())
	if outcome == OutcomeFailOpen {
		v.failOpen.WithLabelValues(validator).Inc()
	}
}
