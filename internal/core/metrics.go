package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Validation run metrics
	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetguard_validations_total",
			Help: "Total number of validation runs by file format and outcome",
		},
		[]string{"format", "outcome"},
	)

	validationDiagnostics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetguard_diagnostics_total",
			Help: "Total number of problems reported, excluding worksheet markers",
		},
	)

	validationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetguard_validation_duration_seconds",
			Help:    "Duration of a validation run in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)

	validationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sheetguard_validations_in_flight",
			Help: "Current number of validations holding a limiter slot",
		},
	)

	validationsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetguard_validations_rejected_total",
			Help: "Total number of validations refused because every slot was busy",
		},
	)
)

// Outcome labels for sheetguard_validations_total.
const (
	outcomePassed = "passed"
	outcomeFailed = "failed"
	outcomeError  = "error"
)

func recordResult(format Format, res Result, seconds float64) {
	outcome := outcomePassed
	if !res.Success {
		outcome = outcomeFailed
	}
	validationsTotal.WithLabelValues(string(format), outcome).Inc()
	validationDuration.WithLabelValues(string(format)).Observe(seconds)
	validationDiagnostics.Add(float64(res.Problems()))
}

func recordError(format Format) {
	validationsTotal.WithLabelValues(string(format), outcomeError).Inc()
}
