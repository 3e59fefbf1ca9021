// Package metrics holds the admission counters. They live apart from the
// HTTP package so guards can record outcomes without importing it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AdmissionDecisions counts pipeline outcomes. guard is the rejecting
	// guard, "action" for terminal failures, or "" on success.
	AdmissionDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_decisions_total",
		Help: "Admission pipeline outcomes by route, guard and error kind",
	}, []string{"route", "guard", "outcome"})

	AdmissionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admission_duration_seconds",
		Help:    "Time spent in an admission pipeline run",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	RateLimiterErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limiter_errors_total",
		Help: "Limiter backend failures; the request is let through",
	}, []string{"route"})
)

// Register adds the collectors to reg (default registerer if nil).
// Re-registration is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{AdmissionDecisions, AdmissionDuration, RateLimiterErrors} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
