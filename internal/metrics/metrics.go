// Package metrics exposes Prometheus instrumentation for the analytics
// service. All collectors live in a per-instance registry so tests can
// construct isolated sets.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Set bundles the service collectors and the registry they belong to.
type Set struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	processRuns *prometheus.CounterVec
}

// New builds a Set with a fresh registry.
func New() *Set {
	s := &Set{registry: prometheus.NewRegistry()}

	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nfspect_requests_total",
		Help: "Analysis requests by operation and outcome category.",
	}, []string{"operation", "category"})

	s.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nfspect_request_duration_seconds",
		Help:    "End-to-end request latency per operation.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"operation"})

	s.processRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nfspect_process_runs_total",
		Help: "External tool invocations by tool and outcome.",
	}, []string{"tool", "outcome"})

	s.registry.MustRegister(s.requests, s.duration, s.processRuns)
	return s
}

// Registry returns the registry for handler wiring.
func (s *Set) Registry() *prometheus.Registry { return s.registry }

// ObserveRequest records one completed request.
func (s *Set) ObserveRequest(operation, category string, elapsed time.Duration) {
	s.requests.WithLabelValues(operation, category).Inc()
	s.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveProcessRun records one external tool invocation.
func (s *Set) ObserveProcessRun(tool, outcome string) {
	s.processRuns.WithLabelValues(tool, outcome).Inc()
}
