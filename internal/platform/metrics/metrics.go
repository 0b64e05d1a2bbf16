// Package metrics registers the prometheus collectors the core observes.
// Collectors are package-level and registered once on the default registry,
// so every facade instance in a process shares them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LawViolations counts invariant breaches per law. Any non-zero value is
	// an implementation defect, which is exactly why it is worth counting.
	LawViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_law_violations_total",
		Help: "Total invariant violations raised, labelled by law identifier",
	}, []string{"law"})

	// Operations counts facade calls by operation and outcome (ok, user_error,
	// violation, error).
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circles_operations_total",
		Help: "Total facade operations, labelled by operation and outcome",
	}, []string{"op", "outcome"})

	// ResolveDurationMs tracks visibility resolution latency.
	ResolveDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "circles_resolve_duration_ms",
		Help:    "Latency of signal map resolution in milliseconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})

	// KVDurationMs tracks storage adapter latency per backend and operation.
	KVDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "circles_kv_op_duration_ms",
		Help:    "Latency of key/value operations in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	}, []string{"backend", "op"})
)
