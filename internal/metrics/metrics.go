// Package metrics holds the Prometheus collectors exported at /metrics.
// Collectors register on the default registry via promauto, so importing the
// package is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Storage

	// StorageBackend is 1 for the backend selected at startup and 0 for the others.
	StorageBackend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapme_storage_backend",
			Help: "Storage backend selected at startup (1 = active)",
		},
		[]string{"backend"}, // postgres, mongo, memory
	)

	StorageSelectionSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mapme_storage_selection_seconds",
			Help:    "Time spent probing the durable backend at startup",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Journal

	EntriesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapme_entries_created_total",
			Help: "Total number of journal entries created",
		},
		[]string{"kind"}, // marker, route
	)

	EntriesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapme_entries_deleted_total",
			Help: "Total number of journal entries deleted",
		},
	)

	PointsAppended = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapme_points_appended_total",
			Help: "Total number of path points appended to existing entries",
		},
	)

	PhotoReleaseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mapme_photo_release_failures_total",
			Help: "Photo releases that failed after the entry was deleted",
		},
	)

	// Enrichment

	EnrichmentDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapme_enrichment_degraded_total",
			Help: "Enrichment lookups that failed and were absorbed",
		},
		[]string{"lookup"}, // geocode, nearby
	)

	EnrichmentCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapme_enrichment_cache_total",
			Help: "Enrichment cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mapme_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapme_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Capture sessions

	CaptureSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapme_capture_sessions",
			Help: "Open capture websocket sessions",
		},
	)

	CapturesFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapme_captures_finalized_total",
			Help: "Captures handed over for persistence",
		},
		[]string{"kind"},
	)
)

// SetStorageBackend marks active as the selected backend.
func SetStorageBackend(active string) {
	for _, b := range []string{"postgres", "mongo", "memory"} {
		v := 0.0
		if b == active {
			v = 1
		}
		StorageBackend.WithLabelValues(b).Set(v)
	}
}
