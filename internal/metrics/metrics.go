// Package metrics declares the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest
	IngestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_ingest_requests_total",
			Help: "Snapshot reports received, by result",
		},
		[]string{"result"}, // accepted, throttled, invalid
	)

	SnapshotsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_snapshots_inserted_total",
			Help: "Snapshots written to DuckDB",
		},
	)

	InsertBackpressure = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_insert_backpressure_total",
			Help: "Inline flushes triggered because the flush queue was full",
		},
	)

	// Rendering
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_render_duration_seconds",
			Help:    "Time to query, aggregate, lay out, and encode one chart",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"report"},
	)

	RenderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_render_errors_total",
			Help: "Chart renders that returned an error",
		},
		[]string{"report"},
	)

	RenderCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_render_cache_total",
			Help: "Hourly render cache lookups, by result",
		},
		[]string{"result"}, // hit, miss
	)

	// Geolocation
	GeolocationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_geolocation_requests_total",
			Help: "Country lookups, by result",
		},
		[]string{"result"}, // success, cached, skipped, limited, rejected, failure
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// ObserveRender records one render duration for report.
func ObserveRender(report string, start time.Time, err error) {
	RenderDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
	if err != nil {
		RenderErrors.WithLabelValues(report).Inc()
	}
}
