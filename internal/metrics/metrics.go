// Package metrics defines the Prometheus collectors exported by the API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recipe_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AttributesCreated counts tags and ingredients created as a side effect
	// of resolving recipe payloads.
	AttributesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_attributes_created_total",
			Help: "Tags and ingredients created while resolving recipe payloads",
		},
		[]string{"kind"},
	)

	EventsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_events_pruned_total",
			Help: "Activity events removed by housekeeping",
		},
	)

	StoredRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recipe_stored_rows",
			Help: "Rows currently stored per table",
		},
		[]string{"table"},
	)

	HostMemoryUsedPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_host_memory_used_percent",
			Help: "Host memory in use, as a percentage",
		},
	)
)

// RecordAPIRequest records a finished request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
