// Package metrics registers the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamr_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamr_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// VisibilityTransitionsTotal counts stream visibility changes by transition and outcome.
	VisibilityTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamr_visibility_transitions_total",
			Help: "Total number of stream publish, unpublish and delete attempts",
		},
		[]string{"transition", "outcome"},
	)

	EnrichmentJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamr_enrichment_jobs_total",
			Help: "Total number of enrichment jobs by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	EnrichmentQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamr_enrichment_jobs_dropped_total",
			Help: "Total number of enrichment jobs dropped because the queue was full",
		},
	)

	OMDbCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamr_omdb_cache_lookups_total",
			Help: "OMDb title cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordTransition records a visibility transition attempt.
func RecordTransition(transition, outcome string) {
	VisibilityTransitionsTotal.WithLabelValues(transition, outcome).Inc()
}

// RecordEnrichmentJob records a processed enrichment job.
func RecordEnrichmentJob(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	EnrichmentJobsTotal.WithLabelValues(kind, outcome).Inc()
}
