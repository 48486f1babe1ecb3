package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafpost_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leafpost_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Preview pipeline metrics
	PreviewsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafpost_previews_issued_total",
			Help: "Preview requests issued to the remote transformer",
		},
	)

	PreviewsStaleDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafpost_previews_stale_dropped_total",
			Help: "Preview responses discarded for arriving after a newer request",
		},
	)

	PreviewFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafpost_preview_failures_total",
			Help: "Preview requests that ended in an error state",
		},
	)

	// Delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafpost_deliveries_total",
			Help: "Delivery submissions by outcome",
		},
		[]string{"outcome"}, // "delivered", "fallback", "rejected", "failed"
	)

	FallbackRenders = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafpost_fallback_renders_total",
			Help: "Locally generated fallback renderings",
		},
	)

	// Session guard metrics
	SessionProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leafpost_session_probes_total",
			Help: "Authentication oracle probes by result",
		},
		[]string{"result"}, // "authenticated", "denied", "transport_error", "cancelled"
	)

	// Directory metrics
	PersonasDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leafpost_personas_dropped_total",
			Help: "Persona records dropped for missing voice identifiers",
		},
	)
)
