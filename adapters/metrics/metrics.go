// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the service.
type Collector struct {
	// Decision metrics
	DecisionsTotal *prometheus.CounterVec
	ResolverErrors prometheus.Counter

	// Override write path metrics
	OverrideWrites  *prometheus.CounterVec
	OverrideDeletes *prometheus.CounterVec

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "decisions_total",
				Help:      "Access decisions by reason code",
			},
			[]string{"reason", "granted"},
		),
		ResolverErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "resolver_errors_total",
				Help:      "Resolve calls that failed (store unreachable or malformed input)",
			},
		),
		OverrideWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "override_writes_total",
				Help:      "Override upserts by result",
			},
			[]string{"result"}, // "created", "replaced", "invalid", "error"
		),
		OverrideDeletes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "override_deletes_total",
				Help:      "Override deletes by result",
			},
			[]string{"result"}, // "deleted", "not_found", "error"
		),
		StoreOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "entitled",
				Name:      "store_op_duration_seconds",
				Help:      "Override store operation duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "http_requests_total",
				Help:      "HTTP requests processed",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "entitled",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path", "status"},
		),
		ConfigReloads: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "config_reloads_total",
				Help:      "Successful configuration reloads",
			},
		),
		ConfigReloadErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "entitled",
				Name:      "config_reload_errors_total",
				Help:      "Failed configuration reloads",
			},
		),
	}
}
