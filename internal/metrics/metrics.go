package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Derivation metrics
	Derivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapper_derivations_total",
			Help: "Total number of zap info derivations by outcome",
		},
		[]string{"outcome"},
	)

	DeriveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zapper_derive_duration_seconds",
		Help:    "Zap info derivation duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	SupersededDerivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zapper_superseded_derivations_total",
		Help: "Total number of derivations discarded because a newer input arrived",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapper_quote_requests_total",
			Help: "Total number of best trade requests",
		},
		[]string{"status"},
	)

	// Guard metrics
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapper_guard_decisions_total",
			Help: "Total number of execution guard decisions by state",
		},
		[]string{"state"},
	)

	// Submission metrics
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapper_submissions_total",
			Help: "Total number of approval and zap submissions",
		},
		[]string{"kind", "status"},
	)

	ConfirmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zapper_confirm_duration_seconds",
			Help:    "Time from submission to receipt in seconds",
			Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	// RPC metrics
	RPCRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zapper_rpc_retries_total",
		Help: "Total number of retried RPC calls",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zapper_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zapper_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
