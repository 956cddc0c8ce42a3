package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertdash_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// Ingest metrics
	SamplesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdash_samples_ingested_total",
			Help: "Metric samples received, by outcome",
		},
		[]string{"status"}, // accepted, rejected, failed
	)

	RulesEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdash_rules_evaluated_total",
			Help: "Candidate rule evaluations, by outcome",
		},
		[]string{"outcome"}, // triggered, cooldown, stale, quiet
	)

	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdash_notifications_published_total",
			Help: "Fired alert notifications handed to the bus",
		},
		[]string{"status"}, // success, failed
	)

	NameCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertdash_name_cache_lookups_total",
			Help: "Metric name directory cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertdash_panics_recovered_total",
			Help: "Total number of panics recovered in HTTP handlers",
		},
	)
)
