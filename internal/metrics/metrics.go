// Package metrics provides Prometheus metrics for the document server
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// The metrics are package level because they are updated from several
// subsystems (store, session tracker, http handlers) that have no common
// construction point.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docserve_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docserve_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	EditsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docserve_edits_applied_total",
			Help: "Total number of edit instructions applied",
		},
	)

	QueryParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docserve_query_parse_failures_total",
			Help: "Total number of queries rejected by the parser",
		},
	)

	DocumentsResident = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docserve_documents_resident",
			Help: "Number of documents currently loaded in memory",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docserve_sessions_active",
			Help: "Number of active editor sessions",
		},
	)

	PollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docserve_polls_total",
			Help: "Total number of update polls",
		},
	)

	GitCommits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docserve_git_commits_total",
			Help: "Total number of git commits recorded on save",
		},
	)
)
