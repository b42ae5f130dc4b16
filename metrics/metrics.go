package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_queries_executed_total",
			Help: "Total number of store queries executed",
		},
		[]string{"backend", "kind"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_query_errors_total",
			Help: "Total number of failed store queries",
		},
		[]string{"backend", "kind"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trafficslice_query_duration_seconds",
			Help:    "Time taken by store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "kind"},
	)

	AnalyticsFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trafficslice_analytics_fallback_total",
			Help: "Number of analytics requests answered with the synthesized whole-period point",
		},
	)

	RejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_rejected_requests_total",
			Help: "Requests rejected before reaching the store",
		},
		[]string{"reason"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_cache_hits_total",
			Help: "Cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_cache_misses_total",
			Help: "Cache misses",
		},
		[]string{"cache"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_cache_errors_total",
			Help: "Cache errors by operation",
		},
		[]string{"cache", "operation"},
	)

	APIPanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_api_panics_recovered_total",
			Help: "Panics recovered by the HTTP error recovery middleware",
		},
		[]string{"method", "path"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trafficslice_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)
)
