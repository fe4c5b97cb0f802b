package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Check-in and report instrumentation, exposed on /metrics next to the
// default collectors.
var (
	CheckinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendtrack_checkins_total",
		Help: "Check-in attempts by outcome.",
	}, []string{"outcome"})

	ReportCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_report_cache_hits_total",
		Help: "Report requests served from cache.",
	})

	ReportCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendtrack_report_cache_misses_total",
		Help: "Report requests that recomputed.",
	})

	AggregateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "attendtrack_aggregate_duration_seconds",
		Help:    "Wall time of bulk aggregation runs.",
		Buckets: prometheus.DefBuckets,
	})
)
