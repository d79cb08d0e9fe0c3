package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_rows_loaded_total",
			Help: "Total rows loaded from input sources",
		},
		[]string{"source"},
	)

	RowsFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_rows_flagged_total",
			Help: "Rows loaded with a data quality flag",
		},
		[]string{"source", "flag"},
	)

	LoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_load_failures_total",
			Help: "Source loads that failed (missing sources are not failures)",
		},
		[]string{"source"},
	)

	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockcast_recompute_duration_seconds",
			Help:    "Time spent recomputing page data from the cached dataset",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"page"},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_exports_total",
			Help: "Summary exports served",
		},
		[]string{"format"},
	)

	RecommendationGaps = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stockcast_recommendation_gaps",
			Help: "Locations with a business profile but no recommendation rule",
		},
	)
)
