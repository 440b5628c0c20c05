// Package metrics holds the Prometheus collectors for the search and ranking
// core and the store decorator. Collectors register on the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whiskeybar_search_duration_seconds",
			Help:    "Duration of catalog searches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"}, // "ok", "empty", "degraded"
	)

	SearchTierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiskeybar_search_tier_failures_total",
			Help: "Search tiers that failed and were skipped",
		},
		[]string{"tier"},
	)

	RankDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "whiskeybar_rank_duration_seconds",
			Help:    "Duration of ranking computations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RankSkippedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiskeybar_rank_skipped_rows_total",
			Help: "Catalog entries skipped because their stats join failed",
		},
	)

	StoreSkippedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiskeybar_store_skipped_records_total",
			Help: "Stored records skipped on read because they could not be decoded",
		},
		[]string{"bucket"}, // "whiskeys", "reviews", "idx_name", "idx_distillery"
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiskeybar_degraded_responses_total",
			Help: "Responses returned empty because the store was unavailable",
		},
		[]string{"operation"}, // "search", "rank"
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "whiskeybar_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiskeybar_store_breaker_requests_total",
			Help: "Store calls through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)
)
