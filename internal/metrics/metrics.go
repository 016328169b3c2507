// Package metrics exposes prometheus collectors for the filter pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

var (
	// Dataset queries by kind (extreme, modal, average, histogram) and outcome
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trees_queries_total",
		Help: "Dataset queries issued by the filter pipeline",
	}, []string{"kind", "outcome"})

	// Dataset query latency
	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trees_query_duration_seconds",
		Help:    "Latency of dataset queries",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	}, []string{"kind"})

	// Recomputes applied vs discarded as stale
	RecomputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trees_recomputes_total",
		Help: "Debounced recomputes by component and result",
	}, []string{"component", "result"})

	// Histogram cache hits
	HistogramCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trees_histogram_cache_hits_total",
		Help: "Histogram recomputes served from the LRU cache",
	})

	// Animation ticks applied to the range filter
	AnimationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trees_animation_ticks_total",
		Help: "Sweep animation ticks",
	})

	// Whether the sweep animation is playing (0/1)
	AnimationPlaying = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trees_animation_playing",
		Help: "1 while the sweep animation plays",
	})
)
