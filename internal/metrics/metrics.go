// Package metrics defines the Prometheus collectors shared by the retrieval subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "diary"

var (
	// IndexRebuildsTotal counts finished rebuilds.
	// Labels: result (success, removed, failed)
	IndexRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Total number of tenant index rebuilds by result",
		},
		[]string{"result"},
	)

	// IndexRebuildDuration tracks how long full rebuilds take.
	IndexRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "rebuild_duration_seconds",
			Help:      "Duration of tenant index rebuilds in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// IndexRebuildVectors tracks how many vectors each successful rebuild produced.
	IndexRebuildVectors = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "rebuild_vectors",
			Help:      "Number of vectors in a rebuilt tenant index",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// RebuildsPending is the number of tenants waiting for a rebuild slot or a follow-up run.
	RebuildsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "rebuilds_pending",
			Help:      "Number of tenants with a scheduled but not yet running rebuild",
		},
	)

	// EmbeddingFailuresTotal counts chunks skipped because embedding failed.
	EmbeddingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "embedding_failures_total",
			Help:      "Total number of chunks skipped during rebuild due to embedding failures",
		},
	)

	// IndexCacheLoadsTotal counts tenant index lookups.
	// Labels: result (hit, loaded, not_indexed, corrupt, error)
	IndexCacheLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "cache_loads_total",
			Help:      "Total number of tenant index lookups by result",
		},
		[]string{"result"},
	)

	// ResponseCacheLookupsTotal counts response cache reads.
	// Labels: prefix (notes, search), result (hit, miss, error)
	ResponseCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response_cache",
			Name:      "lookups_total",
			Help:      "Total number of response cache lookups by key prefix and result",
		},
		[]string{"prefix", "result"},
	)

	// ResponseCacheInvalidationsTotal counts entries removed by tenant invalidation.
	ResponseCacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response_cache",
			Name:      "invalidated_entries_total",
			Help:      "Total number of response cache entries removed by tenant invalidation",
		},
	)

	// SearchRequestsTotal counts retrieval pipeline runs.
	// Labels: mode (semantic, hybrid), result (success, error)
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of search pipeline runs by mode and result",
		},
		[]string{"mode", "result"},
	)

	// SearchDuration tracks retrieval pipeline latency.
	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Duration of search pipeline runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// TasksRecordedTotal counts extracted task candidates by outcome.
	// Labels: result (created, duplicate, skipped)
	TasksRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "recorded_total",
			Help:      "Total number of extracted task candidates by outcome",
		},
		[]string{"result"},
	)

	// RateLimitedTotal counts requests rejected by the per-tenant limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the per-tenant rate limiter",
		},
	)
)
