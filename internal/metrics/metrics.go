// Farol - Azure DevOps Work Item Sync and Dashboard Consolidation
// Copyright 2026 Farol Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/farolhq/farol

// Package metrics provides Prometheus instrumentation for the sync pipeline:
// remote call outcomes, batch sizes, rate-limit retries, partial hydration,
// cache efficiency, and consolidation timing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncDuration observes the wall time of a full consolidation run.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "farol_sync_duration_seconds",
			Help:    "Duration of full consolidation runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SyncRuns counts consolidation runs by outcome ("success", "error").
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farol_sync_runs_total",
			Help: "Total consolidation runs by outcome",
		},
		[]string{"outcome"},
	)

	// BatchesIssued counts hydration chunks sent to Azure DevOps.
	BatchesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farol_hydration_batches_total",
			Help: "Total hydration batch calls issued",
		},
	)

	// BatchSize observes the number of IDs per hydration chunk.
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "farol_hydration_batch_size",
			Help:    "Number of work item IDs per hydration batch",
			Buckets: []float64{1, 10, 25, 50, 100, 150, 200},
		},
	)

	// RateLimitRetries counts chunk retries triggered by HTTP 429.
	RateLimitRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farol_rate_limit_retries_total",
			Help: "Total hydration chunk retries after HTTP 429",
		},
	)

	// HydrationMissing counts work items that were requested but absent
	// from hydration responses (partial hydration).
	HydrationMissing = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farol_hydration_missing_total",
			Help: "Total requested work items missing from hydration responses",
		},
	)

	// APIErrors counts remote call failures by error class.
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farol_api_errors_total",
			Help: "Total Azure DevOps call failures by error class",
		},
		[]string{"class"},
	)

	// CacheHits counts consolidated payloads served from cache.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farol_cache_hits_total",
			Help: "Total consolidated payload cache hits",
		},
	)

	// CacheMisses counts consolidated payload recomputations.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farol_cache_misses_total",
			Help: "Total consolidated payload cache misses",
		},
	)

	// BreakerOpen reports whether the Azure DevOps circuit breaker is open.
	BreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farol_breaker_open",
			Help: "1 when the Azure DevOps circuit breaker is open",
		},
	)
)

// RecordSyncRun records the outcome and duration of a consolidation run.
func RecordSyncRun(duration time.Duration, err error) {
	SyncDuration.Observe(duration.Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	SyncRuns.WithLabelValues(outcome).Inc()
}
