// Package metrics provides Prometheus metrics for the KubeSage backend.
// Scrapeable at /metrics; dashboards and alerts can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kubesage"

var (
	// HTTPRequestTotal counts requests by method, path, status.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram.
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// CommandExecutionsTotal counts external CLI invocations by program and outcome.
	CommandExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_executions_total",
			Help:      "Total number of external command executions by program and status.",
		},
		[]string{"program", "status"},
	)

	// CommandDurationSeconds is external command latency.
	CommandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "External command duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"program"},
	)

	// ResultCacheHitsTotal counts analysis result fast-tier hits.
	ResultCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_hits_total",
			Help:      "Total number of analysis result cache hits.",
		},
	)

	// ResultCacheMissesTotal counts analysis result fast-tier misses.
	ResultCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_misses_total",
			Help:      "Total number of analysis result cache misses.",
		},
	)

	// ReconcilerOrphansDeletedTotal counts on-disk files removed by the orphan sweep.
	ReconcilerOrphansDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_orphans_deleted_total",
			Help:      "Total number of orphaned kubeconfig files deleted.",
		},
	)

	// ReconcilerDeactivatedTotal counts records deactivated by the liveness sweep.
	ReconcilerDeactivatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciler_deactivated_total",
			Help:      "Total number of kubeconfig records deactivated because their file vanished.",
		},
	)

	// QueueMessagesTotal counts task queue messages by type.
	QueueMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Total number of task queue messages processed by type.",
		},
		[]string{"type"},
	)
)
