// Package metrics defines the Prometheus metrics exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scanner metrics
var (
	ScannerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_scanner_runs_total",
			Help: "Total number of discovery scans",
		},
		[]string{"status"},
	)

	ScannerCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_scanner_candidates_total",
			Help: "Total number of collection candidates discovered",
		},
		[]string{"type"},
	)

	ScannerEntriesProbed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_vault_scanner_entries_probed_total",
			Help: "Total number of directory entries examined during discovery",
		},
	)

	ScannerProbeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_vault_scanner_probe_errors_total",
			Help: "Total number of swallowed per-entry probe errors",
		},
	)
)

// Onboarding metrics
var (
	OnboardingRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_onboarding_runs_total",
			Help: "Total number of bulk onboarding runs",
		},
		[]string{"status"},
	)

	OnboardingResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_onboarding_results_total",
			Help: "Per-candidate onboarding results by outcome tag",
		},
		[]string{"outcome"},
	)

	OnboardingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_vault_onboarding_run_duration_seconds",
			Help:    "Duration of bulk onboarding runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Artifact metrics
var (
	ArtifactsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_artifacts_generated_total",
			Help: "Total number of derived artifacts generated",
		},
		[]string{"kind", "status"},
	)

	ArtifactGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_vault_artifact_generation_duration_seconds",
			Help:    "Time spent producing one derived artifact",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	ArtifactCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_artifact_cache_lookups_total",
			Help: "Artifact cache lookups by result (hit, miss, healed)",
		},
		[]string{"result"},
	)

	ArtifactsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_vault_artifacts_expired_total",
			Help: "Total number of artifacts removed by expiration sweeps",
		},
	)
)

// Cache folder metrics
var (
	FolderBytesUsed = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_vault_cache_folder_bytes_used",
			Help: "Recomputed artifact bytes per cache folder",
		},
		[]string{"folder"},
	)

	FolderFileCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_vault_cache_folder_files",
			Help: "Recomputed artifact file count per cache folder",
		},
		[]string{"folder"},
	)
)

// Queue metrics
var (
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_vault_queue_depth",
			Help: "Number of generation requests waiting in the work queue",
		},
	)

	QueuePublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_vault_queue_published_total",
			Help: "Total number of generation requests published",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_vault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_vault_db_queries_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_vault_db_query_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)
