package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// SupplierMatches counts match outcomes by match type of the best
	// candidate, or "none" when no supplier reached the threshold.
	SupplierMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplier_matches_total",
			Help: "Supplier match outcomes by match type",
		},
		[]string{"match_type"},
	)

	SupplierMatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supplier_match_score",
			Help:    "Similarity score of the best supplier candidate",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	FieldsExtracted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "invoice_fields_extracted",
			Help:    "Number of fields extracted per document",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)

	EnrichmentCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_cache_lookups_total",
			Help: "Enrichment cache lookups by result",
		},
		[]string{"result"},
	)

	PendingUploads = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "extraction_pending_uploads",
			Help: "Uploaded documents still waiting for an extraction result",
		},
	)

	ReviewNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supplier_review_notifications_total",
			Help: "Supplier review notifications by channel and status",
		},
		[]string{"channel", "status"},
	)
)
