// Package metrics holds the Prometheus collectors exported on /metrics.
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

	// CandidatesDropped counts candidates discarded by the builder, by reason:
	// search_failed, no_hits, not_allowed, duplicate, fetch_failed, extraction_failed.
	CandidatesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unipal_candidates_dropped_total",
			Help: "Candidate university pages dropped before ranking",
		},
		[]string{"reason"},
	)

	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unipal_extractions_total",
			Help: "Language model extractions by outcome",
		},
		[]string{"status"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unipal_search_requests_total",
			Help: "Web search requests by provider and outcome",
		},
		[]string{"provider", "status"},
	)
)
