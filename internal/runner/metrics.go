package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsDequeued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veridex_worker_jobs_dequeued_total",
		Help: "Jobs popped off the simulation queue.",
	})

	jobsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veridex_worker_jobs_dropped_total",
		Help: "Queue payloads dropped because they failed validation.",
	})

	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veridex_worker_jobs_completed_total",
		Help: "Jobs that finished with a successful grader run.",
	})

	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veridex_worker_jobs_failed_total",
		Help: "Jobs that finished failed, timed out included.",
	})

	callbackFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veridex_worker_callback_failures_total",
		Help: "Completion callbacks the control plane did not accept.",
	})

	sandboxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veridex_worker_sandbox_duration_seconds",
		Help:    "Wall-clock sandbox execution time per job.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
	})
)
