package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobRunsTotal, jobDuration, workerQueueRejectedTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_job_runs_total",
			Help: "Background job runs by job and result (ok|error).",
		},
		[]string{"job", "result"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "background_job_duration_seconds",
			Help:    "Background job run time.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	workerQueueRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_queue_rejected_total",
			Help: "Tasks dropped because the worker queue was full.",
		},
	)
)

func ObserveJob(job string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	jobRunsTotal.WithLabelValues(norm(job), result).Inc()
	jobDuration.WithLabelValues(norm(job)).Observe(d.Seconds())
}

func IncWorkerQueueRejected() {
	workerQueueRejectedTotal.Inc()
}
