package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronMetrics records scheduled job runs and the attempts the reconcile job touched.
type CronMetrics struct {
	duration   *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	reconciled *prometheus.CounterVec
}

// NewCronMetrics registers the cron metrics on the provided registerer.
func NewCronMetrics(reg prometheus.Registerer) *CronMetrics {
	if reg == nil {
		return &CronMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions by result.",
	}, []string{"job", "result"})
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconcile_attempts_total",
		Help: "Stale payment attempts re-checked with the provider, by handling result.",
	}, []string{"result"})
	reg.MustRegister(duration, runs, reconciled)
	return &CronMetrics{
		duration:   duration,
		runs:       runs,
		reconciled: reconciled,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a job run that returned no error.
func (c *CronMetrics) IncSuccess(job string) {
	c.incRun(job, "success")
}

// IncFailure counts a job run that returned an error.
func (c *CronMetrics) IncFailure(job string) {
	c.incRun(job, "failure")
}

// IncReconciled counts one attempt processed by the reconcile job.
func (c *CronMetrics) IncReconciled(result string) {
	if c == nil || c.reconciled == nil {
		return
	}
	c.reconciled.WithLabelValues(normalizeLabel(result)).Inc()
}

func (c *CronMetrics) incRun(job, result string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), result).Inc()
}
