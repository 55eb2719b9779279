package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records runs of the scheduled maintenance jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	drift    *prometheus.GaugeVec
	dlq      *prometheus.GaugeVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediconnect",
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "job_success_total",
		Help:      "Successful scheduled job runs.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "job_failure_total",
		Help:      "Failed scheduled job runs.",
	}, []string{"job"})
	drift := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediconnect",
		Name:      "stock_reconcile_mismatches",
		Help:      "Medications whose journal disagrees with the live counter in the last reconcile run.",
	}, []string{"job"})
	dlq := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediconnect",
		Name:      "outbox_dead_letters",
		Help:      "Outbox events parked in the dead-letter table, by failure reason.",
	}, []string{"reason"})
	reg.MustRegister(duration, success, failure, drift, dlq)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		drift:    drift,
		dlq:      dlq,
	}
}

func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// SetMismatches publishes the mismatch count found by a reconcile run.
func (j *JobMetrics) SetMismatches(job string, count int) {
	if j == nil || j.drift == nil {
		return
	}
	j.drift.WithLabelValues(normalizeLabel(job)).Set(float64(count))
}

// SetDeadLetters publishes the dead-letter count for one failure reason.
func (j *JobMetrics) SetDeadLetters(reason string, count int64) {
	if j == nil || j.dlq == nil {
		return
	}
	j.dlq.WithLabelValues(normalizeLabel(reason)).Set(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
