package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts what the relay did with each outbox row.
type OutboxMetrics struct {
	results *prometheus.CounterVec
}

// Relay results.
const (
	OutboxPublished = "published"
	OutboxRetried   = "retried"
	OutboxDeferred  = "deferred"
	OutboxDLQ       = "dlq"
)

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "outbox_events_total",
		Help:      "Outbox rows handled by the relay, by topic and result.",
	}, []string{"topic", "result"})
	reg.MustRegister(results)
	return &OutboxMetrics{results: results}
}

func (m *OutboxMetrics) Inc(topic, result string) {
	if m == nil || m.results == nil {
		return
	}
	m.results.WithLabelValues(normalizeLabel(topic), result).Inc()
}
