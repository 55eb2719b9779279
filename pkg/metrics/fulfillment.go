package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/mediconnect-backend/pkg/errors"
)

const outcomeOK = "ok"

// FulfillmentMetrics instruments the fulfillment engine: operation latency and
// outcome, committed transitions and ledger effects.
type FulfillmentMetrics struct {
	duration    *prometheus.HistogramVec
	outcomes    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	ledger      *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the collectors on reg. A nil registerer
// yields a no-op collector.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediconnect",
		Name:      "fulfillment_operation_duration_seconds",
		Help:      "Duration of fulfillment operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "fulfillment_operations_total",
		Help:      "Fulfillment operations by outcome code.",
	}, []string{"operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "request_transitions_total",
		Help:      "Committed request status transitions.",
	}, []string{"from", "to"})
	ledger := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "ledger_effects_total",
		Help:      "Committed reservation effects.",
	}, []string{"effect"})
	reg.MustRegister(duration, outcomes, transitions, ledger)
	return &FulfillmentMetrics{
		duration:    duration,
		outcomes:    outcomes,
		transitions: transitions,
		ledger:      ledger,
	}
}

// ObserveOperation records latency and the outcome code of one call.
func (m *FulfillmentMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	operation = normalizeLabel(operation)
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
	m.outcomes.WithLabelValues(operation, Outcome(err)).Inc()
}

// IncTransition counts a committed transition.
func (m *FulfillmentMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncLedgerEffect counts a committed reserve, release or consume.
func (m *FulfillmentMetrics) IncLedgerEffect(effect string) {
	if m == nil || m.ledger == nil {
		return
	}
	m.ledger.WithLabelValues(normalizeLabel(effect)).Inc()
}

// Outcome maps an operation result to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return string(pkgerrors.CodeOf(err))
}
