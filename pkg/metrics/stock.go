package metrics

import "github.com/prometheus/client_golang/prometheus"

// StockMetrics tracks stock levels as observed from inventory events.
type StockMetrics struct {
	level    *prometheus.GaugeVec
	lowStock *prometheus.CounterVec
}

// NewStockMetrics registers the collectors on reg. A nil registerer yields a
// no-op collector.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	level := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mediconnect",
		Name:      "medication_stock_units",
		Help:      "Last observed stock per medication.",
	}, []string{"medication_id"})
	lowStock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediconnect",
		Name:      "low_stock_alerts_total",
		Help:      "Inventory events that left a medication at or below the low-stock threshold.",
	}, []string{"medication_id"})
	reg.MustRegister(level, lowStock)
	return &StockMetrics{level: level, lowStock: lowStock}
}

func (m *StockMetrics) SetLevel(medicationID string, units int) {
	if m == nil || m.level == nil {
		return
	}
	m.level.WithLabelValues(medicationID).Set(float64(units))
}

func (m *StockMetrics) IncLowStock(medicationID string) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.WithLabelValues(medicationID).Inc()
}
