package metrics

import "github.com/prometheus/client_golang/prometheus"

// StockMetrics counts ledger mutations.
type StockMetrics struct {
	reservations *prometheus.CounterVec
	releases     *prometheus.CounterVec
}

// NewStockMetrics registers the stock ledger metrics on the provided registerer.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation attempts by result.",
	}, []string{"result"})
	releases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_releases_total",
		Help: "Stock released back to a store by reason.",
	}, []string{"reason"})
	reg.MustRegister(reservations, releases)
	return &StockMetrics{reservations: reservations, releases: releases}
}

// ObserveReservation records a reservation outcome (reserved, insufficient, error).
func (m *StockMetrics) ObserveReservation(result string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *StockMetrics) ObserveRelease(reason string) {
	if m == nil || m.releases == nil {
		return
	}
	m.releases.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
