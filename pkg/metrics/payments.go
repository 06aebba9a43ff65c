package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records gateway notification handling.
type PaymentMetrics struct {
	acks     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewPaymentMetrics registers the payment notification metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	acks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_ipn_acks_total",
		Help: "Gateway notifications acknowledged, by response code.",
	}, []string{"rsp_code"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_ipn_duration_seconds",
		Help:    "Time spent reconciling a gateway notification.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(acks, duration)
	return &PaymentMetrics{acks: acks, duration: duration}
}

func (m *PaymentMetrics) ObserveAck(rspCode string, took time.Duration) {
	if m == nil || m.acks == nil {
		return
	}
	m.acks.WithLabelValues(normalizeLabel(rspCode)).Inc()
	m.duration.Observe(took.Seconds())
}
