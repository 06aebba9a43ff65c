package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher throughput.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	parked    *prometheus.CounterVec
	batch     *prometheus.HistogramVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events delivered to the sink.",
	}, []string{"sink"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Outbox publish attempts that failed.",
	}, []string{"sink"})
	parked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_parked_total",
		Help: "Outbox events given up on and left for manual replay.",
	}, []string{"sink", "reason"})
	batch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of one outbox publish batch.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
	reg.MustRegister(published, failed, parked, batch)
	return &OutboxMetrics{published: published, failed: failed, parked: parked, batch: batch}
}

func (m *OutboxMetrics) IncPublished(sink string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *OutboxMetrics) IncFailed(sink string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *OutboxMetrics) IncParked(sink, reason string) {
	if m == nil || m.parked == nil {
		return
	}
	m.parked.WithLabelValues(normalizeLabel(sink), normalizeLabel(reason)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(sink string, took time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.WithLabelValues(normalizeLabel(sink)).Observe(took.Seconds())
}
