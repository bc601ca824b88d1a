package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher's progress through the outbox table.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	exhausted prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_published_total",
		Help:      "Outbox events delivered to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_publish_failures_total",
		Help:      "Failed outbox publish attempts.",
	}, []string{"event_type"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_attempts_exhausted_total",
		Help:      "Outbox events that hit the max attempt count.",
	})
	reg.MustRegister(published, failed, exhausted)
	return &OutboxMetrics{published: published, failed: failed, exhausted: exhausted}
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailed counts a failed attempt; exhausted marks the final one.
func (o *OutboxMetrics) IncFailed(eventType string, exhausted bool) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
	if exhausted {
		o.exhausted.Inc()
	}
}
