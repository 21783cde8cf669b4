package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts publisher outcomes per event type.
type OutboxMetrics struct {
	published    *prometheus.CounterVec
	failed       *prometheus.CounterVec
	deadLettered *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "published_total",
		Help:      "Outbox events published to Pub/Sub.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_failures_total",
		Help:      "Failed publish attempts that will be retried.",
	}, []string{"event_type"})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "dead_lettered_total",
		Help:      "Outbox events moved to the dead letter table.",
	}, []string{"event_type", "reason"})
	reg.MustRegister(published, failed, deadLettered)
	return &OutboxMetrics{published: published, failed: failed, deadLettered: deadLettered}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// ConsumerMetrics counts lifecycle events handled by a Pub/Sub consumer.
type ConsumerMetrics struct {
	processed  *prometheus.CounterVec
	duplicates *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer, consumer string) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	labels := prometheus.Labels{"consumer": normalizeLabel(consumer)}
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "consumer",
		Name:        "events_processed_total",
		Help:        "Lifecycle events processed by the consumer.",
		ConstLabels: labels,
	}, []string{"event_type"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "consumer",
		Name:        "events_duplicate_total",
		Help:        "Redelivered lifecycle events skipped by the idempotency guard.",
		ConstLabels: labels,
	}, []string{"event_type"})
	reg.MustRegister(processed, duplicates)
	return &ConsumerMetrics{processed: processed, duplicates: duplicates}
}

func (m *ConsumerMetrics) IncProcessed(eventType string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *ConsumerMetrics) IncDuplicate(eventType string) {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.WithLabelValues(normalizeLabel(eventType)).Inc()
}
