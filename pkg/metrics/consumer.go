package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConsumerMetrics counts Pub/Sub deliveries by how they were settled.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer, consumer string) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sourcing_consumer_messages_total",
		Help:        "Pub/Sub messages handled, by outcome and event type.",
		ConstLabels: prometheus.Labels{"consumer": consumer},
	}, []string{"outcome", "event_type"})
	reg.MustRegister(messages)
	return &ConsumerMetrics{messages: messages}
}

func (m *ConsumerMetrics) Observe(outcome, eventType string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(outcome), normalizeLabel(eventType)).Inc()
}
