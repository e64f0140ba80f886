package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

// NegotiationMetrics counts coordinator operations by outcome.
type NegotiationMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewNegotiationMetrics registers the negotiation metrics on reg. A nil reg yields a no-op recorder.
func NewNegotiationMetrics(reg prometheus.Registerer) *NegotiationMetrics {
	if reg == nil {
		return &NegotiationMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcing_negotiation_operations_total",
		Help: "Negotiation operations by outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sourcing_negotiation_operation_duration_seconds",
		Help:    "Latency of negotiation operations, including the transaction.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(operations, duration)
	return &NegotiationMetrics{operations: operations, duration: duration}
}

// Observe records one operation. The outcome label is "ok", the lower-cased
// domain reason of err, or the lower-cased error code when err has no reason.
func (m *NegotiationMetrics) Observe(operation string, started time.Time, err error) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), Outcome(err)).Inc()
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(time.Since(started).Seconds())
}

// Outcome maps err to a bounded label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if reason := pkgerrors.ReasonOf(err); reason != "" {
		return strings.ToLower(string(reason))
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
