package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sourcing-backend/internal/analytics/router"
	"github.com/angelmondragon/sourcing-backend/internal/analytics/types"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/idempotency"
)

type harness struct {
	svc     *Service
	handler *stubHandler
	ledger  *stubLedger
	reg     *prometheus.Registry
}

func newHarness(t *testing.T, handlerErr error, ledger *stubLedger) *harness {
	t.Helper()
	h := &harness{handler: &stubHandler{err: handlerErr}, ledger: ledger, reg: prometheus.NewRegistry()}
	svc, err := NewService(
		&scriptedSubscription{},
		h.handler,
		ledger,
		logger.New(logger.Options{ServiceName: "analytics-test", Level: zerolog.Disabled, Output: io.Discard}),
		metrics.NewConsumerMetrics(h.reg, ConsumerName),
	)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) count(t *testing.T, o outcome) float64 {
	t.Helper()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == string(o) {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func quoteSubmittedMessage(t *testing.T) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"foo":"bar"}`),
	})
	require.NoError(t, err)
	return &gcppubsub.Message{
		ID:   "msg-1",
		Data: data,
		Attributes: map[string]string{
			"event_type":     "quote_submitted",
			"aggregate_type": "quote",
			"aggregate_id":   "abc-123",
		},
	}
}

func TestProcessOutcomes(t *testing.T) {
	cases := []struct {
		name        string
		ledger      *stubLedger
		handlerErr  error
		msg         func(t *testing.T) *gcppubsub.Message
		want        outcome
		handled     bool
		completions int
		releases    int
	}{
		{name: "written", ledger: &stubLedger{}, want: outcomeWritten, handled: true, completions: 1},
		{name: "duplicate", ledger: &stubLedger{status: idempotency.StatusDone}, want: outcomeDuplicate},
		{name: "claimed elsewhere", ledger: &stubLedger{status: idempotency.StatusInProgress}, want: outcomeBusy},
		{name: "claim error", ledger: &stubLedger{claimErr: errors.New("redis down")}, want: outcomeFailed},
		{name: "handler error", ledger: &stubLedger{}, handlerErr: errors.New("boom"), want: outcomeFailed, handled: true, releases: 1},
		{name: "unsupported", ledger: &stubLedger{}, handlerErr: router.ErrUnsupportedEventType, want: outcomeUnsupported, handled: true, completions: 1},
		{
			name:   "malformed",
			ledger: &stubLedger{},
			msg: func(*testing.T) *gcppubsub.Message {
				return &gcppubsub.Message{ID: "bad", Data: []byte("not json")}
			},
			want: outcomeMalformed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.handlerErr, tc.ledger)
			build := tc.msg
			if build == nil {
				build = quoteSubmittedMessage
			}

			got := h.svc.process(context.Background(), build(t))

			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.handled, h.handler.called)
			assert.Len(t, h.ledger.completed, tc.completions)
			assert.Len(t, h.ledger.released, tc.releases)
			assert.Equal(t, float64(1), h.count(t, tc.want))
		})
	}
}

func TestOutcomeAck(t *testing.T) {
	for _, o := range []outcome{outcomeWritten, outcomeDuplicate, outcomeMalformed, outcomeUnsupported} {
		assert.True(t, o.ack(), o)
	}
	for _, o := range []outcome{outcomeBusy, outcomeFailed} {
		assert.False(t, o.ack(), o)
	}
}

func TestProcessPassesEnvelopeToHandler(t *testing.T) {
	h := newHarness(t, nil, &stubLedger{})
	h.svc.process(context.Background(), quoteSubmittedMessage(t))

	assert.Equal(t, enums.EventQuoteSubmitted, h.handler.envelope.EventType)
	assert.Equal(t, "abc-123", h.handler.envelope.AggregateID)
	assert.Len(t, h.ledger.claimed, 1)
}

func TestRunReturnsReceiveError(t *testing.T) {
	h := newHarness(t, nil, &stubLedger{})
	h.svc.subscription = &scriptedSubscription{err: errors.New("subscription deleted")}
	assert.EqualError(t, h.svc.Run(context.Background()), "subscription deleted")
}

func TestConsumerMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConsumerMetrics(reg, ConsumerName)
	m.Observe("written", "quote_submitted")
	n, err := testutil.GatherAndCount(reg, "sourcing_consumer_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type scriptedSubscription struct {
	err error
}

func (s *scriptedSubscription) Receive(context.Context, func(context.Context, *gcppubsub.Message)) error {
	return s.err
}

type stubHandler struct {
	called   bool
	envelope types.Envelope
	err      error
}

func (h *stubHandler) Handle(_ context.Context, envelope types.Envelope) error {
	h.called = true
	h.envelope = envelope
	return h.err
}

type stubLedger struct {
	status    idempotency.Status
	claimErr  error
	claimed   []uuid.UUID
	completed []uuid.UUID
	released  []uuid.UUID
}

func (s *stubLedger) Claim(_ context.Context, _ string, eventID uuid.UUID) (idempotency.Status, error) {
	s.claimed = append(s.claimed, eventID)
	if s.claimErr != nil {
		return 0, s.claimErr
	}
	if s.status == 0 {
		return idempotency.StatusClaimed, nil
	}
	return s.status, nil
}

func (s *stubLedger) Complete(_ context.Context, _ string, eventID uuid.UUID) error {
	s.completed = append(s.completed, eventID)
	return nil
}

func (s *stubLedger) Release(_ context.Context, _ string, eventID uuid.UUID) error {
	s.released = append(s.released, eventID)
	return nil
}
