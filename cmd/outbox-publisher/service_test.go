package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/db"
	"github.com/angelmondragon/sourcing-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/metrics"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sourcing-backend/pkg/outbox/registry"
)

type fakePublisher struct {
	mu       sync.Mutex
	err      error
	messages []*gcppubsub.Message
	topics   []string
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func (p *fakePublisher) factory(topic string) publisher {
	return topicPublisher{parent: p, topic: topic}
}

type topicPublisher struct {
	parent *fakePublisher
	topic  string
}

func (t topicPublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.messages = append(t.parent.messages, msg)
	t.parent.topics = append(t.parent.topics, t.topic)
	return fakeResult{err: t.parent.err}
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type fixture struct {
	conn     *gorm.DB
	service  *Service
	pub      *fakePublisher
	registry *prometheus.Registry
	outbox   *outbox.Service
}

func newFixture(t *testing.T, maxAttempts int, factory func(*fakePublisher) publisherFactory) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "outbox-test", Level: zerolog.Disabled, Output: io.Discard})
	cfg := &config.Config{
		Outbox: config.OutboxConfig{BatchSize: 10, MaxAttempts: maxAttempts},
		PubSub: config.PubSubConfig{NegotiationTopic: "negotiation", NotificationTopic: "notification"},
	}
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	require.NoError(t, err)

	pub := &fakePublisher{}
	pf := pub.factory
	if factory != nil {
		pf = factory(pub)
	}
	reg := prometheus.NewRegistry()
	repo := outbox.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Config:           cfg,
		Logger:           logg,
		DB:               db.NewFromConn(conn),
		PubSub:           okPinger{},
		Repository:       repo,
		DLQ:              outbox.NewDLQRepository(conn),
		Registry:         eventRegistry,
		PublisherFactory: pf,
		Metrics:          metrics.NewOutboxMetrics(reg),
	})
	require.NoError(t, err)
	return &fixture{conn: conn, service: svc, pub: pub, registry: reg, outbox: outbox.NewService(repo, logg)}
}

func (f *fixture) emitSkipped(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := f.conn.Transaction(func(tx *gorm.DB) error {
		return f.outbox.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventRequirementSkipped,
			AggregateType: enums.AggregateRequirement,
			AggregateID:   id,
			Data: payloads.RequirementSkippedEvent{
				RequirementID:  id,
				BuyerID:        uuid.New(),
				SkippedBy:      uuid.New(),
				SkippedByRole:  enums.ActorRoleMerchant,
				PreviousStatus: enums.RequirementStatusActive,
			},
		})
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) rows(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Find(&rows).Error)
	return rows
}

func (f *fixture) dlq(t *testing.T) []models.OutboxDLQ {
	t.Helper()
	var rows []models.OutboxDLQ
	require.NoError(t, f.conn.Find(&rows).Error)
	return rows
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	f := newFixture(t, 5, nil)
	aggregateID := f.emitSkipped(t)

	processed, err := f.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	require.Len(t, f.pub.messages, 1)
	assert.Equal(t, "negotiation", f.pub.topics[0])
	msg := f.pub.messages[0]
	assert.Equal(t, string(enums.EventRequirementSkipped), msg.Attributes["event_type"])
	assert.Equal(t, aggregateID.String(), msg.Attributes["aggregate_id"])
	assert.NotEmpty(t, msg.Attributes["event_id"])

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.NotNil(t, rows[0].PublishedAt)

	processed, err = f.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)

	count, err := testutil.GatherAndCount(f.registry, "sourcing_outbox_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessBatchRecordsTransientFailure(t *testing.T) {
	f := newFixture(t, 5, nil)
	f.pub.err = errors.New("unavailable")
	f.emitSkipped(t)

	processed, err := f.service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)

	rows := f.rows(t)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].PublishedAt)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Contains(t, *rows[0].LastError, "unavailable")
	assert.Empty(t, f.dlq(t))
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, 1, nil)
	f.pub.err = errors.New("unavailable")
	f.emitSkipped(t)

	_, err := f.service.processBatch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.rows(t))
	dead := f.dlq(t)
	require.Len(t, dead, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dead[0].ErrorReason)
	assert.Equal(t, 1, dead[0].AttemptCount)
}

func TestProcessBatchDeadLettersUndecodableRows(t *testing.T) {
	f := newFixture(t, 5, nil)
	require.NoError(t, f.conn.Create(&models.OutboxEvent{
		EventType:     enums.EventRequirementSkipped,
		AggregateType: enums.AggregateQuote,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"x","data":{}}`),
	}).Error)

	_, err := f.service.processBatch(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.pub.messages)
	dead := f.dlq(t)
	require.Len(t, dead, 1)
	assert.Equal(t, enums.OutboxDLQReasonUnroutable, dead[0].ErrorReason)
	assert.False(t, dead[0].ErrorReason.Retryable())
	require.NotNil(t, dead[0].ErrorMessage)
	assert.Contains(t, *dead[0].ErrorMessage, "aggregate mismatch")
}

func TestProcessBatchDeadLettersMissingPublisher(t *testing.T) {
	f := newFixture(t, 5, func(*fakePublisher) publisherFactory {
		return func(string) publisher { return nil }
	})
	f.emitSkipped(t)

	_, err := f.service.processBatch(context.Background())
	require.NoError(t, err)

	dead := f.dlq(t)
	require.Len(t, dead, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dead[0].ErrorReason)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
