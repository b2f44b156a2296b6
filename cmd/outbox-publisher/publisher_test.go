package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/config"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/payloads"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/registry"
)

const (
	testDomainTopic = "domain-events"
	testAuditTopic  = "audit-events"
)

type fakeStore struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (s *fakeStore) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return s.events, nil
}

func (s *fakeStore) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *fakeStore) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *fakeStore) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	s.terminal = append(s.terminal, id)
	return nil
}

type fakeDeadLetter struct {
	entries []models.OutboxDLQ
}

func (d *fakeDeadLetter) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	d.entries = append(d.entries, entry)
	return nil
}

type fakeRunner struct{}

func (fakeRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeTopic struct {
	err      error
	messages []*gcppubsub.Message
}

func (t *fakeTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	t.messages = append(t.messages, msg)
	return fakeResult{err: t.err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(ctx context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-msg-id", nil
}

func newTestPublisher(t *testing.T, store *fakeStore, dlq *fakeDeadLetter, topics func(topic string) topicPublisher) *Publisher {
	t.Helper()

	reg, err := registry.NewEventRegistry(config.PubSubConfig{
		DomainTopic: testDomainTopic,
		AuditTopic:  testAuditTopic,
	})
	require.NoError(t, err)

	pub, err := NewPublisher(PublisherParams{
		Config:        &config.Config{},
		Logger:        logger.New(logger.Options{ServiceName: "outbox-publisher-test"}),
		DB:            fakeRunner{},
		Repository:    store,
		DLQRepository: dlq,
		Registry:      reg,
		Topics:        topics,
	})
	require.NoError(t, err)
	return pub
}

func outboxRow(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, payload any, attempts int) models.OutboxEvent {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)

	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

func TestDrainPublishesBatchToTopics(t *testing.T) {
	alertRow := outboxRow(t, enums.EventAlertCreated, enums.AggregateStockAlert, payloads.AlertCreatedEvent{
		AlertID:      uuid.New(),
		MedicationID: uuid.New(),
		AlertType:    enums.AlertTypeLowStock,
		Message:      "Stock bas: Paracetamol (8 restants, seuil: 20)",
		Quantity:     8,
		MinStock:     20,
	}, 0)
	auditRow := outboxRow(t, enums.EventStockAdjusted, enums.AggregateMedication, payloads.StockAdjustedEvent{
		MedicationID:     uuid.New(),
		PreviousQuantity: 140,
		NewQuantity:      150,
		Reason:           "monthly inventory recount",
	}, 0)

	store := &fakeStore{events: []models.OutboxEvent{alertRow, auditRow}}
	dlq := &fakeDeadLetter{}
	topics := map[string]*fakeTopic{}
	pub := newTestPublisher(t, store, dlq, func(topic string) topicPublisher {
		if _, ok := topics[topic]; !ok {
			topics[topic] = &fakeTopic{}
		}
		return topics[topic]
	})

	published, err := pub.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.ElementsMatch(t, []uuid.UUID{alertRow.ID, auditRow.ID}, store.published)
	assert.Empty(t, store.failed)
	assert.Empty(t, dlq.entries)

	require.Len(t, topics[testDomainTopic].messages, 1)
	require.Len(t, topics[testAuditTopic].messages, 1)

	msg := topics[testDomainTopic].messages[0]
	assert.Equal(t, string(enums.EventAlertCreated), msg.Attributes["event_type"])
	assert.Equal(t, alertRow.AggregateID.String(), msg.Attributes["aggregate_id"])
	assert.NotEmpty(t, msg.Attributes["event_id"])
}

func TestTransientPublishFailureRetries(t *testing.T) {
	row := outboxRow(t, enums.EventReplenishmentRequested, enums.AggregateSiteRequest, payloads.ReplenishmentRequestedEvent{
		RequestID:         uuid.New(),
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 40,
		RequestedBy:       uuid.New(),
	}, 2)

	store := &fakeStore{events: []models.OutboxEvent{row}}
	dlq := &fakeDeadLetter{}
	topic := &fakeTopic{err: errors.New("context deadline exceeded")}
	pub := newTestPublisher(t, store, dlq, func(string) topicPublisher { return topic })

	published, err := pub.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Equal(t, []uuid.UUID{row.ID}, store.failed)
	assert.Empty(t, store.published)
	assert.Empty(t, store.terminal)
	assert.Empty(t, dlq.entries)
}

func TestUnknownEventTypeGoesToDeadLetter(t *testing.T) {
	row := outboxRow(t, enums.OutboxEventType("price_changed"), enums.AggregateMedication, payloads.StockAdjustedEvent{
		MedicationID: uuid.New(),
		NewQuantity:  10,
	}, 0)

	store := &fakeStore{events: []models.OutboxEvent{row}}
	dlq := &fakeDeadLetter{}
	topic := &fakeTopic{}
	pub := newTestPublisher(t, store, dlq, func(string) topicPublisher { return topic })

	published, err := pub.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Empty(t, topic.messages)
	assert.Equal(t, []uuid.UUID{row.ID}, store.terminal)

	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, enums.OutboxDLQReasonUnknownSchema, entry.ErrorReason)
	assert.Equal(t, row.ID, entry.EventID)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "price_changed")
}

func TestExhaustedAttemptsGoToDeadLetter(t *testing.T) {
	row := outboxRow(t, enums.EventAlertResolved, enums.AggregateStockAlert, payloads.AlertResolvedEvent{
		AlertID:      uuid.New(),
		MedicationID: uuid.New(),
		AlertType:    enums.AlertTypeExpired,
		ResolvedAt:   time.Now().UTC(),
	}, defaultMaxAttempts-1)

	store := &fakeStore{events: []models.OutboxEvent{row}}
	dlq := &fakeDeadLetter{}
	topic := &fakeTopic{err: errors.New("unavailable")}
	pub := newTestPublisher(t, store, dlq, func(string) topicPublisher { return topic })

	published, err := pub.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Empty(t, store.failed)
	assert.Equal(t, []uuid.UUID{row.ID}, store.terminal)

	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)
	assert.Equal(t, defaultMaxAttempts, entry.AttemptCount)
}

func TestMissingTopicPublisherIsNonRetryable(t *testing.T) {
	row := outboxRow(t, enums.EventStockAnomalyDetected, enums.AggregateMedication, payloads.StockAnomalyDetectedEvent{
		MedicationID:     uuid.New(),
		PreviousQuantity: 100,
		NewQuantity:      30,
		DeltaPercent:     -70,
		DetectedAt:       time.Now().UTC(),
	}, 0)

	store := &fakeStore{events: []models.OutboxEvent{row}}
	dlq := &fakeDeadLetter{}
	pub := newTestPublisher(t, store, dlq, func(string) topicPublisher { return nil })

	published, err := pub.drainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Equal(t, []uuid.UUID{row.ID}, store.terminal)

	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}
