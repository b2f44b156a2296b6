package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/config"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	maxIdleBackoff        = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Publisher(name string) *gcppubsub.Publisher
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// PublisherParams carries the dependencies for NewPublisher. Topics may be
// left nil to publish through the Pub/Sub client.
type PublisherParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            txRunner
	PubSub        pubSubClient
	Repository    eventStore
	DLQRepository deadLetterStore
	Registry      eventResolver
	Topics        func(topic string) topicPublisher
}

// Publisher drains the outbox table and relays each event to its Pub/Sub
// topic. Rows that cannot ever publish are parked in the dead letter table.
type Publisher struct {
	logg       *logger.Logger
	db         txRunner
	store      eventStore
	deadLetter deadLetterStore
	resolver   eventResolver
	topics     func(topic string) topicPublisher

	batchSize      int
	pollInterval   time.Duration
	maxAttempts    int
	publishTimeout time.Duration
}

func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("db client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	topics := params.Topics
	if topics == nil {
		if params.PubSub == nil {
			return nil, errors.New("pubsub client is required")
		}
		client := params.PubSub
		topics = func(topic string) topicPublisher {
			pub := client.Publisher(topic)
			if pub == nil {
				return nil
			}
			return gcpTopic{publisher: pub}
		}
	}

	p := &Publisher{
		logg:           params.Logger,
		db:             params.DB,
		store:          params.Repository,
		deadLetter:     params.DLQRepository,
		resolver:       params.Registry,
		topics:         topics,
		batchSize:      params.Config.Outbox.BatchSize,
		pollInterval:   time.Duration(params.Config.Outbox.PollIntervalMS) * time.Millisecond,
		maxAttempts:    params.Config.Outbox.MaxAttempts,
		publishTimeout: defaultPublishTimeout,
	}
	if p.batchSize <= 0 {
		p.batchSize = defaultBatchSize
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	return p, nil
}

// Run polls until the context is cancelled, backing off while the table
// stays empty or the database misbehaves.
func (p *Publisher) Run(ctx context.Context) error {
	idle := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		published, err := p.drainOnce(ctx)
		switch {
		case err != nil:
			idle++
			p.logg.Error(ctx, "outbox drain failed", err)
		case published == 0:
			idle++
		default:
			idle = 0
		}

		if err := p.sleep(ctx, p.delay(idle)); err != nil {
			return err
		}
	}
}

// drainOnce processes one locked batch inside a single transaction and
// reports how many events were published.
func (p *Publisher) drainOnce(ctx context.Context) (int, error) {
	published := 0
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := p.store.FetchUnpublishedForPublish(tx, p.batchSize, p.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			ok, err := p.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

// dispatch resolves and publishes a single row, deciding between retry,
// success, and the dead letter table.
func (p *Publisher) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (bool, error) {
	resolved, err := p.resolver.Resolve(event)
	if err != nil {
		var nonRetryable registry.NonRetryableError
		if errors.As(err, &nonRetryable) {
			return false, p.retire(ctx, tx, event, enums.OutboxDLQReasonUnknownSchema, err)
		}
		return false, p.store.MarkFailedTx(tx, event.ID, err)
	}

	if err := p.publish(ctx, resolved, event); err != nil {
		var nonRetryable registry.NonRetryableError
		if errors.As(err, &nonRetryable) {
			return false, p.retire(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
		}
		if event.AttemptCount+1 >= p.maxAttempts {
			return false, p.retire(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, err)
		}
		p.logg.Warn(p.eventCtx(ctx, event), "outbox publish failed, will retry")
		return false, p.store.MarkFailedTx(tx, event.ID, err)
	}

	return true, p.store.MarkPublishedTx(tx, event.ID)
}

func (p *Publisher) publish(ctx context.Context, resolved *registry.ResolvedEvent, event models.OutboxEvent) error {
	topic := p.topics(resolved.Descriptor.Topic)
	if topic == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", resolved.Descriptor.Topic))
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	result := topic.Publish(pubCtx, &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
		},
	})
	if _, err := result.Get(pubCtx); err != nil {
		return err
	}
	return nil
}

// retire moves a row to the dead letter table and pins its attempt counter
// so the fetch query stops picking it up.
func (p *Publisher) retire(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount + 1,
	}
	if err := p.deadLetter.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("park event %s: %w", event.ID, err)
	}
	if err := p.store.MarkTerminalTx(tx, event.ID, cause, p.maxAttempts); err != nil {
		return fmt.Errorf("mark event %s terminal: %w", event.ID, err)
	}
	p.logg.Warn(p.eventCtx(ctx, event), fmt.Sprintf("outbox event parked in dead letter queue: %s", reason))
	return nil
}

func (p *Publisher) eventCtx(ctx context.Context, event models.OutboxEvent) context.Context {
	return p.logg.WithFields(ctx, map[string]any{
		"eventId":   event.ID.String(),
		"eventType": string(event.EventType),
	})
}

// delay grows the poll interval exponentially across idle iterations, with
// jitter so concurrent publishers spread their polls.
func (p *Publisher) delay(idle int) time.Duration {
	d := p.pollInterval
	for i := 1; i < idle && d < maxIdleBackoff; i++ {
		d *= 2
	}
	if d > maxIdleBackoff {
		d = maxIdleBackoff
	}
	return d + time.Duration(rand.Int63n(int64(jitterWindow)))
}

func (p *Publisher) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type gcpTopic struct {
	publisher *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.publisher.Publish(ctx, msg)
}
