package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
)

const auditConsumerName = "audit-warehouse"

// Handler processes one audit message payload.
type Handler interface {
	HandleMessage(ctx context.Context, data []byte, attributes map[string]string) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Service consumes audit events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	manager      idempotencyChecker
	logg         *logger.Logger
}

// NewService creates a new audit worker service.
func NewService(subscription *gcppubsub.Subscriber, handler Handler, manager idempotencyChecker, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("audit subscription is required")
	}
	if handler == nil {
		return nil, errors.New("audit handler is required")
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	return &Service{
		subscription: subscription,
		handler:      handler,
		manager:      manager,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming audit messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{
		"message_id": msg.ID,
	}
	logCtx := s.logg.WithFields(ctx, fields)

	eventID, err := s.eventID(msg)
	if err != nil {
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "invalid audit message, dropping")
		return processResult{}
	}
	fields["event_id"] = eventID.String()
	fields["event_type"] = strings.TrimSpace(msg.Attributes["event_type"])
	logCtx = s.logg.WithFields(ctx, fields)

	already, err := s.manager.CheckAndMarkProcessed(logCtx, auditConsumerName, eventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	if err := s.handler.HandleMessage(logCtx, msg.Data, msg.Attributes); err != nil {
		s.logg.Error(logCtx, "handler error", err)
		_ = s.manager.Delete(logCtx, auditConsumerName, eventID)
		return processResult{nack: true}
	}

	s.logg.Info(logCtx, "audit event handled")
	return processResult{}
}

// eventID prefers the envelope body and falls back to the message attribute.
func (s *Service) eventID(msg *gcppubsub.Message) (uuid.UUID, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &stored); err != nil {
		return uuid.Nil, err
	}

	raw := strings.TrimSpace(stored.EventID)
	if raw == "" {
		raw = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if raw == "" {
		return uuid.Nil, errors.New("event_id missing")
	}
	return uuid.Parse(raw)
}
