package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
)

func TestProcessAlreadyProcessed(t *testing.T) {
	manager := &stubManager{checkResult: true}
	handler := &stubHandler{}
	svc := newTestService(handler, manager)

	res := svc.process(context.Background(), buildAuditMessage())
	if res.nack {
		t.Fatalf("expected ack, got nack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked when already processed")
	}
	if len(manager.checked) != 1 {
		t.Fatalf("expected check once, got %d", len(manager.checked))
	}
}

func TestProcessHandlerErrorRetries(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{err: errors.New("boom")}
	svc := newTestService(handler, manager)

	res := svc.process(context.Background(), buildAuditMessage())
	if !res.nack {
		t.Fatalf("expected nack on handler error")
	}
	if !handler.called {
		t.Fatal("handler should be invoked")
	}
	if len(manager.deleted) != 1 {
		t.Fatalf("expected idempotency delete on failure")
	}
}

func TestProcessInvalidEnvelopeAcks(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestService(handler, manager)

	msg := &gcppubsub.Message{ID: "msg-1", Data: []byte("invalid json")}
	res := svc.process(context.Background(), msg)
	if res.nack {
		t.Fatalf("invalid envelope should ack")
	}
	if handler.called {
		t.Fatal("handler should not be invoked")
	}
	if len(manager.checked) != 0 {
		t.Fatalf("idempotency manager should not be touched")
	}
}

func TestProcessEventIDFromAttribute(t *testing.T) {
	manager := &stubManager{}
	handler := &stubHandler{}
	svc := newTestService(handler, manager)

	id := uuid.New()
	payload := outbox.PayloadEnvelope{OccurredAt: time.Now().UTC(), Data: json.RawMessage(`{}`)}
	data, _ := json.Marshal(payload)
	msg := &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: map[string]string{"event_id": id.String(), "event_type": "stock_adjusted"},
	}

	res := svc.process(context.Background(), msg)
	if res.nack {
		t.Fatalf("expected ack")
	}
	if len(manager.checked) != 1 || manager.checked[0] != id {
		t.Fatalf("expected idempotency check for %s, got %v", id, manager.checked)
	}
	if !handler.called {
		t.Fatal("handler should be invoked")
	}
}

func buildAuditMessage() *gcppubsub.Message {
	payload := outbox.PayloadEnvelope{
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{"medication_id":"m-1"}`),
	}
	data, _ := json.Marshal(payload)
	return &gcppubsub.Message{
		ID:         "msg-1",
		Data:       data,
		Attributes: map[string]string{"event_type": "stock_adjusted"},
	}
}

func newTestService(handler Handler, manager *stubManager) *Service {
	return &Service{
		handler: handler,
		manager: manager,
		logg:    logger.New(logger.Options{ServiceName: "audit-worker-test"}),
	}
}

type stubHandler struct {
	called bool
	attrs  map[string]string
	err    error
}

func (h *stubHandler) HandleMessage(ctx context.Context, data []byte, attributes map[string]string) error {
	h.called = true
	h.attrs = attributes
	return h.err
}

type stubManager struct {
	checkResult bool
	checkErr    error
	checked     []uuid.UUID
	deleted     []uuid.UUID
}

func (s *stubManager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	s.checked = append(s.checked, eventID)
	return s.checkResult, s.checkErr
}

func (s *stubManager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	s.deleted = append(s.deleted, eventID)
	return nil
}
