package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/payloads"
)

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// WarehouseRow is the flattened audit record streamed into BigQuery.
type WarehouseRow struct {
	EventID          string    `bigquery:"event_id"`
	EventType        string    `bigquery:"event_type"`
	MedicationID     string    `bigquery:"medication_id"`
	ActorUserID      string    `bigquery:"actor_user_id"`
	PreviousQuantity int       `bigquery:"previous_quantity"`
	NewQuantity      int       `bigquery:"new_quantity"`
	DeltaPercent     float64   `bigquery:"delta_percent"`
	Severity         string    `bigquery:"severity"`
	Reason           string    `bigquery:"reason"`
	OccurredAt       time.Time `bigquery:"occurred_at"`
}

// Warehouse converts audit pubsub messages into BigQuery rows.
type Warehouse struct {
	inserter rowInserter
	table    string
	logg     *logger.Logger
}

// NewWarehouse builds a warehouse sink writing to the given table.
func NewWarehouse(inserter rowInserter, table string, logg *logger.Logger) (*Warehouse, error) {
	if inserter == nil {
		return nil, fmt.Errorf("row inserter required")
	}
	if table == "" {
		return nil, fmt.Errorf("table name required")
	}
	return &Warehouse{inserter: inserter, table: table, logg: logg}, nil
}

// HandleMessage decodes one audit event and streams it into the warehouse.
// Unknown event types are acknowledged without a write so topic evolution
// never wedges the subscription.
func (w *Warehouse) HandleMessage(ctx context.Context, data []byte, attributes map[string]string) error {
	eventType := enums.OutboxEventType(attributes["event_type"])

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	row, ok, err := w.rowFor(eventType, envelope)
	if err != nil {
		return err
	}
	if !ok {
		if w.logg != nil {
			w.logg.Info(w.logg.WithField(ctx, "event_type", string(eventType)), "skipping non-audit event")
		}
		return nil
	}

	if err := w.inserter.InsertRows(ctx, w.table, []any{row}); err != nil {
		return fmt.Errorf("insert warehouse row: %w", err)
	}
	return nil
}

func (w *Warehouse) rowFor(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) (*WarehouseRow, bool, error) {
	row := &WarehouseRow{
		EventID:    envelope.EventID,
		EventType:  string(eventType),
		OccurredAt: envelope.OccurredAt,
	}
	if envelope.Actor != nil {
		row.ActorUserID = envelope.Actor.UserID.String()
	}

	switch eventType {
	case enums.EventStockAdjusted:
		var payload payloads.StockAdjustedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, false, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		row.MedicationID = payload.MedicationID.String()
		row.PreviousQuantity = payload.PreviousQuantity
		row.NewQuantity = payload.NewQuantity
		row.Reason = payload.Reason
		row.Severity = string(enums.AuditSeverityInfo)
		return row, true, nil

	case enums.EventStockAnomalyDetected:
		var payload payloads.StockAnomalyDetectedEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return nil, false, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		row.MedicationID = payload.MedicationID.String()
		row.PreviousQuantity = payload.PreviousQuantity
		row.NewQuantity = payload.NewQuantity
		row.DeltaPercent = payload.DeltaPercent
		row.Severity = string(payload.Severity)
		return row, true, nil

	default:
		return nil, false, nil
	}
}
