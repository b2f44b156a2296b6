package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// AlertCreatedEvent signals a new stock alert raised for a medication.
type AlertCreatedEvent struct {
	AlertID      uuid.UUID       `json:"alert_id"`
	MedicationID uuid.UUID       `json:"medication_id"`
	AlertType    enums.AlertType `json:"alert_type"`
	Message      string          `json:"message"`
	Quantity     int             `json:"quantity"`
	MinStock     int             `json:"min_stock"`
}

// AlertResolvedEvent is emitted when an active alert is marked resolved.
type AlertResolvedEvent struct {
	AlertID      uuid.UUID       `json:"alert_id"`
	MedicationID uuid.UUID       `json:"medication_id"`
	AlertType    enums.AlertType `json:"alert_type"`
	ResolvedAt   time.Time       `json:"resolved_at"`
}

// ReplenishmentRequestedEvent signals a new site request awaiting decision.
type ReplenishmentRequestedEvent struct {
	RequestID         uuid.UUID `json:"request_id"`
	SiteID            uuid.UUID `json:"site_id"`
	MedicationID      uuid.UUID `json:"medication_id"`
	RequestedQuantity int       `json:"requested_quantity"`
	RequestedBy       uuid.UUID `json:"requested_by"`
}

// ReplenishmentDecidedEvent is emitted when a pending request is approved or rejected.
type ReplenishmentDecidedEvent struct {
	RequestID    uuid.UUID           `json:"request_id"`
	SiteID       uuid.UUID           `json:"site_id"`
	MedicationID uuid.UUID           `json:"medication_id"`
	Status       enums.RequestStatus `json:"status"`
	DecidedBy    uuid.UUID           `json:"decided_by"`
	DecidedAt    time.Time           `json:"decided_at"`
	Notes        string              `json:"notes,omitempty"`
}

// StockAdjustedEvent surfaces a committed quantity change on a medication.
type StockAdjustedEvent struct {
	MedicationID     uuid.UUID `json:"medication_id"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Reason           string    `json:"reason,omitempty"`
}

// StockAnomalyDetectedEvent reports an unusual stock variation for review.
type StockAnomalyDetectedEvent struct {
	MedicationID     uuid.UUID           `json:"medication_id"`
	PreviousQuantity int                 `json:"previous_quantity"`
	NewQuantity      int                 `json:"new_quantity"`
	DeltaPercent     float64             `json:"delta_percent"`
	Severity         enums.AuditSeverity `json:"severity"`
	DetectedAt       time.Time           `json:"detected_at"`
}
