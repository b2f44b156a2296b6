package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// AuditEvent is the append-only record written after every guarded
// medication mutation and every anomaly classification.
type AuditEvent struct {
	ID               uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MedicationID     uuid.UUID           `gorm:"column:medication_id;type:uuid;not null;index" json:"medication_id"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Action           enums.AuditAction   `gorm:"column:action;type:text;not null" json:"action"`
	Severity         enums.AuditSeverity `gorm:"column:severity;type:text;not null;default:'info'" json:"severity"`
	Reason           *string             `gorm:"column:reason;type:text" json:"reason"`
	ChangedFields    pq.StringArray      `gorm:"column:changed_fields;type:text[]" json:"changed_fields"`
	PreviousQuantity *int                `gorm:"column:previous_quantity" json:"previous_quantity"`
	NewQuantity      *int                `gorm:"column:new_quantity" json:"new_quantity"`
	DeltaPercent     *float64            `gorm:"column:delta_percent" json:"delta_percent"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
