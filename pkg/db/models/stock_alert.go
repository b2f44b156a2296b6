package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// StockAlert signals a stock condition for one medication.
// resolved_at is non-null exactly when is_resolved is true.
type StockAlert struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	MedicationID uuid.UUID       `gorm:"column:medication_id;type:uuid;not null;index" json:"medication_id"`
	AlertType    enums.AlertType `gorm:"column:alert_type;type:text;not null" json:"alert_type"`
	Message      string          `gorm:"type:text;not null" json:"message"`
	IsResolved   bool            `gorm:"column:is_resolved;not null;default:false" json:"is_resolved"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	ResolvedAt   *time.Time      `gorm:"column:resolved_at" json:"resolved_at"`
}
