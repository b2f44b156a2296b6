package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// SiteRequest is an inter-site replenishment request moving through the
// approval workflow. response_date is non-null exactly when the status has
// left PENDING; rows in a terminal status may no longer be deleted.
type SiteRequest struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SiteID            uuid.UUID           `gorm:"column:site_id;type:uuid;not null;index" json:"site_id"`
	MedicationID      uuid.UUID           `gorm:"column:medication_id;type:uuid;not null;index" json:"medication_id"`
	RequestedQuantity int                 `gorm:"column:requested_quantity;not null" json:"requested_quantity"`
	Status            enums.RequestStatus `gorm:"column:status;type:text;not null;default:'PENDING'" json:"status"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	RequestDate       time.Time           `gorm:"column:request_date;not null" json:"request_date"`
	ResponseDate      *time.Time          `gorm:"column:response_date" json:"response_date"`
	ApprovedBy        *uuid.UUID          `gorm:"column:approved_by;type:uuid" json:"approved_by"`
	Notes             *string             `gorm:"column:notes;type:text" json:"notes"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
