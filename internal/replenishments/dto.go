package replenishments

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// CreateInput is the payload for opening a site request.
type CreateInput struct {
	SiteID            uuid.UUID `json:"site_id"`
	MedicationID      uuid.UUID `json:"medication_id"`
	RequestedQuantity int       `json:"requested_quantity"`
	UserID            uuid.UUID `json:"user_id"`
	Notes             *string   `json:"notes"`
}

// UpdateInput carries the partial-update fields. Nil means untouched.
type UpdateInput struct {
	RequestedQuantity *int                 `json:"requested_quantity"`
	Status            *enums.RequestStatus `json:"status"`
	Notes             *string              `json:"notes"`
}

// Filters narrows FindAll results. Zero values are ignored.
type Filters struct {
	SiteID        *uuid.UUID
	MedicationID  *uuid.UUID
	Status        *enums.RequestStatus
	UserID        *uuid.UUID
	RequestedFrom *time.Time
	RequestedTo   *time.Time
}
