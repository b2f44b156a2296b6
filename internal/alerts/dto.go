package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// CreateInput is the payload for direct alert creation.
type CreateInput struct {
	MedicationID uuid.UUID       `json:"medication_id"`
	AlertType    enums.AlertType `json:"alert_type"`
	Message      string          `json:"message"`
}

// UpdateInput carries the partial-update fields. Nil means untouched.
type UpdateInput struct {
	Message    *string `json:"message"`
	IsResolved *bool   `json:"is_resolved"`
}

// Filters narrows FindAll results. Zero values are ignored.
type Filters struct {
	MedicationID *uuid.UUID
	AlertType    *enums.AlertType
	IsResolved   *bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// Summary aggregates alert counts for the dashboard.
type Summary struct {
	Total    int64                     `json:"total"`
	Active   int64                     `json:"active"`
	Resolved int64                     `json:"resolved"`
	ByType   map[enums.AlertType]int64 `json:"by_type"`
}
