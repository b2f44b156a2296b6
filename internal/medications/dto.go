package medications

import (
	"time"

	"github.com/google/uuid"
)

// CreateInput is the payload for registering a medication.
type CreateInput struct {
	Name        string     `json:"name"`
	Description *string    `json:"description"`
	Quantity    *int       `json:"quantity"`
	MinStock    *int       `json:"min_stock"`
	Price       *float64   `json:"price"`
	Supplier    *string    `json:"supplier"`
	UnitName    string     `json:"unit_name"`
	CategoryID  int64      `json:"category_id"`
	BatchNumber *string    `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date"`
}

// UpdateInput carries the partial-update fields for the general path. Nil
// means untouched. Quantity moves here only for small corrections; larger
// swings must use QuantityInput so a reason is captured.
type UpdateInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Quantity    *int       `json:"quantity"`
	MinStock    *int       `json:"min_stock"`
	Price       *float64   `json:"price"`
	Supplier    *string    `json:"supplier"`
	BatchNumber *string    `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date"`
}

// QuantityInput is the payload for the reasoned quantity-update path.
type QuantityInput struct {
	Quantity *int   `json:"quantity"`
	Reason   string `json:"reason"`
}

// Actor identifies the user performing a mutation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Filters narrows List results. Zero values are ignored.
type Filters struct {
	Name           *string
	CategoryID     *int64
	Supplier       *string
	BelowMinStock  *bool
	ExpiringBefore *time.Time
}
