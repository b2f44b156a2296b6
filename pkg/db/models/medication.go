package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmexa/pharmastock-backend/pkg/enums"
)

// Medication is the stock record every alert, request, and mutation references.
type Medication struct {
	ID          uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string           `gorm:"type:text;not null"`
	Description *string          `gorm:"type:text"`
	Quantity    int              `gorm:"column:quantity;not null;default:0"`
	MinStock    int              `gorm:"column:min_stock;not null;default:0"`
	Price       *decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	Supplier    *string          `gorm:"column:supplier;type:text"`
	UnitName    enums.UnitName   `gorm:"column:unit_name;type:text;not null"`
	CategoryID  int64            `gorm:"column:category_id;not null"`
	BatchNumber *string          `gorm:"column:batch_number;type:text"`
	ExpiryDate  *time.Time       `gorm:"column:expiry_date;type:date"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
