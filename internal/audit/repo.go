package audit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

// Repository persists and reads append-only audit events.
type Repository interface {
	Insert(tx *gorm.DB, event models.AuditEvent) error
	ListByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.AuditEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed audit repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(tx *gorm.DB, event models.AuditEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

func (r *repository) ListByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.AuditEvent, error) {
	page = pagination.Normalize(page)
	var rows []models.AuditEvent
	err := r.db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}
