package medications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

// Repository is the storage port for medications. Finders return (nil, nil)
// when no row matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, medication *models.Medication) (*models.Medication, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Medication, error)
	FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.Medication, error)
	FindBelowMinStock(ctx context.Context) ([]models.Medication, error)
	FindExpiringBefore(ctx context.Context, cutoff string) ([]models.Medication, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed medication repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, medication *models.Medication) (*models.Medication, error) {
	if err := r.db.WithContext(ctx).Create(medication).Error; err != nil {
		return nil, err
	}
	return medication, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Medication, error) {
	var medication models.Medication
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&medication).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &medication, nil
}

func (r *repository) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.Medication, error) {
	page = pagination.Normalize(page)
	query := r.db.WithContext(ctx).Model(&models.Medication{})

	if filters.Name != nil {
		query = query.Where("name ILIKE ?", "%"+*filters.Name+"%")
	}
	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.Supplier != nil {
		query = query.Where("supplier = ?", *filters.Supplier)
	}
	if filters.BelowMinStock != nil && *filters.BelowMinStock {
		query = query.Where("quantity <= min_stock")
	}
	if filters.ExpiringBefore != nil {
		query = query.Where("expiry_date IS NOT NULL AND expiry_date < ?", *filters.ExpiringBefore)
	}

	var rows []models.Medication
	err := query.
		Order("name ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

// FindBelowMinStock returns every medication at or under its threshold,
// unpaginated, for the sweep job.
func (r *repository) FindBelowMinStock(ctx context.Context) ([]models.Medication, error) {
	var rows []models.Medication
	err := r.db.WithContext(ctx).
		Where("quantity <= min_stock").
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

// FindExpiringBefore returns medications whose expiry date falls strictly
// before the cutoff (a YYYY-MM-DD date string).
func (r *repository) FindExpiringBefore(ctx context.Context, cutoff string) ([]models.Medication, error) {
	var rows []models.Medication
	err := r.db.WithContext(ctx).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", cutoff).
		Order("expiry_date ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Medication{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Medication{}).Error
}
