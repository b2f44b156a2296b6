package replenishments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

// Repository is the storage port for site requests. Finders return (nil, nil)
// when no row matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.SiteRequest) (*models.SiteRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SiteRequest, error)
	FindBySite(ctx context.Context, siteID uuid.UUID, page pagination.Params) ([]models.SiteRequest, error)
	FindPending(ctx context.Context, page pagination.Params) ([]models.SiteRequest, error)
	FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.SiteRequest, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed site request repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.SiteRequest) (*models.SiteRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SiteRequest, error) {
	var request models.SiteRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindBySite(ctx context.Context, siteID uuid.UUID, page pagination.Params) ([]models.SiteRequest, error) {
	page = pagination.Normalize(page)
	var rows []models.SiteRequest
	err := r.db.WithContext(ctx).
		Where("site_id = ?", siteID).
		Order("request_date DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

// FindPending returns the approval queue, oldest request first.
func (r *repository) FindPending(ctx context.Context, page pagination.Params) ([]models.SiteRequest, error) {
	page = pagination.Normalize(page)
	var rows []models.SiteRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.RequestStatusPending).
		Order("request_date ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.SiteRequest, error) {
	page = pagination.Normalize(page)
	query := r.db.WithContext(ctx).Model(&models.SiteRequest{})

	if filters.SiteID != nil {
		query = query.Where("site_id = ?", *filters.SiteID)
	}
	if filters.MedicationID != nil {
		query = query.Where("medication_id = ?", *filters.MedicationID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.RequestedFrom != nil {
		query = query.Where("request_date >= ?", *filters.RequestedFrom)
	}
	if filters.RequestedTo != nil {
		query = query.Where("request_date <= ?", *filters.RequestedTo)
	}

	var rows []models.SiteRequest
	err := query.
		Order("request_date DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SiteRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.SiteRequest{}).Error
}
