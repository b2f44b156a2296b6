package alerts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

// Repository is the storage port for stock alerts. Finders return (nil, nil)
// when no row matches; the service layer decides how absence surfaces.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.StockAlert) (*models.StockAlert, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error)
	FindByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.StockAlert, error)
	FindActive(ctx context.Context) ([]models.StockAlert, error)
	FindActiveByMedicationAndType(ctx context.Context, medicationID uuid.UUID, alertType enums.AlertType) (*models.StockAlert, error)
	FindByType(ctx context.Context, alertType enums.AlertType, page pagination.Params) ([]models.StockAlert, error)
	FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.StockAlert, error)
	Summary(ctx context.Context) (*Summary, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed alert repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, alert *models.StockAlert) (*models.StockAlert, error) {
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error) {
	var alert models.StockAlert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

func (r *repository) FindByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.StockAlert, error) {
	page = pagination.Normalize(page)
	var rows []models.StockAlert
	err := r.db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindActive(ctx context.Context) ([]models.StockAlert, error) {
	var rows []models.StockAlert
	err := r.db.WithContext(ctx).
		Where("is_resolved = ?", false).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindActiveByMedicationAndType(ctx context.Context, medicationID uuid.UUID, alertType enums.AlertType) (*models.StockAlert, error) {
	var alert models.StockAlert
	err := r.db.WithContext(ctx).
		Where("medication_id = ? AND alert_type = ? AND is_resolved = ?", medicationID, alertType, false).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

func (r *repository) FindByType(ctx context.Context, alertType enums.AlertType, page pagination.Params) ([]models.StockAlert, error) {
	page = pagination.Normalize(page)
	var rows []models.StockAlert
	err := r.db.WithContext(ctx).
		Where("alert_type = ?", alertType).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.StockAlert, error) {
	page = pagination.Normalize(page)
	query := r.db.WithContext(ctx).Model(&models.StockAlert{})

	if filters.MedicationID != nil {
		query = query.Where("medication_id = ?", *filters.MedicationID)
	}
	if filters.AlertType != nil {
		query = query.Where("alert_type = ?", *filters.AlertType)
	}
	if filters.IsResolved != nil {
		query = query.Where("is_resolved = ?", *filters.IsResolved)
	}
	if filters.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filters.CreatedFrom)
	}
	if filters.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filters.CreatedTo)
	}

	var rows []models.StockAlert
	err := query.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Summary(ctx context.Context) (*Summary, error) {
	summary := &Summary{ByType: map[enums.AlertType]int64{}}

	if err := r.db.WithContext(ctx).Model(&models.StockAlert{}).Count(&summary.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.StockAlert{}).
		Where("is_resolved = ?", false).
		Count(&summary.Active).Error; err != nil {
		return nil, err
	}
	summary.Resolved = summary.Total - summary.Active

	type typeCount struct {
		AlertType enums.AlertType
		Count     int64
	}
	var counts []typeCount
	if err := r.db.WithContext(ctx).Model(&models.StockAlert{}).
		Select("alert_type, count(*) as count").
		Group("alert_type").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, alertType := range enums.AlertTypes() {
		summary.ByType[alertType] = 0
	}
	for _, row := range counts {
		summary.ByType[row.AlertType] = row.Count
	}
	return summary, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.StockAlert{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.StockAlert{}).Error
}
