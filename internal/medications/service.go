package medications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/internal/alerts"
	"github.com/pharmexa/pharmastock-backend/internal/audit"
	"github.com/pharmexa/pharmastock-backend/internal/guard"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

// highStockMultiplier flags stock piling up well past the configured
// threshold. Only meaningful when min_stock is set.
const highStockMultiplier = 10

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// alertNotifier is the slice of the alert engine the stock paths react
// through. Factory calls tolerate duplicates, so reacting twice is harmless.
type alertNotifier interface {
	CreateLowStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor alerts.Actor) (*models.StockAlert, error)
	CreateCritical(ctx context.Context, medicationID uuid.UUID, currentQuantity int, actor alerts.Actor) (*models.StockAlert, error)
	CreateHighStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor alerts.Actor) (*models.StockAlert, error)
}

// Service exposes medication CRUD with guarded mutations.
type Service interface {
	Create(ctx context.Context, input CreateInput, actor Actor) (*models.Medication, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Medication, error)
	List(ctx context.Context, page pagination.Params, filters Filters) ([]models.Medication, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.Medication, error)
	UpdateQuantity(ctx context.Context, id uuid.UUID, input QuantityInput, actor Actor) (*models.Medication, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo     Repository
	tx       txRunner
	guard    *guard.Guard
	recorder audit.Recorder
	alerts   alertNotifier
	logg     *logger.Logger
}

// NewService builds a medication service with the required dependencies.
func NewService(repo Repository, tx txRunner, g *guard.Guard, recorder audit.Recorder, notifier alertNotifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("medications repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if g == nil {
		return nil, fmt.Errorf("mutation guard required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("alert notifier required")
	}
	return &service{repo: repo, tx: tx, guard: g, recorder: recorder, alerts: notifier, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput, actor Actor) (*models.Medication, error) {
	err := s.guard.ValidateCreation(guard.CreationInput{
		Name:       strings.TrimSpace(input.Name),
		Quantity:   input.Quantity,
		MinStock:   input.MinStock,
		CategoryID: input.CategoryID,
		UnitName:   input.UnitName,
		Price:      input.Price,
		Supplier:   input.Supplier,
	})
	if err != nil {
		return nil, err
	}

	medication := &models.Medication{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Quantity:    *input.Quantity,
		MinStock:    *input.MinStock,
		Supplier:    input.Supplier,
		UnitName:    enums.UnitName(input.UnitName),
		CategoryID:  input.CategoryID,
		BatchNumber: input.BatchNumber,
		ExpiryDate:  input.ExpiryDate,
	}
	if input.Price != nil {
		price := decimal.NewFromFloat(*input.Price)
		medication.Price = &price
	}

	created, err := s.repo.Create(ctx, medication)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert medication")
	}

	s.reactToThresholds(ctx, created, actor)
	return created, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Medication, error) {
	medication, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load medication")
	}
	if medication == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "medication not found")
	}
	return medication, nil
}

func (s *service) List(ctx context.Context, page pagination.Params, filters Filters) ([]models.Medication, error) {
	rows, err := s.repo.FindAll(ctx, page, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list medications")
	}
	return rows, nil
}

// Update runs the general-update rule set, applies the change, and records a
// general audit event with the touched fields.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.Medication, error) {
	medication, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := medication.Quantity
	guardInput := guard.GeneralUpdateInput{
		Name:     input.Name,
		Quantity: input.Quantity,
		MinStock: input.MinStock,
		Price:    input.Price,
		Supplier: input.Supplier,
	}
	if input.Quantity != nil {
		guardInput.PreviousQuantity = &previous
	}
	if err := s.guard.ValidateGeneralUpdate(guardInput); err != nil {
		return nil, err
	}
	if input.MinStock != nil && input.Quantity == nil && *input.MinStock > medication.Quantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"min_stock": "cannot exceed quantity"})
	}

	updates := map[string]any{}
	var changed []string
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
		changed = append(changed, "name")
	}
	if input.Description != nil {
		updates["description"] = *input.Description
		changed = append(changed, "description")
	}
	if input.Quantity != nil {
		updates["quantity"] = *input.Quantity
		changed = append(changed, "quantity")
	}
	if input.MinStock != nil {
		updates["min_stock"] = *input.MinStock
		changed = append(changed, "min_stock")
	}
	if input.Price != nil {
		updates["price"] = decimal.NewFromFloat(*input.Price)
		changed = append(changed, "price")
	}
	if input.Supplier != nil {
		updates["supplier"] = *input.Supplier
		changed = append(changed, "supplier")
	}
	if input.BatchNumber != nil {
		updates["batch_number"] = *input.BatchNumber
		changed = append(changed, "batch_number")
	}
	if input.ExpiryDate != nil {
		updates["expiry_date"] = *input.ExpiryDate
		changed = append(changed, "expiry_date")
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update medication")
		}
		return s.recorder.RecordGeneralChange(ctx, tx, audit.GeneralChange{
			MedicationID:  id,
			UserID:        actor.UserID,
			ChangedFields: changed,
		})
	})
	if err != nil {
		return nil, err
	}

	applyUpdates(medication, input)

	if input.Quantity != nil || input.MinStock != nil {
		s.reactToThresholds(ctx, medication, actor)
	}
	return medication, nil
}

// UpdateQuantity is the reasoned stock-movement path. The change and its
// audit trail commit in one transaction; anomaly classification never blocks
// the write.
func (s *service) UpdateQuantity(ctx context.Context, id uuid.UUID, input QuantityInput, actor Actor) (*models.Medication, error) {
	medication, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := medication.Quantity
	if err := s.guard.ValidateQuantityUpdate(guard.QuantityUpdateInput{
		Quantity:         input.Quantity,
		Reason:           input.Reason,
		PreviousQuantity: &previous,
	}); err != nil {
		return nil, err
	}

	newQuantity := *input.Quantity
	reason := strings.TrimSpace(input.Reason)
	anomaly := s.guard.ClassifyQuantityChange(previous, newQuantity)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, id, map[string]any{"quantity": newQuantity}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update medication quantity")
		}
		return s.recorder.RecordQuantityChange(ctx, tx, audit.QuantityChange{
			MedicationID:     id,
			UserID:           actor.UserID,
			Reason:           reason,
			PreviousQuantity: previous,
			NewQuantity:      newQuantity,
			Anomaly:          anomaly,
		})
	})
	if err != nil {
		return nil, err
	}

	medication.Quantity = newQuantity
	s.reactToThresholds(ctx, medication, actor)
	return medication, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete medication")
	}
	return nil
}

// reactToThresholds raises the matching stock alert after a committed write.
// Failures here are logged, not surfaced: the mutation already succeeded.
func (s *service) reactToThresholds(ctx context.Context, medication *models.Medication, actor Actor) {
	alertActor := alerts.Actor{UserID: actor.UserID, Role: actor.Role}

	var err error
	switch {
	case medication.Quantity == 0:
		_, err = s.alerts.CreateCritical(ctx, medication.ID, medication.Quantity, alertActor)
	case medication.Quantity <= medication.MinStock:
		_, err = s.alerts.CreateLowStock(ctx, medication.ID, medication.Quantity, medication.MinStock, alertActor)
	case medication.MinStock > 0 && medication.Quantity >= medication.MinStock*highStockMultiplier:
		_, err = s.alerts.CreateHighStock(ctx, medication.ID, medication.Quantity, medication.MinStock, alertActor)
	}
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithMedicationID(ctx, medication.ID.String())
		s.logg.Error(logCtx, "raise stock alert", err)
	}
}

func applyUpdates(medication *models.Medication, input UpdateInput) {
	if input.Name != nil {
		medication.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		medication.Description = input.Description
	}
	if input.Quantity != nil {
		medication.Quantity = *input.Quantity
	}
	if input.MinStock != nil {
		medication.MinStock = *input.MinStock
	}
	if input.Price != nil {
		price := decimal.NewFromFloat(*input.Price)
		medication.Price = &price
	}
	if input.Supplier != nil {
		medication.Supplier = input.Supplier
	}
	if input.BatchNumber != nil {
		medication.BatchNumber = input.BatchNumber
	}
	if input.ExpiryDate != nil {
		medication.ExpiryDate = input.ExpiryDate
	}
}
