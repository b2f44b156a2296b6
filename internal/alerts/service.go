package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/pharmexa/pharmastock-backend/pkg/db"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/payloads"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

const maxMessageLen = 500

const activeDedupeConstraint = "ux_stock_alerts_active_dedupe"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies the user performing an alert mutation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Service exposes the alert lifecycle operations.
type Service interface {
	Validate(input CreateInput) error
	Create(ctx context.Context, input CreateInput, actor Actor) (*models.StockAlert, error)
	CreateLowStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor Actor) (*models.StockAlert, error)
	CreateExpired(ctx context.Context, medicationID uuid.UUID, batchNumber *string, expiryDate time.Time, actor Actor) (*models.StockAlert, error)
	CreateCritical(ctx context.Context, medicationID uuid.UUID, currentQuantity int, actor Actor) (*models.StockAlert, error)
	CreateHighStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor Actor) (*models.StockAlert, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error)
	FindByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.StockAlert, error)
	FindActive(ctx context.Context) ([]models.StockAlert, error)
	FindByType(ctx context.Context, alertType enums.AlertType, page pagination.Params) ([]models.StockAlert, error)
	FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.StockAlert, error)
	GetSummary(ctx context.Context) (*Summary, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.StockAlert, error)
	Resolve(ctx context.Context, id uuid.UUID, actor Actor) (*models.StockAlert, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds an alert service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

// Validate checks a creation payload without touching storage.
func (s *service) Validate(input CreateInput) error {
	details := map[string]string{}
	if input.MedicationID == uuid.Nil {
		details["medication_id"] = "is required"
	}
	if !input.AlertType.IsValid() {
		details["alert_type"] = fmt.Sprintf("must be one of %v", enums.AlertTypes())
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		details["message"] = "is required"
	} else if utf8.RuneCountInString(message) > maxMessageLen {
		details["message"] = fmt.Sprintf("must be at most %d characters", maxMessageLen)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput, actor Actor) (*models.StockAlert, error) {
	if err := s.Validate(input); err != nil {
		return nil, err
	}
	return s.insert(ctx, input, actor, insertOpts{})
}

type insertOpts struct {
	tolerateDuplicate bool
	quantity          int
	minStock          int
}

func (s *service) CreateLowStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor Actor) (*models.StockAlert, error) {
	input := CreateInput{
		MedicationID: medicationID,
		AlertType:    enums.AlertTypeLowStock,
		Message:      fmt.Sprintf("Stock is low: %d units remaining (minimum %d)", currentQuantity, minQuantity),
	}
	return s.insert(ctx, input, actor, insertOpts{tolerateDuplicate: true, quantity: currentQuantity, minStock: minQuantity})
}

func (s *service) CreateExpired(ctx context.Context, medicationID uuid.UUID, batchNumber *string, expiryDate time.Time, actor Actor) (*models.StockAlert, error) {
	batch := "unknown"
	if batchNumber != nil && strings.TrimSpace(*batchNumber) != "" {
		batch = strings.TrimSpace(*batchNumber)
	}
	input := CreateInput{
		MedicationID: medicationID,
		AlertType:    enums.AlertTypeExpired,
		Message:      fmt.Sprintf("Batch %s expired on %s", batch, expiryDate.Format("2006-01-02")),
	}
	return s.insert(ctx, input, actor, insertOpts{tolerateDuplicate: true})
}

func (s *service) CreateCritical(ctx context.Context, medicationID uuid.UUID, currentQuantity int, actor Actor) (*models.StockAlert, error) {
	input := CreateInput{
		MedicationID: medicationID,
		AlertType:    enums.AlertTypeCritical,
		Message:      fmt.Sprintf("Critical stock level: %d units remaining", currentQuantity),
	}
	return s.insert(ctx, input, actor, insertOpts{tolerateDuplicate: true, quantity: currentQuantity})
}

func (s *service) CreateHighStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor Actor) (*models.StockAlert, error) {
	input := CreateInput{
		MedicationID: medicationID,
		AlertType:    enums.AlertTypeHighStock,
		Message:      fmt.Sprintf("Stock is unusually high: %d units on hand (minimum %d)", currentQuantity, minQuantity),
	}
	return s.insert(ctx, input, actor, insertOpts{tolerateDuplicate: true, quantity: currentQuantity, minStock: minQuantity})
}

// insert creates the row and queues the alert_created event in one
// transaction. Factory paths tolerate the active-alert dedupe constraint and
// hand back the existing row instead.
func (s *service) insert(ctx context.Context, input CreateInput, actor Actor, opts insertOpts) (*models.StockAlert, error) {
	alert := &models.StockAlert{
		MedicationID: input.MedicationID,
		AlertType:    input.AlertType,
		Message:      strings.TrimSpace(input.Message),
		IsResolved:   false,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, alert)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock alert")
		}
		alert = created

		event := outbox.DomainEvent{
			EventType:     enums.EventAlertCreated,
			AggregateType: enums.AggregateStockAlert,
			AggregateID:   alert.ID,
			Version:       1,
			Actor:         actorRef(actor),
			Data: payloads.AlertCreatedEvent{
				AlertID:      alert.ID,
				MedicationID: alert.MedicationID,
				AlertType:    alert.AlertType,
				Message:      alert.Message,
				Quantity:     opts.quantity,
				MinStock:     opts.minStock,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		if opts.tolerateDuplicate && dbpkg.IsUniqueViolation(err, activeDedupeConstraint) {
			existing, findErr := s.repo.FindActiveByMedicationAndType(ctx, input.MedicationID, input.AlertType)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load existing active alert")
			}
			if existing != nil {
				return existing, nil
			}
		}
		if dbpkg.IsUniqueViolation(err, activeDedupeConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an active alert of this type already exists for the medication")
		}
		return nil, err
	}
	return alert, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error) {
	alert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock alert")
	}
	if alert == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
	}
	return alert, nil
}

func (s *service) FindByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.StockAlert, error) {
	rows, err := s.repo.FindByMedication(ctx, medicationID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts by medication")
	}
	return rows, nil
}

func (s *service) FindActive(ctx context.Context) ([]models.StockAlert, error) {
	rows, err := s.repo.FindActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active alerts")
	}
	return rows, nil
}

func (s *service) FindByType(ctx context.Context, alertType enums.AlertType, page pagination.Params) ([]models.StockAlert, error) {
	if !alertType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"alert_type": fmt.Sprintf("must be one of %v", enums.AlertTypes())})
	}
	rows, err := s.repo.FindByType(ctx, alertType, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts by type")
	}
	return rows, nil
}

func (s *service) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.StockAlert, error) {
	rows, err := s.repo.FindAll(ctx, page, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list alerts")
	}
	return rows, nil
}

func (s *service) GetSummary(ctx context.Context) (*Summary, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build alert summary")
	}
	return summary, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.StockAlert, error) {
	if input.Message == nil && input.IsResolved == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if input.Message != nil {
		message := strings.TrimSpace(*input.Message)
		if message == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"message": "is required"})
		}
		if utf8.RuneCountInString(message) > maxMessageLen {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{"message": fmt.Sprintf("must be at most %d characters", maxMessageLen)})
		}
	}

	alert, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.IsResolved != nil && !*input.IsResolved && alert.IsResolved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "a resolved alert cannot be reopened")
	}

	updates := map[string]any{}
	if input.Message != nil {
		updates["message"] = strings.TrimSpace(*input.Message)
	}
	now := time.Now()
	resolving := input.IsResolved != nil && *input.IsResolved
	if resolving {
		updates["is_resolved"] = true
		updates["resolved_at"] = now
	}
	// IsResolved=false on an unresolved alert writes nothing.
	if len(updates) == 0 {
		return alert, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock alert")
		}
		if !resolving {
			return nil
		}
		return s.emitResolved(ctx, tx, alert, now, actor)
	})
	if err != nil {
		return nil, err
	}

	if input.Message != nil {
		alert.Message = strings.TrimSpace(*input.Message)
	}
	if resolving {
		alert.IsResolved = true
		alert.ResolvedAt = &now
	}
	return alert, nil
}

// Resolve marks the alert resolved. Re-resolving does not error but refreshes
// resolved_at.
func (s *service) Resolve(ctx context.Context, id uuid.UUID, actor Actor) (*models.StockAlert, error) {
	alert, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updates := map[string]any{
			"is_resolved": true,
			"resolved_at": now,
		}
		if err := repo.Update(ctx, id, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve stock alert")
		}
		return s.emitResolved(ctx, tx, alert, now, actor)
	})
	if err != nil {
		return nil, err
	}

	alert.IsResolved = true
	alert.ResolvedAt = &now
	return alert, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete stock alert")
	}
	return nil
}

// emitResolved uses EmitIfNotExists so a re-resolve refreshes resolved_at
// without tripping the outbox dedupe constraint.
func (s *service) emitResolved(ctx context.Context, tx *gorm.DB, alert *models.StockAlert, resolvedAt time.Time, actor Actor) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventAlertResolved,
		AggregateType: enums.AggregateStockAlert,
		AggregateID:   alert.ID,
		Version:       1,
		Actor:         actorRef(actor),
		Data: payloads.AlertResolvedEvent{
			AlertID:      alert.ID,
			MedicationID: alert.MedicationID,
			AlertType:    alert.AlertType,
			ResolvedAt:   resolvedAt,
		},
	}
	return s.outbox.EmitIfNotExists(ctx, tx, event)
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role}
}
