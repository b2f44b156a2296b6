package replenishments

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/payloads"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

const maxNotesLen = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Actor identifies the user performing a workflow mutation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Service drives the site request approval workflow.
type Service interface {
	Validate(input CreateInput) error
	Create(ctx context.Context, input CreateInput) (*models.SiteRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SiteRequest, error)
	FindBySite(ctx context.Context, siteID uuid.UUID, page pagination.Params) ([]models.SiteRequest, error)
	FindPending(ctx context.Context, page pagination.Params) ([]models.SiteRequest, error)
	FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.SiteRequest, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.SiteRequest, error)
	Approve(ctx context.Context, id uuid.UUID, actor Actor, notes *string) (*models.SiteRequest, error)
	Reject(ctx context.Context, id uuid.UUID, actor Actor, notes *string) (*models.SiteRequest, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a replenishment service with the required dependencies.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("replenishments repository required")
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
	if input.SiteID == uuid.Nil {
		details["site_id"] = "is required"
	}
	if input.MedicationID == uuid.Nil {
		details["medication_id"] = "is required"
	}
	if input.UserID == uuid.Nil {
		details["user_id"] = "is required"
	}
	if input.RequestedQuantity <= 0 {
		details["requested_quantity"] = "must be greater than 0"
	}
	if notes := normalizeNotes(input.Notes); notes != nil && utf8.RuneCountInString(*notes) > maxNotesLen {
		details["notes"] = fmt.Sprintf("must be at most %d characters", maxNotesLen)
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

// Create opens a request in PENDING with request_date set server-side.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.SiteRequest, error) {
	if err := s.Validate(input); err != nil {
		return nil, err
	}
	notes := normalizeNotes(input.Notes)

	request := &models.SiteRequest{
		SiteID:            input.SiteID,
		MedicationID:      input.MedicationID,
		RequestedQuantity: input.RequestedQuantity,
		Status:            enums.RequestStatusPending,
		UserID:            input.UserID,
		RequestDate:       time.Now(),
		Notes:             notes,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, request)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert site request")
		}
		request = created

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReplenishmentRequested,
			AggregateType: enums.AggregateSiteRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.ReplenishmentRequestedEvent{
				RequestID:         request.ID,
				SiteID:            request.SiteID,
				MedicationID:      request.MedicationID,
				RequestedQuantity: request.RequestedQuantity,
				RequestedBy:       request.UserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.SiteRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load site request")
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "site request not found")
	}
	return request, nil
}

func (s *service) FindBySite(ctx context.Context, siteID uuid.UUID, page pagination.Params) ([]models.SiteRequest, error) {
	rows, err := s.repo.FindBySite(ctx, siteID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list site requests by site")
	}
	return rows, nil
}

func (s *service) FindPending(ctx context.Context, page pagination.Params) ([]models.SiteRequest, error) {
	rows, err := s.repo.FindPending(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending site requests")
	}
	return rows, nil
}

func (s *service) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.SiteRequest, error) {
	rows, err := s.repo.FindAll(ctx, page, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list site requests")
	}
	return rows, nil
}

// Update edits a pending request. A status field moving to APPROVED or
// REJECTED goes through the same decision path as Approve/Reject.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput, actor Actor) (*models.SiteRequest, error) {
	if input.RequestedQuantity == nil && input.Status == nil && input.Notes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	details := map[string]string{}
	if input.RequestedQuantity != nil && *input.RequestedQuantity <= 0 {
		details["requested_quantity"] = "must be greater than 0"
	}
	if input.Status != nil && !input.Status.IsValid() {
		details["status"] = "must be one of [PENDING APPROVED REJECTED]"
	}
	notes := normalizeNotes(input.Notes)
	if notes != nil && utf8.RuneCountInString(*notes) > maxNotesLen {
		details["notes"] = fmt.Sprintf("must be at most %d characters", maxNotesLen)
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	request, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("request in status %s can no longer be modified", request.Status))
	}

	if input.Status != nil && input.Status.IsTerminal() {
		return s.decide(ctx, request, *input.Status, actor, input.Notes, input.RequestedQuantity)
	}

	updates := map[string]any{}
	if input.RequestedQuantity != nil {
		updates["requested_quantity"] = *input.RequestedQuantity
	}
	if input.Notes != nil {
		updates["notes"] = notes
	}
	if len(updates) == 0 {
		return request, nil
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update site request")
	}

	if input.RequestedQuantity != nil {
		request.RequestedQuantity = *input.RequestedQuantity
	}
	if input.Notes != nil {
		request.Notes = notes
	}
	return request, nil
}

func (s *service) Approve(ctx context.Context, id uuid.UUID, actor Actor, notes *string) (*models.SiteRequest, error) {
	request, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.RequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("only pending requests can be approved, current status is %s", request.Status))
	}
	return s.decide(ctx, request, enums.RequestStatusApproved, actor, notes, nil)
}

func (s *service) Reject(ctx context.Context, id uuid.UUID, actor Actor, notes *string) (*models.SiteRequest, error) {
	request, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.RequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("only pending requests can be rejected, current status is %s", request.Status))
	}
	return s.decide(ctx, request, enums.RequestStatusRejected, actor, notes, nil)
}

// Delete removes a request, allowed only while it is still pending.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	request, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if request.Status != enums.RequestStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("request in status %s cannot be deleted", request.Status))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete site request")
	}
	return nil
}

// decide moves a pending request to a terminal status, stamping response_date
// and the deciding user. Notes are replaced only when the caller sent them.
func (s *service) decide(ctx context.Context, request *models.SiteRequest, status enums.RequestStatus, actor Actor, notes *string, requestedQuantity *int) (*models.SiteRequest, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a deciding user is required")
	}

	now := time.Now()
	normalized := normalizeNotes(notes)

	updates := map[string]any{
		"status":        status,
		"response_date": now,
		"approved_by":   actor.UserID,
	}
	if notes != nil {
		updates["notes"] = normalized
	}
	if requestedQuantity != nil {
		updates["requested_quantity"] = *requestedQuantity
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, request.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record request decision")
		}

		event := payloads.ReplenishmentDecidedEvent{
			RequestID:    request.ID,
			SiteID:       request.SiteID,
			MedicationID: request.MedicationID,
			Status:       status,
			DecidedBy:    actor.UserID,
			DecidedAt:    now,
		}
		if normalized != nil {
			event.Notes = *normalized
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReplenishmentDecided,
			AggregateType: enums.AggregateSiteRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data:          event,
		})
	})
	if err != nil {
		return nil, err
	}

	request.Status = status
	request.ResponseDate = &now
	approvedBy := actor.UserID
	request.ApprovedBy = &approvedBy
	if notes != nil {
		request.Notes = normalized
	}
	if requestedQuantity != nil {
		request.RequestedQuantity = *requestedQuantity
	}
	return request, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
