package replenishments

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/payloads"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

type stubRepo struct {
	requests map[uuid.UUID]*models.SiteRequest
	deleted  []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{requests: map[uuid.UUID]*models.SiteRequest{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, request *models.SiteRequest) (*models.SiteRequest, error) {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	request.CreatedAt = time.Now()
	s.requests[request.ID] = request
	return request, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SiteRequest, error) {
	request, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (s *stubRepo) FindBySite(ctx context.Context, siteID uuid.UUID, page pagination.Params) ([]models.SiteRequest, error) {
	var rows []models.SiteRequest
	for _, request := range s.requests {
		if request.SiteID == siteID {
			rows = append(rows, *request)
		}
	}
	return rows, nil
}

func (s *stubRepo) FindPending(ctx context.Context, page pagination.Params) ([]models.SiteRequest, error) {
	var rows []models.SiteRequest
	for _, request := range s.requests {
		if request.Status == enums.RequestStatusPending {
			rows = append(rows, *request)
		}
	}
	return rows, nil
}

func (s *stubRepo) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.SiteRequest, error) {
	var rows []models.SiteRequest
	for _, request := range s.requests {
		rows = append(rows, *request)
	}
	return rows, nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	request, ok := s.requests[id]
	if !ok {
		return nil
	}
	if quantity, ok := updates["requested_quantity"].(int); ok {
		request.RequestedQuantity = quantity
	}
	if status, ok := updates["status"].(enums.RequestStatus); ok {
		request.Status = status
	}
	if at, ok := updates["response_date"].(time.Time); ok {
		request.ResponseDate = &at
	}
	if by, ok := updates["approved_by"].(uuid.UUID); ok {
		request.ApprovedBy = &by
	}
	if notes, ok := updates["notes"].(*string); ok {
		request.Notes = notes
	}
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.requests, id)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubPublisher struct {
	events []outbox.DomainEvent
}

func (s *stubPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestService(t *testing.T, repo *stubRepo, publisher *stubPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, publisher)
	require.NoError(t, err)
	return svc
}

func pendingRequest(repo *stubRepo) *models.SiteRequest {
	request := &models.SiteRequest{
		ID:                uuid.New(),
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 40,
		Status:            enums.RequestStatusPending,
		UserID:            uuid.New(),
		RequestDate:       time.Now().Add(-time.Hour),
	}
	repo.requests[request.ID] = request
	return request
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestCreateStartsPending(t *testing.T) {
	repo := newStubRepo()
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	userID := uuid.New()
	request, err := svc.Create(context.Background(), CreateInput{
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 25,
		UserID:            userID,
		Notes:             strPtr("  restock before the weekend  "),
	})
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusPending, request.Status)
	assert.Nil(t, request.ResponseDate)
	assert.Nil(t, request.ApprovedBy)
	assert.False(t, request.RequestDate.IsZero())
	require.NotNil(t, request.Notes)
	assert.Equal(t, "restock before the weekend", *request.Notes)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, enums.EventReplenishmentRequested, event.EventType)
	payload := event.Data.(payloads.ReplenishmentRequestedEvent)
	assert.Equal(t, userID, payload.RequestedBy)
	assert.Equal(t, 25, payload.RequestedQuantity)
}

func TestCreateRejectsNonPositiveQuantity(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	for _, quantity := range []int{0, -5} {
		_, err := svc.Create(context.Background(), CreateInput{
			SiteID:            uuid.New(),
			MedicationID:      uuid.New(),
			RequestedQuantity: quantity,
			UserID:            uuid.New(),
		})
		require.Error(t, err)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		details := typed.Details().(map[string]string)
		assert.Contains(t, details, "requested_quantity")
	}
}

func TestCreateBlankNotesStoredAsNull(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubPublisher{})

	request, err := svc.Create(context.Background(), CreateInput{
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 10,
		UserID:            uuid.New(),
		Notes:             strPtr("   "),
	})
	require.NoError(t, err)
	assert.Nil(t, request.Notes)
}

func TestApproveFromPending(t *testing.T) {
	repo := newStubRepo()
	request := pendingRequest(repo)
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	approver := uuid.New()
	decided, err := svc.Approve(context.Background(), request.ID, Actor{UserID: approver, Role: string(enums.RoleAdmin)}, strPtr("approved for transfer"))
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusApproved, decided.Status)
	require.NotNil(t, decided.ResponseDate)
	require.NotNil(t, decided.ApprovedBy)
	assert.Equal(t, approver, *decided.ApprovedBy)
	require.NotNil(t, decided.Notes)
	assert.Equal(t, "approved for transfer", *decided.Notes)

	require.Len(t, publisher.events, 1)
	payload := publisher.events[0].Data.(payloads.ReplenishmentDecidedEvent)
	assert.Equal(t, enums.RequestStatusApproved, payload.Status)
	assert.Equal(t, approver, payload.DecidedBy)
}

func TestRejectKeepsNotesWhenNoneSent(t *testing.T) {
	repo := newStubRepo()
	request := pendingRequest(repo)
	original := "requested by night shift"
	request.Notes = &original
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	decided, err := svc.Reject(context.Background(), request.ID, Actor{UserID: uuid.New()}, nil)
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusRejected, decided.Status)
	require.NotNil(t, decided.Notes)
	assert.Equal(t, original, *decided.Notes)
}

func TestDecisionOnlyFromPending(t *testing.T) {
	repo := newStubRepo()
	request := pendingRequest(repo)
	request.Status = enums.RequestStatusApproved
	now := time.Now()
	request.ResponseDate = &now
	svc := newTestService(t, repo, &stubPublisher{})

	_, err := svc.Approve(context.Background(), request.ID, Actor{UserID: uuid.New()}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = svc.Reject(context.Background(), request.ID, Actor{UserID: uuid.New()}, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatusTransitionStampsResponseDate(t *testing.T) {
	repo := newStubRepo()
	request := pendingRequest(repo)
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	status := enums.RequestStatusRejected
	decided, err := svc.Update(context.Background(), request.ID, UpdateInput{Status: &status}, Actor{UserID: uuid.New()})
	require.NoError(t, err)

	assert.Equal(t, enums.RequestStatusRejected, decided.Status)
	require.NotNil(t, decided.ResponseDate)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, enums.EventReplenishmentDecided, publisher.events[0].EventType)
}

func TestUpdateTerminalRequestIsImmutable(t *testing.T) {
	repo := newStubRepo()
	request := pendingRequest(repo)
	request.Status = enums.RequestStatusRejected
	svc := newTestService(t, repo, &stubPublisher{})

	_, err := svc.Update(context.Background(), request.ID, UpdateInput{RequestedQuantity: intPtr(99)}, Actor{UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateRequiresAtLeastOneField(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{}, Actor{UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateQuantityWhilePending(t *testing.T) {
	repo := newStubRepo()
	request := pendingRequest(repo)
	svc := newTestService(t, repo, &stubPublisher{})

	updated, err := svc.Update(context.Background(), request.ID, UpdateInput{RequestedQuantity: intPtr(75)}, Actor{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 75, updated.RequestedQuantity)
	assert.Equal(t, enums.RequestStatusPending, updated.Status)
	assert.Nil(t, updated.ResponseDate)
}

func TestDeleteOnlyWhilePending(t *testing.T) {
	repo := newStubRepo()
	pending := pendingRequest(repo)
	approved := pendingRequest(repo)
	approved.Status = enums.RequestStatusApproved
	rejected := pendingRequest(repo)
	rejected.Status = enums.RequestStatusRejected
	svc := newTestService(t, repo, &stubPublisher{})

	require.NoError(t, svc.Delete(context.Background(), pending.ID))
	assert.Contains(t, repo.deleted, pending.ID)

	err := svc.Delete(context.Background(), approved.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	err = svc.Delete(context.Background(), rejected.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestDeleteUnknownRequestReturnsNotFound(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	err := svc.Delete(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestValidateIsFieldKeyed(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	err := svc.Validate(CreateInput{})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "site_id")
	assert.Contains(t, details, "medication_id")
	assert.Contains(t, details, "user_id")
	assert.Contains(t, details, "requested_quantity")
}

func TestNotesCappedAtFiveHundredChars(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	valid := CreateInput{
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 10,
		UserID:            uuid.New(),
	}

	valid.Notes = strPtr(strings.Repeat("a", 500))
	_, err := svc.Create(context.Background(), valid)
	require.NoError(t, err)

	valid.Notes = strPtr(strings.Repeat("a", 501))
	_, err = svc.Create(context.Background(), valid)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "notes")

	// the same cap applies on the edit path
	repo := newStubRepo()
	request := pendingRequest(repo)
	editSvc := newTestService(t, repo, &stubPublisher{})
	_, err = editSvc.Update(context.Background(), request.ID, UpdateInput{Notes: strPtr(strings.Repeat("a", 501))}, Actor{UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNotesLengthCountsRunes(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	// 500 accented runes exceed 500 bytes but stay within the character cap.
	_, err := svc.Create(context.Background(), CreateInput{
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 10,
		UserID:            uuid.New(),
		Notes:             strPtr(strings.Repeat("é", 500)),
	})
	require.NoError(t, err)
}

func TestCreateAcceptsLargeQuantities(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	request, err := svc.Create(context.Background(), CreateInput{
		SiteID:            uuid.New(),
		MedicationID:      uuid.New(),
		RequestedQuantity: 250000,
		UserID:            uuid.New(),
	})
	require.NoError(t, err)
	assert.Equal(t, 250000, request.RequestedQuantity)
}
