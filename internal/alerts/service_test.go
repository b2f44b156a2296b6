package alerts

import (
	"context"
	"errors"
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
	alerts    map[uuid.UUID]*models.StockAlert
	createErr error
	updates   map[string]any
	deleted   []uuid.UUID
}

func newStubRepo() *stubRepo {
	return &stubRepo{alerts: map[uuid.UUID]*models.StockAlert{}}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, alert *models.StockAlert) (*models.StockAlert, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	alert.CreatedAt = time.Now()
	s.alerts[alert.ID] = alert
	return alert, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.StockAlert, error) {
	alert, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

func (s *stubRepo) FindByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.StockAlert, error) {
	var rows []models.StockAlert
	for _, alert := range s.alerts {
		if alert.MedicationID == medicationID {
			rows = append(rows, *alert)
		}
	}
	return rows, nil
}

func (s *stubRepo) FindActive(ctx context.Context) ([]models.StockAlert, error) {
	var rows []models.StockAlert
	for _, alert := range s.alerts {
		if !alert.IsResolved {
			rows = append(rows, *alert)
		}
	}
	return rows, nil
}

func (s *stubRepo) FindActiveByMedicationAndType(ctx context.Context, medicationID uuid.UUID, alertType enums.AlertType) (*models.StockAlert, error) {
	for _, alert := range s.alerts {
		if alert.MedicationID == medicationID && alert.AlertType == alertType && !alert.IsResolved {
			copied := *alert
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) FindByType(ctx context.Context, alertType enums.AlertType, page pagination.Params) ([]models.StockAlert, error) {
	var rows []models.StockAlert
	for _, alert := range s.alerts {
		if alert.AlertType == alertType {
			rows = append(rows, *alert)
		}
	}
	return rows, nil
}

func (s *stubRepo) FindAll(ctx context.Context, page pagination.Params, filters Filters) ([]models.StockAlert, error) {
	var rows []models.StockAlert
	for _, alert := range s.alerts {
		rows = append(rows, *alert)
	}
	return rows, nil
}

func (s *stubRepo) Summary(ctx context.Context) (*Summary, error) {
	summary := &Summary{ByType: map[enums.AlertType]int64{}}
	for _, alertType := range enums.AlertTypes() {
		summary.ByType[alertType] = 0
	}
	for _, alert := range s.alerts {
		summary.Total++
		if alert.IsResolved {
			summary.Resolved++
		} else {
			summary.Active++
		}
		summary.ByType[alert.AlertType]++
	}
	return summary, nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	alert, ok := s.alerts[id]
	if !ok {
		return nil
	}
	if message, ok := updates["message"].(string); ok {
		alert.Message = message
	}
	if resolved, ok := updates["is_resolved"].(bool); ok {
		alert.IsResolved = resolved
	}
	if at, ok := updates["resolved_at"].(time.Time); ok {
		alert.ResolvedAt = &at
	}
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	delete(s.alerts, id)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubPublisher struct {
	emitted       []outbox.DomainEvent
	emittedUnique []outbox.DomainEvent
	err           error
}

func (s *stubPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.emitted = append(s.emitted, event)
	return nil
}

func (s *stubPublisher) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.emittedUnique = append(s.emittedUnique, event)
	return nil
}

func newTestService(t *testing.T, repo *stubRepo, publisher *stubPublisher) Service {
	t.Helper()
	svc, err := NewService(repo, stubTx{}, publisher)
	require.NoError(t, err)
	return svc
}

func TestValidateRejectsBadInput(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	err := svc.Validate(CreateInput{AlertType: enums.AlertType("BOGUS"), Message: "  "})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "medication_id")
	assert.Contains(t, details, "alert_type")
	assert.Contains(t, details, "message")
}

func TestCreateStartsActiveAndEmitsEvent(t *testing.T) {
	repo := newStubRepo()
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	medID := uuid.New()
	alert, err := svc.Create(context.Background(), CreateInput{
		MedicationID: medID,
		AlertType:    enums.AlertTypeLowStock,
		Message:      "  Stock is low: 3 units remaining (minimum 10)  ",
	}, Actor{UserID: uuid.New(), Role: string(enums.RoleAdmin)})
	require.NoError(t, err)

	assert.False(t, alert.IsResolved)
	assert.Nil(t, alert.ResolvedAt)
	assert.Equal(t, "Stock is low: 3 units remaining (minimum 10)", alert.Message)

	require.Len(t, publisher.emitted, 1)
	event := publisher.emitted[0]
	assert.Equal(t, enums.EventAlertCreated, event.EventType)
	assert.Equal(t, enums.AggregateStockAlert, event.AggregateType)
	assert.Equal(t, alert.ID, event.AggregateID)
	payload := event.Data.(payloads.AlertCreatedEvent)
	assert.Equal(t, medID, payload.MedicationID)
}

func TestCreateLowStockReturnsExistingOnDuplicate(t *testing.T) {
	repo := newStubRepo()
	medID := uuid.New()
	existing := &models.StockAlert{
		ID:           uuid.New(),
		MedicationID: medID,
		AlertType:    enums.AlertTypeLowStock,
		Message:      "Stock is low: 4 units remaining (minimum 10)",
	}
	repo.alerts[existing.ID] = existing
	repo.createErr = errors.New(`duplicate key value violates unique constraint "ux_stock_alerts_active_dedupe"`)

	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	alert, err := svc.CreateLowStock(context.Background(), medID, 3, 10, Actor{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, alert.ID)
	assert.Empty(t, publisher.emitted)
}

func TestCreateDirectSurfacesDuplicateAsConflict(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = errors.New(`duplicate key value violates unique constraint "ux_stock_alerts_active_dedupe"`)
	svc := newTestService(t, repo, &stubPublisher{})

	_, err := svc.Create(context.Background(), CreateInput{
		MedicationID: uuid.New(),
		AlertType:    enums.AlertTypeCritical,
		Message:      "Critical stock level: 1 units remaining",
	}, Actor{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestFactoryMessages(t *testing.T) {
	repo := newStubRepo()
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)
	ctx := context.Background()
	actor := Actor{UserID: uuid.New()}

	low, err := svc.CreateLowStock(ctx, uuid.New(), 3, 10, actor)
	require.NoError(t, err)
	assert.Equal(t, "Stock is low: 3 units remaining (minimum 10)", low.Message)
	assert.Equal(t, enums.AlertTypeLowStock, low.AlertType)

	batch := "LOT-42"
	expired, err := svc.CreateExpired(ctx, uuid.New(), &batch, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), actor)
	require.NoError(t, err)
	assert.Equal(t, "Batch LOT-42 expired on 2026-05-01", expired.Message)

	noBatch, err := svc.CreateExpired(ctx, uuid.New(), nil, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), actor)
	require.NoError(t, err)
	assert.Equal(t, "Batch unknown expired on 2026-05-01", noBatch.Message)

	critical, err := svc.CreateCritical(ctx, uuid.New(), 1, actor)
	require.NoError(t, err)
	assert.Equal(t, "Critical stock level: 1 units remaining", critical.Message)

	high, err := svc.CreateHighStock(ctx, uuid.New(), 9000, 10, actor)
	require.NoError(t, err)
	assert.Equal(t, "Stock is unusually high: 9000 units on hand (minimum 10)", high.Message)
}

func TestUpdateRequiresAtLeastOneField(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	_, err := svc.Update(context.Background(), uuid.New(), UpdateInput{}, Actor{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateResolvingStampsResolvedAt(t *testing.T) {
	repo := newStubRepo()
	alert := &models.StockAlert{ID: uuid.New(), MedicationID: uuid.New(), AlertType: enums.AlertTypeExpired, Message: "Batch LOT-1 expired on 2026-01-01"}
	repo.alerts[alert.ID] = alert
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	resolved := true
	updated, err := svc.Update(context.Background(), alert.ID, UpdateInput{IsResolved: &resolved}, Actor{UserID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, updated.IsResolved)
	require.NotNil(t, updated.ResolvedAt)

	require.Len(t, publisher.emittedUnique, 1)
	assert.Equal(t, enums.EventAlertResolved, publisher.emittedUnique[0].EventType)
}

func TestUpdateCannotReopenResolvedAlert(t *testing.T) {
	repo := newStubRepo()
	now := time.Now()
	alert := &models.StockAlert{ID: uuid.New(), MedicationID: uuid.New(), AlertType: enums.AlertTypeCritical, Message: "Critical stock level: 0 units remaining", IsResolved: true, ResolvedAt: &now}
	repo.alerts[alert.ID] = alert
	svc := newTestService(t, repo, &stubPublisher{})

	reopen := false
	_, err := svc.Update(context.Background(), alert.ID, UpdateInput{IsResolved: &reopen}, Actor{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestResolveIsIdempotentAndRefreshesTimestamp(t *testing.T) {
	repo := newStubRepo()
	earlier := time.Now().Add(-time.Hour)
	alert := &models.StockAlert{ID: uuid.New(), MedicationID: uuid.New(), AlertType: enums.AlertTypeLowStock, Message: "Stock is low: 2 units remaining (minimum 10)", IsResolved: true, ResolvedAt: &earlier}
	repo.alerts[alert.ID] = alert
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	resolved, err := svc.Resolve(context.Background(), alert.ID, Actor{UserID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.After(earlier))
	assert.Len(t, publisher.emittedUnique, 1)
}

func TestResolveUnknownAlertReturnsNotFound(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	_, err := svc.Resolve(context.Background(), uuid.New(), Actor{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteWorksRegardlessOfState(t *testing.T) {
	repo := newStubRepo()
	now := time.Now()
	alert := &models.StockAlert{ID: uuid.New(), MedicationID: uuid.New(), AlertType: enums.AlertTypeExpired, Message: "Batch LOT-9 expired on 2026-02-01", IsResolved: true, ResolvedAt: &now}
	repo.alerts[alert.ID] = alert
	svc := newTestService(t, repo, &stubPublisher{})

	require.NoError(t, svc.Delete(context.Background(), alert.ID))
	assert.Contains(t, repo.deleted, alert.ID)
}

func TestSummaryCountsByType(t *testing.T) {
	repo := newStubRepo()
	medID := uuid.New()
	for i := 0; i < 3; i++ {
		id := uuid.New()
		repo.alerts[id] = &models.StockAlert{ID: id, MedicationID: medID, AlertType: enums.AlertTypeLowStock, Message: "Stock is low: 1 units remaining (minimum 5)"}
	}
	resolvedID := uuid.New()
	now := time.Now()
	repo.alerts[resolvedID] = &models.StockAlert{ID: resolvedID, MedicationID: medID, AlertType: enums.AlertTypeExpired, Message: "Batch LOT-3 expired on 2026-01-15", IsResolved: true, ResolvedAt: &now}

	svc := newTestService(t, repo, &stubPublisher{})
	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(4), summary.Total)
	assert.Equal(t, int64(3), summary.Active)
	assert.Equal(t, int64(1), summary.Resolved)
	assert.Equal(t, int64(3), summary.ByType[enums.AlertTypeLowStock])
	assert.Equal(t, int64(1), summary.ByType[enums.AlertTypeExpired])
	assert.Equal(t, int64(0), summary.ByType[enums.AlertTypeCritical])
}

func TestValidateCountsMessageRunes(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubPublisher{})

	// 500 accented runes exceed 500 bytes but stay within the character cap.
	assert.NoError(t, svc.Validate(CreateInput{
		MedicationID: uuid.New(),
		AlertType:    enums.AlertTypeLowStock,
		Message:      strings.Repeat("é", 500),
	}))

	err := svc.Validate(CreateInput{
		MedicationID: uuid.New(),
		AlertType:    enums.AlertTypeLowStock,
		Message:      strings.Repeat("é", 501),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details := typed.Details().(map[string]string)
	assert.Contains(t, details, "message")
}

func TestUpdateUnresolvedFalseWritesNothing(t *testing.T) {
	repo := newStubRepo()
	alert := &models.StockAlert{
		ID:           uuid.New(),
		MedicationID: uuid.New(),
		AlertType:    enums.AlertTypeLowStock,
		Message:      "Stock is low: 2 units remaining (minimum 10)",
	}
	repo.alerts[alert.ID] = alert
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, publisher)

	resolved := false
	updated, err := svc.Update(context.Background(), alert.ID, UpdateInput{IsResolved: &resolved}, Actor{UserID: uuid.New()})
	require.NoError(t, err)

	assert.False(t, updated.IsResolved)
	assert.Nil(t, updated.ResolvedAt)
	assert.Nil(t, repo.updates, "no storage write expected")
	assert.Empty(t, publisher.emittedUnique)
}
