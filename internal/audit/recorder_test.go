package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/internal/guard"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

type stubAuditRepo struct {
	inserted []models.AuditEvent
	err      error
}

func (s *stubAuditRepo) Insert(tx *gorm.DB, event models.AuditEvent) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, event)
	return nil
}

func (s *stubAuditRepo) ListByMedication(ctx context.Context, medicationID uuid.UUID, page pagination.Params) ([]models.AuditEvent, error) {
	return s.inserted, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

// fakeTx satisfies the non-nil transaction checks in stubs.
var fakeTx = &gorm.DB{}

func TestRecordQuantityChangeWithoutAnomaly(t *testing.T) {
	repo := &stubAuditRepo{}
	publisher := &stubOutbox{}
	recorder, err := NewRecorder(repo, publisher, nil)
	require.NoError(t, err)

	medID := uuid.New()
	userID := uuid.New()
	err = recorder.RecordQuantityChange(context.Background(), fakeTx, QuantityChange{
		MedicationID:     medID,
		UserID:           userID,
		Reason:           "monthly recount",
		PreviousQuantity: 100,
		NewQuantity:      110,
	})
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	row := repo.inserted[0]
	assert.Equal(t, enums.AuditActionQuantityUpdate, row.Action)
	assert.Equal(t, enums.AuditSeverityInfo, row.Severity)
	require.NotNil(t, row.Reason)
	assert.Equal(t, "monthly recount", *row.Reason)
	assert.Nil(t, row.DeltaPercent)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, enums.EventStockAdjusted, publisher.events[0].EventType)
	assert.Equal(t, medID, publisher.events[0].AggregateID)
}

func TestRecordQuantityChangeWithAnomaly(t *testing.T) {
	repo := &stubAuditRepo{}
	publisher := &stubOutbox{}
	recorder, err := NewRecorder(repo, publisher, nil)
	require.NoError(t, err)

	g := guard.NewGuard(nil)
	anomaly := g.ClassifyQuantityChange(100, 200)
	require.NotNil(t, anomaly)

	err = recorder.RecordQuantityChange(context.Background(), fakeTx, QuantityChange{
		MedicationID:     uuid.New(),
		UserID:           uuid.New(),
		Reason:           "supplier delivery intake",
		PreviousQuantity: 100,
		NewQuantity:      200,
		Anomaly:          anomaly,
	})
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, enums.AuditSeverityCritical, repo.inserted[0].Severity)
	require.NotNil(t, repo.inserted[0].DeltaPercent)
	assert.InDelta(t, 100.0, *repo.inserted[0].DeltaPercent, 0.001)

	require.Len(t, publisher.events, 2)
	assert.Equal(t, enums.EventStockAdjusted, publisher.events[0].EventType)
	assert.Equal(t, enums.EventStockAnomalyDetected, publisher.events[1].EventType)
}

func TestRecordGeneralChange(t *testing.T) {
	repo := &stubAuditRepo{}
	publisher := &stubOutbox{}
	recorder, err := NewRecorder(repo, publisher, nil)
	require.NoError(t, err)

	err = recorder.RecordGeneralChange(context.Background(), fakeTx, GeneralChange{
		MedicationID:  uuid.New(),
		UserID:        uuid.New(),
		ChangedFields: []string{"name", "supplier"},
	})
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	assert.Equal(t, enums.AuditActionGeneralUpdate, repo.inserted[0].Action)
	assert.Equal(t, []string{"name", "supplier"}, []string(repo.inserted[0].ChangedFields))
	assert.Empty(t, publisher.events)
}

func TestRecordGeneralChangeRequiresFields(t *testing.T) {
	recorder, err := NewRecorder(&stubAuditRepo{}, &stubOutbox{}, nil)
	require.NoError(t, err)

	err = recorder.RecordGeneralChange(context.Background(), fakeTx, GeneralChange{
		MedicationID: uuid.New(),
		UserID:       uuid.New(),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
