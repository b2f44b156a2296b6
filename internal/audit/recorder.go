package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/pharmexa/pharmastock-backend/internal/guard"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox"
	"github.com/pharmexa/pharmastock-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// QuantityChange captures the outcome of a guarded quantity mutation.
type QuantityChange struct {
	MedicationID     uuid.UUID
	UserID           uuid.UUID
	Reason           string
	PreviousQuantity int
	NewQuantity      int
	Anomaly          *guard.Anomaly
}

// GeneralChange captures the outcome of a guarded partial update.
type GeneralChange struct {
	MedicationID  uuid.UUID
	UserID        uuid.UUID
	ChangedFields []string
}

// Recorder is the post-mutation hook invoked by callers after a guarded
// write succeeds. It runs inside the caller's transaction so audit rows and
// outbox events commit atomically with the mutation.
type Recorder interface {
	RecordQuantityChange(ctx context.Context, tx *gorm.DB, change QuantityChange) error
	RecordGeneralChange(ctx context.Context, tx *gorm.DB, change GeneralChange) error
}

type recorder struct {
	repo   Repository
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewRecorder builds the audit recorder with the required dependencies.
func NewRecorder(repo Repository, publisher outboxPublisher, logg *logger.Logger) (Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &recorder{repo: repo, outbox: publisher, logg: logg}, nil
}

func (r *recorder) RecordQuantityChange(ctx context.Context, tx *gorm.DB, change QuantityChange) error {
	if change.MedicationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "medication id required")
	}

	severity := enums.AuditSeverityInfo
	var deltaPercent *float64
	if change.Anomaly != nil {
		severity = change.Anomaly.Severity
		deltaPercent = &change.Anomaly.DeltaPercent
	}

	reason := change.Reason
	prev := change.PreviousQuantity
	next := change.NewQuantity
	row := models.AuditEvent{
		MedicationID:     change.MedicationID,
		UserID:           change.UserID,
		Action:           enums.AuditActionQuantityUpdate,
		Severity:         severity,
		Reason:           &reason,
		PreviousQuantity: &prev,
		NewQuantity:      &next,
		DeltaPercent:     deltaPercent,
	}
	if err := r.repo.Insert(tx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert audit event")
	}

	actor := &outbox.ActorRef{UserID: change.UserID}
	adjusted := outbox.DomainEvent{
		EventType:     enums.EventStockAdjusted,
		AggregateType: enums.AggregateMedication,
		AggregateID:   change.MedicationID,
		Version:       1,
		Actor:         actor,
		Data: payloads.StockAdjustedEvent{
			MedicationID:     change.MedicationID,
			PreviousQuantity: change.PreviousQuantity,
			NewQuantity:      change.NewQuantity,
			Reason:           change.Reason,
		},
	}
	if err := r.outbox.Emit(ctx, tx, adjusted); err != nil {
		return err
	}

	if change.Anomaly == nil {
		return nil
	}

	if r.logg != nil {
		logCtx := r.logg.WithFields(ctx, map[string]any{
			"medication_id": change.MedicationID.String(),
			"severity":      severity,
			"delta_percent": change.Anomaly.DeltaPercent,
		})
		r.logg.Warn(logCtx, "stock anomaly detected")
	}

	anomalyEvent := outbox.DomainEvent{
		EventType:     enums.EventStockAnomalyDetected,
		AggregateType: enums.AggregateMedication,
		AggregateID:   change.MedicationID,
		Version:       1,
		Actor:         actor,
		Data: payloads.StockAnomalyDetectedEvent{
			MedicationID:     change.MedicationID,
			PreviousQuantity: change.Anomaly.PreviousQuantity,
			NewQuantity:      change.Anomaly.NewQuantity,
			DeltaPercent:     change.Anomaly.DeltaPercent,
			Severity:         change.Anomaly.Severity,
			DetectedAt:       time.Now(),
		},
	}
	return r.outbox.Emit(ctx, tx, anomalyEvent)
}

func (r *recorder) RecordGeneralChange(ctx context.Context, tx *gorm.DB, change GeneralChange) error {
	if change.MedicationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "medication id required")
	}
	if len(change.ChangedFields) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "changed fields required")
	}

	row := models.AuditEvent{
		MedicationID:  change.MedicationID,
		UserID:        change.UserID,
		Action:        enums.AuditActionGeneralUpdate,
		Severity:      enums.AuditSeverityInfo,
		ChangedFields: pq.StringArray(change.ChangedFields),
	}
	if err := r.repo.Insert(tx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert audit event")
	}
	return nil
}
