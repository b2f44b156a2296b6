package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pharmexa/pharmastock-backend/internal/alerts"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

type expiredMedicationRepo interface {
	FindExpiringBefore(ctx context.Context, cutoff string) ([]models.Medication, error)
}

type expiredAlertFactory interface {
	CreateExpired(ctx context.Context, medicationID uuid.UUID, batchNumber *string, expiryDate time.Time, actor alerts.Actor) (*models.StockAlert, error)
}

// ExpiredStockJobParams configures the nightly expiry scan.
type ExpiredStockJobParams struct {
	Logger  *logger.Logger
	MedRepo expiredMedicationRepo
	Alerts  expiredAlertFactory
}

// NewExpiredStockJob builds the job that raises EXPIRED alerts for every
// medication whose expiry date has passed. The alert factory deduplicates,
// so re-running the scan is safe.
func NewExpiredStockJob(params ExpiredStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MedRepo == nil {
		return nil, fmt.Errorf("medication repository required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alert factory required")
	}
	return &expiredStockJob{
		logg:    params.Logger,
		medRepo: params.MedRepo,
		alerts:  params.Alerts,
		now:     time.Now,
	}, nil
}

type expiredStockJob struct {
	logg    *logger.Logger
	medRepo expiredMedicationRepo
	alerts  expiredAlertFactory
	now     func() time.Time
}

func (j *expiredStockJob) Name() string { return "expired-stock-scan" }

func (j *expiredStockJob) Run(ctx context.Context) error {
	today := j.now().UTC().Format("2006-01-02")
	expired, err := j.medRepo.FindExpiringBefore(ctx, today)
	if err != nil {
		return fmt.Errorf("scan expired medications: %w", err)
	}

	var errs error
	raised := 0
	for _, medication := range expired {
		if medication.ExpiryDate == nil {
			continue
		}
		_, err := j.alerts.CreateExpired(ctx, medication.ID, medication.BatchNumber, *medication.ExpiryDate, alerts.Actor{})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("medication %s: %w", medication.ID, err))
			continue
		}
		raised++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired_count": len(expired),
		"alerts_raised": raised,
	})
	j.logg.Info(logCtx, "expired stock scan complete")
	return errs
}
