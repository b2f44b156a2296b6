package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/pharmexa/pharmastock-backend/internal/alerts"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

type lowStockMedicationRepo interface {
	FindBelowMinStock(ctx context.Context) ([]models.Medication, error)
}

type lowStockAlertFactory interface {
	CreateLowStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor alerts.Actor) (*models.StockAlert, error)
	CreateCritical(ctx context.Context, medicationID uuid.UUID, currentQuantity int, actor alerts.Actor) (*models.StockAlert, error)
}

// LowStockJobParams configures the threshold sweep.
type LowStockJobParams struct {
	Logger  *logger.Logger
	MedRepo lowStockMedicationRepo
	Alerts  lowStockAlertFactory
}

// NewLowStockJob builds the sweep that catches medications whose stock
// crossed the threshold without going through a guarded mutation, such as
// rows touched by migrations or manual fixes.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MedRepo == nil {
		return nil, fmt.Errorf("medication repository required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alert factory required")
	}
	return &lowStockJob{
		logg:    params.Logger,
		medRepo: params.MedRepo,
		alerts:  params.Alerts,
	}, nil
}

type lowStockJob struct {
	logg    *logger.Logger
	medRepo lowStockMedicationRepo
	alerts  lowStockAlertFactory
}

func (j *lowStockJob) Name() string { return "low-stock-sweep" }

func (j *lowStockJob) Run(ctx context.Context) error {
	below, err := j.medRepo.FindBelowMinStock(ctx)
	if err != nil {
		return fmt.Errorf("scan low stock medications: %w", err)
	}

	var errs error
	raised := 0
	for _, medication := range below {
		var alertErr error
		if medication.Quantity == 0 {
			_, alertErr = j.alerts.CreateCritical(ctx, medication.ID, medication.Quantity, alerts.Actor{})
		} else {
			_, alertErr = j.alerts.CreateLowStock(ctx, medication.ID, medication.Quantity, medication.MinStock, alerts.Actor{})
		}
		if alertErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("medication %s: %w", medication.ID, alertErr))
			continue
		}
		raised++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"below_threshold": len(below),
		"alerts_raised":   raised,
	})
	j.logg.Info(logCtx, "low stock sweep complete")
	return errs
}
