package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pharmexa/pharmastock-backend/internal/alerts"
	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	"github.com/pharmexa/pharmastock-backend/pkg/enums"
	"github.com/pharmexa/pharmastock-backend/pkg/logger"
)

type fakeMedicationRepo struct {
	expiring []models.Medication
	below    []models.Medication
	err      error
}

func (f *fakeMedicationRepo) FindExpiringBefore(ctx context.Context, cutoff string) ([]models.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.expiring, nil
}

func (f *fakeMedicationRepo) FindBelowMinStock(ctx context.Context) ([]models.Medication, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.below, nil
}

type fakeAlertFactory struct {
	created map[enums.AlertType]int
	err     error
}

func newFakeAlertFactory() *fakeAlertFactory {
	return &fakeAlertFactory{created: map[enums.AlertType]int{}}
}

func (f *fakeAlertFactory) CreateExpired(ctx context.Context, medicationID uuid.UUID, batchNumber *string, expiryDate time.Time, actor alerts.Actor) (*models.StockAlert, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created[enums.AlertTypeExpired]++
	return &models.StockAlert{}, nil
}

func (f *fakeAlertFactory) CreateLowStock(ctx context.Context, medicationID uuid.UUID, currentQuantity, minQuantity int, actor alerts.Actor) (*models.StockAlert, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created[enums.AlertTypeLowStock]++
	return &models.StockAlert{}, nil
}

func (f *fakeAlertFactory) CreateCritical(ctx context.Context, medicationID uuid.UUID, currentQuantity int, actor alerts.Actor) (*models.StockAlert, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created[enums.AlertTypeCritical]++
	return &models.StockAlert{}, nil
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestExpiredStockJobRaisesAlerts(t *testing.T) {
	expiry := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeMedicationRepo{expiring: []models.Medication{
		{ID: uuid.New(), ExpiryDate: ptrTime(expiry)},
		{ID: uuid.New(), ExpiryDate: ptrTime(expiry.Add(24 * time.Hour))},
		{ID: uuid.New()}, // no expiry date, skipped
	}}
	factory := newFakeAlertFactory()
	job, err := NewExpiredStockJob(ExpiredStockJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		MedRepo: repo,
		Alerts:  factory,
	})
	if err != nil {
		t.Fatalf("NewExpiredStockJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if factory.created[enums.AlertTypeExpired] != 2 {
		t.Fatalf("expected 2 expired alerts, got %d", factory.created[enums.AlertTypeExpired])
	}
}

func TestExpiredStockJobAggregatesFactoryErrors(t *testing.T) {
	repo := &fakeMedicationRepo{expiring: []models.Medication{
		{ID: uuid.New(), ExpiryDate: ptrTime(time.Now())},
	}}
	factory := newFakeAlertFactory()
	factory.err = errors.New("boom")
	job, err := NewExpiredStockJob(ExpiredStockJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		MedRepo: repo,
		Alerts:  factory,
	})
	if err != nil {
		t.Fatalf("NewExpiredStockJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected aggregated error")
	}
}

func TestLowStockJobSplitsCriticalAndLow(t *testing.T) {
	repo := &fakeMedicationRepo{below: []models.Medication{
		{ID: uuid.New(), Quantity: 0, MinStock: 10},
		{ID: uuid.New(), Quantity: 3, MinStock: 10},
		{ID: uuid.New(), Quantity: 10, MinStock: 10},
	}}
	factory := newFakeAlertFactory()
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		MedRepo: repo,
		Alerts:  factory,
	})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if factory.created[enums.AlertTypeCritical] != 1 {
		t.Fatalf("expected 1 critical alert, got %d", factory.created[enums.AlertTypeCritical])
	}
	if factory.created[enums.AlertTypeLowStock] != 2 {
		t.Fatalf("expected 2 low stock alerts, got %d", factory.created[enums.AlertTypeLowStock])
	}
}

func TestLowStockJobPropagatesScanError(t *testing.T) {
	repo := &fakeMedicationRepo{err: errors.New("db down")}
	job, err := NewLowStockJob(LowStockJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		MedRepo: repo,
		Alerts:  newFakeAlertFactory(),
	})
	if err != nil {
		t.Fatalf("NewLowStockJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
