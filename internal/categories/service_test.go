package categories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

type stubRepo struct {
	categories map[int64]*models.Category
	medCounts  map[int64]int64
	nextID     int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{categories: map[int64]*models.Category{}, medCounts: map[int64]int64{}, nextID: 1}
}

func (s *stubRepo) Create(ctx context.Context, category *models.Category) (*models.Category, error) {
	category.ID = s.nextID
	s.nextID++
	s.categories[category.ID] = category
	return category, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*models.Category, error) {
	category, ok := s.categories[id]
	if !ok {
		return nil, nil
	}
	copied := *category
	return &copied, nil
}

func (s *stubRepo) FindByName(ctx context.Context, name string) (*models.Category, error) {
	for _, category := range s.categories {
		if category.Name == name {
			copied := *category
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) FindAll(ctx context.Context, page pagination.Params) ([]models.Category, error) {
	var rows []models.Category
	for _, category := range s.categories {
		rows = append(rows, *category)
	}
	return rows, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	category, ok := s.categories[id]
	if !ok {
		return nil
	}
	if name, ok := updates["name"].(string); ok {
		category.Name = name
	}
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error {
	delete(s.categories, id)
	return nil
}

func (s *stubRepo) CountMedications(ctx context.Context, id int64) (int64, error) {
	return s.medCounts[id], nil
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Name: "Antibiotics"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Name: "Antibiotics"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCreateRejectsShortName(t *testing.T) {
	svc, err := NewService(newStubRepo())
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Name: " A "})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDeleteBlockedWhileReferenced(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	category, err := svc.Create(context.Background(), CreateInput{Name: "Analgesics"})
	require.NoError(t, err)
	repo.medCounts[category.ID] = 3

	err = svc.Delete(context.Background(), category.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	repo.medCounts[category.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), category.ID))
}

func TestUpdateRenameChecksUniqueness(t *testing.T) {
	repo := newStubRepo()
	svc, err := NewService(repo)
	require.NoError(t, err)

	first, err := svc.Create(context.Background(), CreateInput{Name: "Antiseptics"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{Name: "Vitamins"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), first.ID, UpdateInput{Name: strPtr("Vitamins")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	renamed, err := svc.Update(context.Background(), first.ID, UpdateInput{Name: strPtr("Disinfectants")})
	require.NoError(t, err)
	assert.Equal(t, "Disinfectants", renamed.Name)
}

func strPtr(s string) *string { return &s }
