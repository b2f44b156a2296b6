package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/pharmexa/pharmastock-backend/pkg/db/models"
	pkgerrors "github.com/pharmexa/pharmastock-backend/pkg/errors"
	"github.com/pharmexa/pharmastock-backend/pkg/pagination"
)

const (
	minNameLen = 2
	maxNameLen = 100
)

// CreateInput is the payload for adding a category.
type CreateInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// UpdateInput carries the partial-update fields. Nil means untouched.
type UpdateInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// Service exposes category CRUD.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Category, error)
	FindByID(ctx context.Context, id int64) (*models.Category, error)
	List(ctx context.Context, page pagination.Params) ([]models.Category, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*models.Category, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	repo Repository
}

// NewService builds a category service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("categories repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Category, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category name")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a category with this name already exists")
	}

	category, err := s.repo.Create(ctx, &models.Category{Name: name, Description: input.Description})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert category")
	}
	return category, nil
}

func (s *service) FindByID(ctx context.Context, id int64) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	if category == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return category, nil
}

func (s *service) List(ctx context.Context, page pagination.Params) ([]models.Category, error) {
	rows, err := s.repo.FindAll(ctx, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, id int64, input UpdateInput) (*models.Category, error) {
	if input.Name == nil && input.Description == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	category, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		existing, err := s.repo.FindByName(ctx, name)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check category name")
		}
		if existing != nil && existing.ID != id {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a category with this name already exists")
		}
		updates["name"] = name
		category.Name = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
		category.Description = input.Description
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
	}
	return category, nil
}

// Delete refuses to remove a category that still has medications attached.
func (s *service) Delete(ctx context.Context, id int64) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountMedications(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category medications")
	}
	if count > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("category still referenced by %d medications", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func validateName(name string) error {
	if len(name) < minNameLen || len(name) > maxNameLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"name": fmt.Sprintf("must be between %d and %d characters", minNameLen, maxNameLen)})
	}
	return nil
}
