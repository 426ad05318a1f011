package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/central-erp/central-erp/internal/platform/db"
	"github.com/central-erp/central-erp/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Category, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Category{}, shared.NewNotFound("category", id.String())
		}
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, form CategoryForm) (Category, error) {
	if strings.TrimSpace(form.Name) == "" {
		return Category{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	category := Category{ID: uuid.New(), Name: form.Name}
	if err := s.repo.Create(ctx, category); err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Category{}, &shared.ConflictError{Fields: []string{"name"}}
		}
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return s.Get(ctx, category.ID)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, form CategoryForm) (Category, error) {
	if strings.TrimSpace(form.Name) == "" {
		return Category{}, fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, Category{ID: id, Name: form.Name}); err != nil {
		if isNoRows(err) {
			return Category{}, shared.NewNotFound("category", id.String())
		}
		if _, ok := db.UniqueViolation(err); ok {
			return Category{}, &shared.ConflictError{Fields: []string{"name"}}
		}
		return Category{}, fmt.Errorf("update category: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return shared.NewNotFound("category", id.String())
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}
