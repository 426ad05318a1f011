package customers

import (
	"context"
	"fmt"

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

func (s *Service) List(ctx context.Context, search string, page, perPage int) ([]Customer, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	return s.repo.List(ctx, search, perPage, (page-1)*perPage)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Customer{}, shared.NewNotFound("customer", id.String())
		}
		return Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, form CustomerForm) (Customer, error) {
	customer := Customer{
		ID:       uuid.New(),
		Name:     form.Name,
		Email:    form.Email,
		Phone:    form.Phone,
		Document: form.Document,
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Customer{}, &shared.ConflictError{Fields: []string{"document"}}
		}
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return s.Get(ctx, customer.ID)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, form CustomerForm) (Customer, error) {
	customer := Customer{
		ID:       id,
		Name:     form.Name,
		Email:    form.Email,
		Phone:    form.Phone,
		Document: form.Document,
	}
	if err := s.repo.Update(ctx, customer); err != nil {
		if isNoRows(err) {
			return Customer{}, shared.NewNotFound("customer", id.String())
		}
		if _, ok := db.UniqueViolation(err); ok {
			return Customer{}, &shared.ConflictError{Fields: []string{"document"}}
		}
		return Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return shared.NewNotFound("customer", id.String())
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}
