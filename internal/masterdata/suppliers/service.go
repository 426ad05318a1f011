package suppliers

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

func (s *Service) List(ctx context.Context) ([]Supplier, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Supplier, error) {
	sup, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Supplier{}, shared.NewNotFound("supplier", id.String())
		}
		return Supplier{}, fmt.Errorf("get supplier: %w", err)
	}
	return sup, nil
}

func (s *Service) Create(ctx context.Context, form SupplierForm) (Supplier, error) {
	supplier := Supplier{
		ID:    uuid.New(),
		Name:  form.Name,
		TaxID: form.TaxID,
		Phone: form.Phone,
		Email: form.Email,
	}
	if err := s.repo.Create(ctx, supplier); err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Supplier{}, &shared.ConflictError{Fields: []string{"tax_id"}}
		}
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return s.Get(ctx, supplier.ID)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, form SupplierForm) (Supplier, error) {
	supplier := Supplier{
		ID:    id,
		Name:  form.Name,
		TaxID: form.TaxID,
		Phone: form.Phone,
		Email: form.Email,
	}
	if err := s.repo.Update(ctx, supplier); err != nil {
		if isNoRows(err) {
			return Supplier{}, shared.NewNotFound("supplier", id.String())
		}
		if _, ok := db.UniqueViolation(err); ok {
			return Supplier{}, &shared.ConflictError{Fields: []string{"tax_id"}}
		}
		return Supplier{}, fmt.Errorf("update supplier: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return shared.NewNotFound("supplier", id.String())
		}
		return fmt.Errorf("delete supplier: %w", err)
	}
	return nil
}
