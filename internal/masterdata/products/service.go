package products

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

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Product{}, shared.NewNotFound("product", id.String())
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	if strings.TrimSpace(req.SKU) == "" || strings.TrimSpace(req.Name) == "" {
		return Product{}, fmt.Errorf("%w: sku and name are required", shared.ErrValidation)
	}
	if req.Price.IsNegative() || req.Cost.IsNegative() {
		return Product{}, fmt.Errorf("%w: price and cost must be >= 0", shared.ErrValidation)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	product := Product{
		ID:         uuid.New(),
		SKU:        req.SKU,
		Name:       req.Name,
		Unit:       req.Unit,
		Price:      req.Price,
		Cost:       req.Cost,
		CurrentQty: req.CurrentQty,
		MinStock:   req.MinStock,
		IsActive:   active,
		CategoryID: req.CategoryID,
		SupplierID: req.SupplierID,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Product{}, &shared.ConflictError{Fields: []string{"sku"}}
		}
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest) (Product, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if req.SKU != nil {
		existing.SKU = *req.SKU
	}
	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Unit != nil {
		existing.Unit = *req.Unit
	}
	if req.Price != nil {
		existing.Price = *req.Price
	}
	if req.Cost != nil {
		existing.Cost = *req.Cost
	}
	if req.MinStock != nil {
		existing.MinStock = *req.MinStock
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.CategoryID != nil {
		existing.CategoryID = req.CategoryID
	}
	if req.SupplierID != nil {
		existing.SupplierID = req.SupplierID
	}
	if existing.Price.IsNegative() || existing.Cost.IsNegative() {
		return Product{}, fmt.Errorf("%w: price and cost must be >= 0", shared.ErrValidation)
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		if isNoRows(err) {
			return Product{}, shared.NewNotFound("product", id.String())
		}
		if _, ok := db.UniqueViolation(err); ok {
			return Product{}, &shared.ConflictError{Fields: []string{"sku"}}
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNoRows(err) {
			return shared.NewNotFound("product", id.String())
		}
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
