package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/central-erp/central-erp/internal/masterdata/products"
	"github.com/central-erp/central-erp/internal/shared"
)

const lowStockCacheKey = "central:stock:low"

type Service struct {
	logger *slog.Logger
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewService(logger *slog.Logger, repo Repository, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{logger: logger, repo: repo, cache: cache, ttl: ttl}
}

// CreateAdjustment records a manual correction in the ledger and moves the
// product balance by the same signed quantity, atomically. A negative
// adjustment that would take the balance below zero is rejected and leaves
// no ledger entry behind.
func (s *Service) CreateAdjustment(ctx context.Context, req AdjustmentRequest) (Movement, products.Product, error) {
	if req.Qty == 0 {
		return Movement{}, products.Product{}, fmt.Errorf("%w: adjustment qty must be non-zero", shared.ErrValidation)
	}
	reason := req.Reason
	if reason == "" {
		reason = ReasonManualAdjustment
	}
	if !reason.Valid() {
		return Movement{}, products.Product{}, fmt.Errorf("%w: unknown reason %q", shared.ErrValidation, reason)
	}

	var movement Movement
	var snapshot products.Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, req.ProductID)
		if err != nil {
			if isNoRows(err) {
				return shared.NewNotFound("product", req.ProductID.String())
			}
			return err
		}
		if req.Qty < 0 && product.CurrentQty < -req.Qty {
			return &shared.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.CurrentQty,
				Requested:   -req.Qty,
			}
		}

		movement = Movement{
			ID:          uuid.New(),
			ProductID:   product.ID,
			Qty:         req.Qty,
			Reason:      reason,
			ReferenceID: req.ReferenceID,
			Note:        req.Note,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		if err := tx.ApplyProductDelta(ctx, product.ID, req.Qty); err != nil {
			return err
		}
		snapshot = product
		snapshot.CurrentQty += req.Qty
		return nil
	})
	if err != nil {
		return Movement{}, products.Product{}, err
	}

	s.invalidateLowStock(ctx)
	return movement, snapshot, nil
}

func (s *Service) ListMovements(ctx context.Context, filters MovementFilters) ([]Movement, int, error) {
	if filters.Reason != "" && !filters.Reason.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown reason %q", shared.ErrValidation, filters.Reason)
	}
	return s.repo.ListMovements(ctx, filters)
}

func (s *Service) GetMovement(ctx context.Context, id uuid.UUID) (Movement, error) {
	m, err := s.repo.GetMovement(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Movement{}, shared.NewNotFound("stock movement", id.String())
		}
		return Movement{}, fmt.Errorf("get stock movement: %w", err)
	}
	return m, nil
}

// LowStock returns products at or below their minimum quantity. The report
// is cached briefly and concurrent cold-cache callers share one query.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, lowStockCacheKey).Bytes(); err == nil {
			var items []LowStockItem
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, nil
			}
		}
	}

	v, err, _ := s.group.Do(lowStockCacheKey, func() (any, error) {
		items, err := s.repo.LowStock(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(items); err == nil {
				if err := s.cache.Set(ctx, lowStockCacheKey, raw, s.ttl).Err(); err != nil {
					s.logger.Warn("low stock cache write failed", slog.Any("error", err))
				}
			}
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]LowStockItem), nil
}

func (s *Service) invalidateLowStock(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, lowStockCacheKey).Err(); err != nil {
		s.logger.Warn("low stock cache invalidation failed", slog.Any("error", err))
	}
}
