package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/central-erp/central-erp/internal/masterdata/products"
	"github.com/central-erp/central-erp/internal/platform/db"
	"github.com/central-erp/central-erp/internal/shared"
	"github.com/central-erp/central-erp/internal/stock"
)

// JobEnqueuer schedules background work after a committed order. The worker
// side owns the task definitions; the service only signals.
type JobEnqueuer interface {
	EnqueueLowStockScan(ctx context.Context) error
}

type Service struct {
	logger   *slog.Logger
	repo     Repository
	audit    *shared.AuditLogger
	enqueuer JobEnqueuer
}

func NewService(logger *slog.Logger, repo Repository, audit *shared.AuditLogger, enqueuer JobEnqueuer) *Service {
	return &Service{logger: logger, repo: repo, audit: audit, enqueuer: enqueuer}
}

// Create opens an order: it snapshots unit prices, decrements product
// balances and appends one ORDER_FULFILLED ledger entry per item, all in one
// transaction. Auto-assigned numbers retry on a concurrent take; an
// explicitly requested number that is already used is a conflict.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if !req.PaymentMethod.Valid() {
		return Order{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, req.PaymentMethod)
	}
	for _, item := range req.Items {
		if item.Price != nil {
			if item.Price.IsNegative() {
				return Order{}, fmt.Errorf("%w: item price must not be negative", shared.ErrValidation)
			}
			if item.Price.Exponent() < -2 {
				return Order{}, fmt.Errorf("%w: item price has more than two decimal places", shared.ErrValidation)
			}
		}
	}

	// Total units needed per product across all item lines.
	required := make(map[uuid.UUID]int64)
	var productIDs []uuid.UUID
	for _, item := range req.Items {
		if _, seen := required[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}
		required[item.ProductID] += item.Qty
	}

	autoNumber := req.Number == 0
	var orderID uuid.UUID
	var lowStockHit bool
	var lastErr error

	for attempt := 0; attempt < db.DefaultTxAttempts; attempt++ {
		orderID = uuid.New()
		lowStockHit = false
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			exists, err := tx.CustomerExists(ctx, req.CustomerID)
			if err != nil {
				return err
			}
			if !exists {
				return shared.NewNotFound("customer", req.CustomerID.String())
			}

			locked, err := tx.GetProductsForUpdate(ctx, productIDs)
			if err != nil {
				return err
			}
			byID := make(map[uuid.UUID]products.Product, len(locked))
			for _, p := range locked {
				byID[p.ID] = p
			}
			for _, id := range productIDs {
				p, ok := byID[id]
				if !ok {
					return shared.NewNotFound("product", id.String())
				}
				if p.CurrentQty < required[id] {
					return &shared.InsufficientStockError{
						ProductID:   p.ID,
						ProductName: p.Name,
						Available:   p.CurrentQty,
						Requested:   required[id],
					}
				}
			}

			number := req.Number
			if autoNumber {
				number, err = tx.NextNumber(ctx)
				if err != nil {
					return err
				}
			}

			order := Order{
				ID:            orderID,
				Number:        number,
				CustomerID:    req.CustomerID,
				Status:        StatusOpen,
				PaymentMethod: req.PaymentMethod,
				DueDate:       req.DueDate,
			}
			items := make([]OrderItem, 0, len(req.Items))
			total := decimal.Zero
			for _, line := range req.Items {
				price := byID[line.ProductID].Price
				if line.Price != nil {
					price = *line.Price
				}
				lineTotal := price.Mul(decimal.NewFromInt(line.Qty))
				items = append(items, OrderItem{
					ID:        uuid.New(),
					OrderID:   order.ID,
					ProductID: line.ProductID,
					Qty:       line.Qty,
					Price:     price,
					Total:     lineTotal,
				})
				total = total.Add(lineTotal)
			}
			order.Total = total

			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}
			if err := tx.InsertItems(ctx, items); err != nil {
				return err
			}

			ref := order.ID
			for _, item := range items {
				if err := tx.InsertMovement(ctx, stock.Movement{
					ID:          uuid.New(),
					ProductID:   item.ProductID,
					Qty:         -item.Qty,
					Reason:      stock.ReasonOrderFulfilled,
					ReferenceID: &ref,
				}); err != nil {
					return err
				}
			}
			for _, id := range productIDs {
				if err := tx.ApplyProductDelta(ctx, id, -required[id]); err != nil {
					return err
				}
				p := byID[id]
				if p.CurrentQty-required[id] <= p.MinStock {
					lowStockHit = true
				}
			}
			return nil
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if constraint, ok := db.UniqueViolation(err); ok && constraint == "orders_number_key" {
			if !autoNumber {
				return Order{}, &shared.ConflictError{Fields: []string{"number"}}
			}
			continue
		}
		if db.IsRetryable(err) {
			continue
		}
		return Order{}, err
	}
	if lastErr != nil {
		return Order{}, fmt.Errorf("orders: create retries exhausted: %w", lastErr)
	}

	created, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return Order{}, fmt.Errorf("orders: reload created order: %w", err)
	}

	s.recordAudit(ctx, "order.created", created)
	if lowStockHit && s.enqueuer != nil {
		if err := s.enqueuer.EnqueueLowStockScan(ctx); err != nil {
			s.logger.Warn("low stock scan enqueue failed", slog.Any("error", err))
		}
	}
	return created, nil
}

// Remove cancels an order: every item quantity returns to its product via an
// ORDER_CANCELLED ledger entry, then the item rows and the order row are
// deleted, all in one transaction. The ledger entries and the audit record
// keep the trace of the removed order.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	var removed Order
	var lastErr error
	for attempt := 0; attempt < db.DefaultTxAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			order, err := tx.GetOrderForUpdate(ctx, id)
			if err != nil {
				if isNoRows(err) {
					return shared.NewNotFound("order", id.String())
				}
				return err
			}

			var productIDs []uuid.UUID
			seen := make(map[uuid.UUID]bool)
			for _, item := range order.Items {
				if !seen[item.ProductID] {
					seen[item.ProductID] = true
					productIDs = append(productIDs, item.ProductID)
				}
			}
			if len(productIDs) > 0 {
				if _, err := tx.GetProductsForUpdate(ctx, productIDs); err != nil {
					return err
				}
			}

			ref := order.ID
			for _, item := range order.Items {
				if err := tx.InsertMovement(ctx, stock.Movement{
					ID:          uuid.New(),
					ProductID:   item.ProductID,
					Qty:         item.Qty,
					Reason:      stock.ReasonOrderCancelled,
					ReferenceID: &ref,
				}); err != nil {
					return err
				}
				if err := tx.ApplyProductDelta(ctx, item.ProductID, item.Qty); err != nil {
					return err
				}
			}

			if err := tx.DeleteItems(ctx, order.ID); err != nil {
				return err
			}
			if err := tx.DeleteOrder(ctx, order.ID); err != nil {
				return err
			}
			removed = order
			return nil
		})
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		if db.IsRetryable(err) {
			continue
		}
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("orders: remove retries exhausted: %w", lastErr)
	}

	s.recordAudit(ctx, "order.cancelled", removed)
	return nil
}

// Update patches the order header. Items and totals are immutable once the
// order exists.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateOrderRequest) (Order, error) {
	if req.Status != nil && !req.Status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, *req.Status)
	}
	if req.PaymentMethod != nil && !req.PaymentMethod.Valid() {
		return Order{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, *req.PaymentMethod)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			if isNoRows(err) {
				return shared.NewNotFound("order", id.String())
			}
			return err
		}
		if req.Status != nil {
			order.Status = *req.Status
		}
		if req.PaymentMethod != nil {
			order.PaymentMethod = *req.PaymentMethod
		}
		if req.DueDate != nil {
			order.DueDate = req.DueDate
		}
		return tx.UpdateHeader(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return Order{}, shared.NewNotFound("order", id.String())
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filters.Status)
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) recordAudit(ctx context.Context, action string, order Order) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    "api",
		Action:   action,
		Entity:   "order",
		EntityID: order.ID.String(),
		Meta: map[string]any{
			"number": order.Number,
			"total":  order.Total.String(),
		},
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
