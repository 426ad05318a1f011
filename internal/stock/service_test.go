package stock

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/central-erp/central-erp/internal/masterdata/products"
	"github.com/central-erp/central-erp/internal/shared"
)

type memRepo struct {
	mu           sync.Mutex
	products     map[uuid.UUID]products.Product
	movements    []Movement
	lowStockHits int
}

func newMemRepo() *memRepo {
	return &memRepo{products: make(map[uuid.UUID]products.Product)}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := &memTx{
		products:  make(map[uuid.UUID]products.Product, len(r.products)),
		movements: append([]Movement(nil), r.movements...),
	}
	for id, p := range r.products {
		staged.products[id] = p
	}

	if err := fn(ctx, staged); err != nil {
		return err
	}
	r.products = staged.products
	r.movements = staged.movements
	return nil
}

func (r *memRepo) ListMovements(ctx context.Context, filters MovementFilters) ([]Movement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for _, m := range r.movements {
		if filters.ProductID != nil && m.ProductID != *filters.ProductID {
			continue
		}
		if filters.Reason != "" && m.Reason != filters.Reason {
			continue
		}
		if filters.From != nil && m.CreatedAt.Before(*filters.From) {
			continue
		}
		if filters.To != nil && m.CreatedAt.After(*filters.To) {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (r *memRepo) GetMovement(ctx context.Context, id uuid.UUID) (Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.ID == id {
			return m, nil
		}
	}
	return Movement{}, pgx.ErrNoRows
}

func (r *memRepo) LowStock(ctx context.Context) ([]LowStockItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lowStockHits++
	var out []LowStockItem
	for _, p := range r.products {
		if p.IsActive && p.CurrentQty <= p.MinStock {
			out = append(out, LowStockItem{
				ProductID: p.ID, SKU: p.SKU, Name: p.Name,
				CurrentQty: p.CurrentQty, MinStock: p.MinStock,
			})
		}
	}
	return out, nil
}

type memTx struct {
	products  map[uuid.UUID]products.Product
	movements []Movement
}

func (t *memTx) GetProductForUpdate(ctx context.Context, productID uuid.UUID) (products.Product, error) {
	p, ok := t.products[productID]
	if !ok {
		return products.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (t *memTx) ApplyProductDelta(ctx context.Context, productID uuid.UUID, delta int64) error {
	p, ok := t.products[productID]
	if !ok {
		return pgx.ErrNoRows
	}
	p.CurrentQty += delta
	t.products[productID] = p
	return nil
}

func (t *memTx) InsertMovement(ctx context.Context, movement Movement) error {
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now()
	}
	t.movements = append(t.movements, movement)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedProduct(repo *memRepo, qty, minStock int64) products.Product {
	p := products.Product{
		ID:         uuid.New(),
		SKU:        "SKU-001",
		Name:       "Arroz 5kg",
		Unit:       "un",
		CurrentQty: qty,
		MinStock:   minStock,
		IsActive:   true,
	}
	repo.products[p.ID] = p
	return p
}

func TestCreateAdjustmentMovesBalance(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 10, 2)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	movement, snapshot, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{
		ProductID: product.ID,
		Qty:       -3,
		Note:      "breakage",
	})
	require.NoError(t, err)
	require.Equal(t, int64(-3), movement.Qty)
	require.Equal(t, ReasonManualAdjustment, movement.Reason)
	require.Equal(t, int64(7), snapshot.CurrentQty)
	require.Equal(t, int64(7), repo.products[product.ID].CurrentQty)
	require.Len(t, repo.movements, 1)
}

func TestCreateAdjustmentInsufficientStock(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 5, 2)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	_, _, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{
		ProductID: product.ID,
		Qty:       -6,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var detail *shared.InsufficientStockError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, int64(5), detail.Available)
	require.Equal(t, int64(6), detail.Requested)

	// The rejected adjustment leaves neither a ledger entry nor a balance change.
	require.Equal(t, int64(5), repo.products[product.ID].CurrentQty)
	require.Empty(t, repo.movements)
}

func TestCreateAdjustmentZeroQty(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 5, 2)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	_, _, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{ProductID: product.ID})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.movements)
}

func TestCreateAdjustmentExplicitReasonAndReference(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 0, 2)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	ref := uuid.New()
	movement, _, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{
		ProductID:   product.ID,
		Qty:         25,
		Reason:      ReasonInitialLoad,
		ReferenceID: &ref,
		Note:        "opening balance",
	})
	require.NoError(t, err)
	require.Equal(t, ReasonInitialLoad, movement.Reason)
	require.NotNil(t, movement.ReferenceID)
	require.Equal(t, ref, *movement.ReferenceID)

	stored := repo.movements[0]
	require.Equal(t, ReasonInitialLoad, stored.Reason)
	require.Equal(t, ref, *stored.ReferenceID)
}

func TestCreateAdjustmentRejectsUnknownReason(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 5, 2)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	_, _, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{
		ProductID: product.ID,
		Qty:       1,
		Reason:    Reason("SHRINKAGE"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.movements)
}

func TestListMovementsDateRange(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 0, 0)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	day := func(d int) time.Time {
		return time.Date(2026, 2, d, 9, 0, 0, 0, time.UTC)
	}
	for d := 1; d <= 3; d++ {
		repo.movements = append(repo.movements, Movement{
			ID:        uuid.New(),
			ProductID: product.ID,
			Qty:       int64(d),
			Reason:    ReasonManualAdjustment,
			CreatedAt: day(d),
		})
	}

	from, to := day(2), day(3)
	items, total, err := svc.ListMovements(context.Background(), MovementFilters{From: &from, To: &to})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, items, 2)
	for _, m := range items {
		require.False(t, m.CreatedAt.Before(from))
	}
}

func TestCreateAdjustmentUnknownProduct(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(testLogger(), repo, nil, time.Minute)

	_, _, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{
		ProductID: uuid.New(),
		Qty:       1,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedgerReconciliation(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, 0, 0)
	svc := NewService(testLogger(), repo, nil, time.Minute)

	for _, qty := range []int64{10, -4, 7, -2} {
		_, _, err := svc.CreateAdjustment(context.Background(), AdjustmentRequest{
			ProductID: product.ID,
			Qty:       qty,
		})
		require.NoError(t, err)
	}

	var sum int64
	for _, m := range repo.movements {
		sum += m.Qty
	}
	require.Equal(t, repo.products[product.ID].CurrentQty, sum)
	require.Equal(t, int64(11), sum)
}

func TestLowStockCaching(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := newMemRepo()
	product := seedProduct(repo, 1, 5)
	svc := NewService(testLogger(), repo, client, time.Minute)

	items, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, product.ID, items[0].ProductID)
	require.Equal(t, 1, repo.lowStockHits)

	// Served from cache.
	_, err = svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.lowStockHits)

	// An adjustment drops the cached report.
	_, _, err = svc.CreateAdjustment(context.Background(), AdjustmentRequest{
		ProductID: product.ID,
		Qty:       10,
	})
	require.NoError(t, err)

	items, err = svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Empty(t, items)
	require.Equal(t, 2, repo.lowStockHits)
}

func TestGetMovementNotFound(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(testLogger(), repo, nil, time.Minute)

	_, err := svc.GetMovement(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}
