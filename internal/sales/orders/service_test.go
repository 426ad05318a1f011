package orders

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/central-erp/central-erp/internal/masterdata/products"
	"github.com/central-erp/central-erp/internal/shared"
	"github.com/central-erp/central-erp/internal/stock"
)

// memRepo is an in-memory Repository with transactional semantics: each
// WithTx call stages a copy of the state and commits it only when the
// callback succeeds, so a mid-transaction failure leaves nothing behind.
type memRepo struct {
	mu              sync.Mutex
	customers       map[uuid.UUID]bool
	products        map[uuid.UUID]products.Product
	orders          map[uuid.UUID]Order
	items           map[uuid.UUID][]OrderItem
	movements       []stock.Movement
	insertOrderErrs []error
}

func newMemRepo() *memRepo {
	return &memRepo{
		customers: make(map[uuid.UUID]bool),
		products:  make(map[uuid.UUID]products.Product),
		orders:    make(map[uuid.UUID]Order),
		items:     make(map[uuid.UUID][]OrderItem),
	}
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := &memTx{repo: r,
		products:  make(map[uuid.UUID]products.Product, len(r.products)),
		orders:    make(map[uuid.UUID]Order, len(r.orders)),
		items:     make(map[uuid.UUID][]OrderItem, len(r.items)),
		movements: append([]stock.Movement(nil), r.movements...),
	}
	for id, p := range r.products {
		staged.products[id] = p
	}
	for id, o := range r.orders {
		staged.orders[id] = o
	}
	for id, list := range r.items {
		staged.items[id] = append([]OrderItem(nil), list...)
	}

	if err := fn(ctx, staged); err != nil {
		return err
	}
	r.products = staged.products
	r.orders = staged.orders
	r.items = staged.items
	r.movements = staged.movements
	return nil
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	order.Items = append([]OrderItem(nil), r.items[id]...)
	return order, nil
}

func (r *memRepo) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.orders {
		if filters.CustomerID != nil && o.CustomerID != *filters.CustomerID {
			continue
		}
		if filters.Status != "" && o.Status != filters.Status {
			continue
		}
		if filters.From != nil && o.CreatedAt.Before(*filters.From) {
			continue
		}
		if filters.To != nil && o.CreatedAt.After(*filters.To) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, len(out), nil
}

type memTx struct {
	repo      *memRepo
	products  map[uuid.UUID]products.Product
	orders    map[uuid.UUID]Order
	items     map[uuid.UUID][]OrderItem
	movements []stock.Movement
}

func (t *memTx) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return t.repo.customers[id], nil
}

func (t *memTx) GetProductsForUpdate(ctx context.Context, ids []uuid.UUID) ([]products.Product, error) {
	var out []products.Product
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (t *memTx) NextNumber(ctx context.Context) (int64, error) {
	var max int64
	for _, o := range t.orders {
		if o.Number > max {
			max = o.Number
		}
	}
	return max + 1, nil
}

func (t *memTx) InsertOrder(ctx context.Context, order Order) error {
	if len(t.repo.insertOrderErrs) > 0 {
		err := t.repo.insertOrderErrs[0]
		t.repo.insertOrderErrs = t.repo.insertOrderErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range t.orders {
		if existing.Number == order.Number {
			return &pgconn.PgError{Code: "23505", ConstraintName: "orders_number_key"}
		}
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	t.orders[order.ID] = order
	return nil
}

func (t *memTx) InsertItems(ctx context.Context, items []OrderItem) error {
	for _, item := range items {
		t.items[item.OrderID] = append(t.items[item.OrderID], item)
	}
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	order, ok := t.orders[id]
	if !ok {
		return Order{}, pgx.ErrNoRows
	}
	order.Items = append([]OrderItem(nil), t.items[id]...)
	return order, nil
}

func (t *memTx) UpdateHeader(ctx context.Context, order Order) error {
	existing, ok := t.orders[order.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Status = order.Status
	existing.PaymentMethod = order.PaymentMethod
	existing.DueDate = order.DueDate
	t.orders[order.ID] = existing
	return nil
}

func (t *memTx) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	delete(t.items, orderID)
	return nil
}

func (t *memTx) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.orders[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(t.orders, id)
	return nil
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

func (t *memTx) InsertMovement(ctx context.Context, movement stock.Movement) error {
	t.movements = append(t.movements, movement)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *memRepo) *Service {
	return NewService(testLogger(), repo, nil, nil)
}

func seedCustomer(repo *memRepo) uuid.UUID {
	id := uuid.New()
	repo.customers[id] = true
	return id
}

func seedProduct(repo *memRepo, price string, qty, minStock int64) products.Product {
	p := products.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + uuid.NewString()[:8],
		Name:       "Produto",
		Unit:       "un",
		Price:      decimal.RequireFromString(price),
		CurrentQty: qty,
		MinStock:   minStock,
		IsActive:   true,
	}
	repo.products[p.ID] = p
	return p
}

func movementsFor(repo *memRepo, productID uuid.UUID) []stock.Movement {
	var out []stock.Movement
	for _, m := range repo.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

func TestCreateOrderTotalsAndSnapshot(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	rice := seedProduct(repo, "24.90", 50, 5)
	beans := seedProduct(repo, "8.75", 30, 5)
	svc := newTestService(repo)

	override := decimal.RequireFromString("8.50")
	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentPix,
		Items: []CreateOrderItem{
			{ProductID: rice.ID, Qty: 2},
			{ProductID: beans.ID, Qty: 4, Price: &override},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, order.Status)
	require.Equal(t, int64(1), order.Number)
	require.Len(t, order.Items, 2)

	// Unit price comes from the product unless the request overrides it.
	require.True(t, order.Items[0].Price.Equal(rice.Price))
	require.True(t, order.Items[1].Price.Equal(override))

	// 2 * 24.90 + 4 * 8.50 = 83.80
	require.True(t, order.Total.Equal(decimal.RequireFromString("83.80")), "total was %s", order.Total)
	require.True(t, order.Items[0].Total.Equal(decimal.RequireFromString("49.80")))
}

func TestCreateOrderMovesStockAndWritesLedger(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 10, 2)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), repo.products[product.ID].CurrentQty)

	moves := movementsFor(repo, product.ID)
	require.Len(t, moves, 1)
	require.Equal(t, int64(-3), moves[0].Qty)
	require.Equal(t, stock.ReasonOrderFulfilled, moves[0].Reason)
	require.NotNil(t, moves[0].ReferenceID)
	require.Equal(t, order.ID, *moves[0].ReferenceID)

	// Ledger reconciliation: movements sum to the balance change.
	var sum int64
	for _, m := range moves {
		sum += m.Qty
	}
	require.Equal(t, repo.products[product.ID].CurrentQty, product.CurrentQty+sum)
}

func TestCreateOrderInsufficientStockLeavesNothing(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 5, 0)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCard,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 6}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var detail *shared.InsufficientStockError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, int64(5), detail.Available)
	require.Equal(t, int64(6), detail.Requested)

	require.Empty(t, repo.orders)
	require.Empty(t, repo.items)
	require.Empty(t, repo.movements)
	require.Equal(t, int64(5), repo.products[product.ID].CurrentQty)
}

func TestCreateOrderAggregatesDuplicateLines(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "5.00", 5, 0)
	svc := newTestService(repo)

	// 3 + 3 over the same product exceeds the 5 available even though each
	// line alone would fit.
	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items: []CreateOrderItem{
			{ProductID: product.ID, Qty: 3},
			{ProductID: product.ID, Qty: 3},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(5), repo.products[product.ID].CurrentQty)
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	repo := newMemRepo()
	product := seedProduct(repo, "10.00", 5, 0)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    uuid.New(),
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: uuid.New(), Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.orders)
}

func TestCreateOrderPriceValidation(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 5, 0)
	svc := newTestService(repo)

	negative := decimal.RequireFromString("-1.00")
	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1, Price: &negative}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	tooPrecise := decimal.RequireFromString("1.999")
	_, err = svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1, Price: &tooPrecise}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.orders)
}

func TestListOrdersDateRange(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	svc := newTestService(repo)

	day := func(d int) time.Time {
		return time.Date(2026, 1, d, 12, 0, 0, 0, time.UTC)
	}
	for d := 1; d <= 3; d++ {
		id := uuid.New()
		repo.orders[id] = Order{
			ID:         id,
			Number:     int64(d),
			CustomerID: customer,
			Status:     StatusOpen,
			CreatedAt:  day(d),
		}
	}

	from := day(2)
	items, total, err := svc.List(context.Background(), ListFilters{From: &from})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	to := day(2)
	items, total, err = svc.List(context.Background(), ListFilters{From: &from, To: &to})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, int64(2), items[0].Number)
}

func TestCreateOrderExplicitNumberConflict(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 50, 0)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		Number:        7,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		Number:        7,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)

	var conflict *shared.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, []string{"number"}, conflict.Fields)

	// Only the first order took stock.
	require.Equal(t, int64(49), repo.products[product.ID].CurrentQty)
}

func TestCreateOrderRetriesAutoNumberConflict(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 50, 0)
	svc := newTestService(repo)

	// Simulate a concurrent writer grabbing the candidate number first.
	repo.insertOrderErrs = []error{&pgconn.PgError{Code: "23505", ConstraintName: "orders_number_key"}}

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), order.Number)
	require.Len(t, repo.orders, 1)
	// The failed attempt left no stock change behind.
	require.Equal(t, int64(48), repo.products[product.ID].CurrentQty)
}

func TestConcurrentOrdersGetUniqueNumbers(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 1000, 0)
	svc := newTestService(repo)

	const n = 20
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.Create(context.Background(), CreateOrderRequest{
				CustomerID:    customer,
				PaymentMethod: PaymentCash,
				Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1}},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]bool)
	for _, o := range repo.orders {
		require.False(t, seen[o.Number], "number %d assigned twice", o.Number)
		seen[o.Number] = true
	}
	require.Len(t, seen, n)
	require.Equal(t, int64(1000-n), repo.products[product.ID].CurrentQty)
}

func TestConcurrentOrdersOverSameStock(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 5, 0)
	svc := newTestService(repo)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, qty := range []int64{3, 4} {
		wg.Add(1)
		go func(qty int64) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), CreateOrderRequest{
				CustomerID:    customer,
				PaymentMethod: PaymentCash,
				Items:         []CreateOrderItem{{ProductID: product.ID, Qty: qty}},
			})
			errs <- err
		}(qty)
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			require.ErrorIs(t, err, shared.ErrInsufficientStock)
			failures++
		}
	}
	// Exactly one of the two can fit in the 5 available units.
	require.Equal(t, 1, failures)
	require.Len(t, repo.orders, 1)

	remaining := repo.products[product.ID].CurrentQty
	require.True(t, remaining == 2 || remaining == 1, "remaining was %d", remaining)
}

func TestRemoveOrderRestoresStock(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 10, 0)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), repo.products[product.ID].CurrentQty)

	require.NoError(t, svc.Remove(context.Background(), order.ID))
	require.Equal(t, int64(10), repo.products[product.ID].CurrentQty)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.items)

	// The ledger keeps both sides of the story.
	moves := movementsFor(repo, product.ID)
	require.Len(t, moves, 2)
	require.Equal(t, stock.ReasonOrderFulfilled, moves[0].Reason)
	require.Equal(t, int64(-3), moves[0].Qty)
	require.Equal(t, stock.ReasonOrderCancelled, moves[1].Reason)
	require.Equal(t, int64(3), moves[1].Qty)
	require.Equal(t, order.ID, *moves[1].ReferenceID)
}

func TestRemoveOrderNotFound(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	err := svc.Remove(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateOrderHeader(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 10, 0)
	svc := newTestService(repo)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 1}},
	})
	require.NoError(t, err)

	paid := StatusPaid
	card := PaymentCard
	updated, err := svc.Update(context.Background(), order.ID, UpdateOrderRequest{
		Status:        &paid,
		PaymentMethod: &card,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, updated.Status)
	require.Equal(t, PaymentCard, updated.PaymentMethod)
	// Items and total are untouched by header updates.
	require.True(t, updated.Total.Equal(order.Total))
	require.Len(t, updated.Items, 1)

	bogus := Status("SHIPPED")
	_, err = svc.Update(context.Background(), order.ID, UpdateOrderRequest{Status: &bogus})
	require.Error(t, err)
}

func TestLowStockEnqueueAfterCreate(t *testing.T) {
	repo := newMemRepo()
	customer := seedCustomer(repo)
	product := seedProduct(repo, "10.00", 6, 5)
	enq := &stubEnqueuer{}
	svc := NewService(testLogger(), repo, nil, enq)

	// 6 - 2 = 4 is below the minimum of 5.
	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID:    customer,
		PaymentMethod: PaymentCash,
		Items:         []CreateOrderItem{{ProductID: product.ID, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, enq.calls)
}

type stubEnqueuer struct {
	calls int
}

func (s *stubEnqueuer) EnqueueLowStockScan(ctx context.Context) error {
	s.calls++
	return nil
}
