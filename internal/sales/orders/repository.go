package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/central-erp/central-erp/internal/masterdata/products"
	"github.com/central-erp/central-erp/internal/platform/db"
	"github.com/central-erp/central-erp/internal/stock"
)

// TxRepository bundles the writes of order fulfillment and cancellation.
// Every implementation must lock product rows in GetProductsForUpdate before
// any balance change so concurrent orders over the same products serialize.
type TxRepository interface {
	CustomerExists(ctx context.Context, id uuid.UUID) (bool, error)
	GetProductsForUpdate(ctx context.Context, ids []uuid.UUID) ([]products.Product, error)
	NextNumber(ctx context.Context) (int64, error)
	InsertOrder(ctx context.Context, order Order) error
	InsertItems(ctx context.Context, items []OrderItem) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	UpdateHeader(ctx context.Context, order Order) error
	DeleteItems(ctx context.Context, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	ApplyProductDelta(ctx context.Context, productID uuid.UUID, delta int64) error
	InsertMovement(ctx context.Context, movement stock.Movement) error
}

type Repository interface {
	// WithTx runs fn in one transaction without retrying; Create drives its
	// own retry loop because number conflicts need fresh numbers per attempt.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	List(ctx context.Context, filters ListFilters) ([]Order, int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, number, customer_id, status, payment_method, due_date, total, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.Items, err = loadItems(ctx, r.pool, id)
	return order, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	var conds []string
	var args []any
	if filters.CustomerID != nil {
		args = append(args, *filters.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.From != nil {
		args = append(args, *filters.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filters.To != nil {
		args = append(args, *filters.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit < 1 {
		limit = 20
	}
	page := filters.Page
	if page < 1 {
		page = 1
	}
	query := fmt.Sprintf(`SELECT `+orderColumns+` FROM orders`+where+
		` ORDER BY number DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, order)
	}
	return result, total, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) CustomerExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// GetProductsForUpdate locks product rows in ascending id order. The stable
// lock order keeps two orders touching the same products from deadlocking.
func (t *txRepository) GetProductsForUpdate(ctx context.Context, ids []uuid.UUID) ([]products.Product, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, sku, name, unit, price, cost, current_qty, min_stock, is_active, category_id, supplier_id, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id ASC
		FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []products.Product
	for rows.Next() {
		var p products.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.Price, &p.Cost, &p.CurrentQty, &p.MinStock,
			&p.IsActive, &p.CategoryID, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (t *txRepository) NextNumber(ctx context.Context) (int64, error) {
	var next int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) + 1 FROM orders`).Scan(&next)
	return next, err
}

func (t *txRepository) InsertOrder(ctx context.Context, order Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, number, customer_id, status, payment_method, due_date, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())`,
		order.ID, order.Number, order.CustomerID, order.Status, order.PaymentMethod, order.DueDate, order.Total)
	return err
}

func (t *txRepository) InsertItems(ctx context.Context, items []OrderItem) error {
	for _, item := range items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, qty, price, total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.OrderID, item.ProductID, item.Qty, item.Price, item.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.Items, err = loadItems(ctx, t.tx, id)
	return order, err
}

func (t *txRepository) UpdateHeader(ctx context.Context, order Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, payment_method = $2, due_date = $3, updated_at = NOW()
		WHERE id = $4`,
		order.Status, order.PaymentMethod, order.DueDate, order.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *txRepository) DeleteItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

func (t *txRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *txRepository) ApplyProductDelta(ctx context.Context, productID uuid.UUID, delta int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET current_qty = current_qty + $1, updated_at = NOW()
		WHERE id = $2`, delta, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (t *txRepository) InsertMovement(ctx context.Context, movement stock.Movement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, qty, reason, reference_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		movement.ID, movement.ProductID, movement.Qty, movement.Reason, movement.ReferenceID, movement.Note)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, qty, price, total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Qty, &item.Price, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.PaymentMethod, &o.DueDate, &o.Total,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
