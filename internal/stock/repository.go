package stock

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
)

// TxRepository exposes the ledger writes that must happen inside one
// transaction. The product row is locked before any balance change so that
// concurrent writers serialize on it.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID uuid.UUID) (products.Product, error)
	ApplyProductDelta(ctx context.Context, productID uuid.UUID, delta int64) error
	InsertMovement(ctx context.Context, movement Movement) error
}

type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	ListMovements(ctx context.Context, filters MovementFilters) ([]Movement, int, error)
	GetMovement(ctx context.Context, id uuid.UUID) (Movement, error)
	LowStock(ctx context.Context) ([]LowStockItem, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTxRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const movementColumns = `id, product_id, qty, reason, reference_id, note, created_at`

func (r *repository) ListMovements(ctx context.Context, filters MovementFilters) ([]Movement, int, error) {
	var conds []string
	var args []any
	if filters.ProductID != nil {
		args = append(args, *filters.ProductID)
		conds = append(conds, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filters.Reason != "" {
		args = append(args, filters.Reason)
		conds = append(conds, fmt.Sprintf("reason = $%d", len(args)))
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
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements`+where, args...).Scan(&total); err != nil {
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
	query := fmt.Sprintf(`SELECT `+movementColumns+` FROM stock_movements`+where+
		` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, m)
	}
	return result, total, rows.Err()
}

func (r *repository) GetMovement(ctx context.Context, id uuid.UUID) (Movement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id)
	return scanMovement(row)
}

func (r *repository) LowStock(ctx context.Context) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sku, name, current_qty, min_stock
		FROM products
		WHERE is_active AND current_qty <= min_stock
		ORDER BY current_qty - min_stock ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LowStockItem
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.CurrentQty, &item.MinStock); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) GetProductForUpdate(ctx context.Context, productID uuid.UUID) (products.Product, error) {
	var p products.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, sku, name, unit, price, cost, current_qty, min_stock, is_active, category_id, supplier_id, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE`, productID).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.Price, &p.Cost, &p.CurrentQty, &p.MinStock, &p.IsActive,
			&p.CategoryID, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
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

func (t *txRepository) InsertMovement(ctx context.Context, movement Movement) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, qty, reason, reference_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		movement.ID, movement.ProductID, movement.Qty, movement.Reason, movement.ReferenceID, movement.Note)
	return err
}

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var note *string
	err := row.Scan(&m.ID, &m.ProductID, &m.Qty, &m.Reason, &m.ReferenceID, &note, &m.CreatedAt)
	if note != nil {
		m.Note = *note
	}
	return m, err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
