package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/central-erp/central-erp/internal/platform/db"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id uuid.UUID) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

var errNoRows = pgx.ErrNoRows

const productColumns = `id, sku, name, unit, price, cost, current_qty, min_stock, is_active, category_id, supplier_id, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		// Accent-insensitive on the name side; SKUs are plain ASCII, so the
		// folded term is enough there.
		argCount++
		where += ` AND (unaccent(name) ILIKE unaccent($` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
		argCount++
		where += ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+Fold(filters.Search)+"%")
	}
	if filters.CategoryID != nil {
		argCount++
		where += ` AND category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CategoryID)
	}
	if filters.SupplierID != nil {
		argCount++
		where += ` AND supplier_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.SupplierID)
	}
	if filters.OnlyActive {
		where += ` AND is_active = TRUE`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY name ASC`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	return result, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// Create persists the product and, when the initial quantity is positive,
// the matching initial-load ledger entry in the same transaction so the
// reconciliation invariant holds from the first row.
func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO products (`+productColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			product.ID, product.SKU, product.Name, product.Unit, product.Price, product.Cost,
			product.CurrentQty, product.MinStock, product.IsActive, product.CategoryID, product.SupplierID,
			product.CreatedAt, product.UpdatedAt)
		if err != nil {
			return err
		}
		if product.CurrentQty > 0 {
			_, err = tx.Exec(ctx, `INSERT INTO stock_movements (id, product_id, qty, reason, created_at)
VALUES ($1,$2,$3,'INITIAL_LOAD',$4)`, uuid.New(), product.ID, product.CurrentQty, now)
		}
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (r *repository) Update(ctx context.Context, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products
SET sku = $1, name = $2, unit = $3, price = $4, cost = $5, min_stock = $6, is_active = $7, category_id = $8, supplier_id = $9, updated_at = NOW()
WHERE id = $10`,
		product.SKU, product.Name, product.Unit, product.Price, product.Cost,
		product.MinStock, product.IsActive, product.CategoryID, product.SupplierID, product.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNoRows
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Unit, &p.Price, &p.Cost, &p.CurrentQty, &p.MinStock,
		&p.IsActive, &p.CategoryID, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
