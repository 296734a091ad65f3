package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/product"
)

const (
	productColumns = `id, name, price, stock, weight, weight_unit, category, is_available, is_seasonal`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR is_available)
		ORDER BY id OFFSET $3 LIMIT $4`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	adjustStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0`

	upsertProductSQL = `INSERT INTO products (id, name, price, stock, weight, weight_unit, category, is_available, is_seasonal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock,
			weight = EXCLUDED.weight, weight_unit = EXCLUDED.weight_unit,
			category = EXCLUDED.category, is_available = EXCLUDED.is_available,
			is_seasonal = EXCLUDED.is_seasonal, updated_at = now()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	q Querier
}

// NewProductRepository returns a ProductRepository using the given querier.
func NewProductRepository(q Querier) *ProductRepository {
	return &ProductRepository{q: q}
}

// List returns catalog products matching the filter, ordered by ID.
func (r *ProductRepository) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	// LIMIT NULL means no limit.
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := r.q.Query(ctx, listProductsSQL, filter.Category, filter.OnlyAvailable, filter.Skip, limit)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.q.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.q.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// AdjustStock changes a product's stock by delta. The WHERE clause makes
// decrements conditional, so concurrent checkouts cannot oversell.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	tag, err := r.q.Exec(ctx, adjustStockSQL, id, delta)
	if err != nil {
		return fmt.Errorf("adjusting stock for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the product is gone or the decrement would go negative.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return product.ErrInsufficientStock
	}
	return nil
}

// Upsert inserts or replaces a catalog product, for seeding.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	_, err := r.q.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.Stock, p.Weight, p.WeightUnit,
		p.Category, p.IsAvailable, p.IsSeasonal,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		price  decimal.Decimal
		weight decimal.Decimal
		stock  int32
	)
	err := row.Scan(
		&p.ID, &p.Name, &price, &stock, &weight, &p.WeightUnit,
		&p.Category, &p.IsAvailable, &p.IsSeasonal,
	)
	p.Price = price
	p.Weight = weight
	p.Stock = int(stock)
	return p, err
}
