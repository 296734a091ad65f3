package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/freshmart/internal/domain/discount"
)

const (
	findBulkDiscountsSQL = `SELECT id, product_id, category, tiers, active, start_date, end_date, description
		FROM bulk_discounts
		WHERE active AND (product_id = $1 OR ($2 <> '' AND category = $2))
		ORDER BY (product_id = $1) DESC, id`

	createBulkDiscountSQL = `INSERT INTO bulk_discounts (id, product_id, category, tiers, active, start_date, end_date, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id, category = EXCLUDED.category,
			tiers = EXCLUDED.tiers, active = EXCLUDED.active,
			start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date,
			description = EXCLUDED.description`
)

var _ discount.Repository = (*BulkDiscountRepository)(nil)

// BulkDiscountRepository implements discount.Repository backed by PostgreSQL.
// Tiers are stored as a JSONB array.
type BulkDiscountRepository struct {
	q Querier
}

// NewBulkDiscountRepository returns a BulkDiscountRepository using the given
// querier.
func NewBulkDiscountRepository(q Querier) *BulkDiscountRepository {
	return &BulkDiscountRepository{q: q}
}

// FindForProduct returns active promotions matching the product ID or its
// category, product-scoped ones first.
func (r *BulkDiscountRepository) FindForProduct(ctx context.Context, productID, category string) ([]discount.BulkDiscount, error) {
	rows, err := r.q.Query(ctx, findBulkDiscountsSQL, productID, category)
	if err != nil {
		return nil, fmt.Errorf("finding bulk discounts for %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanBulkDiscount)
}

// Create persists a promotion, assigning its ID when empty. Creating with an
// existing ID replaces the promotion, which keeps seeding idempotent.
func (r *BulkDiscountRepository) Create(ctx context.Context, bd *discount.BulkDiscount) error {
	tiersJSON, err := json.Marshal(bd.Tiers)
	if err != nil {
		return fmt.Errorf("marshaling discount tiers: %w", err)
	}

	if bd.ID == "" {
		bd.ID = uuid.NewString()
	}
	_, err = r.q.Exec(ctx, createBulkDiscountSQL,
		bd.ID, bd.ProductID, bd.Category, tiersJSON,
		bd.Active, bd.StartDate, bd.EndDate, bd.Description,
	)
	if err != nil {
		return fmt.Errorf("creating bulk discount %q: %w", bd.ID, err)
	}
	return nil
}

func scanBulkDiscount(row pgx.CollectableRow) (discount.BulkDiscount, error) {
	var (
		bd        discount.BulkDiscount
		tiersJSON []byte
	)
	err := row.Scan(
		&bd.ID, &bd.ProductID, &bd.Category, &tiersJSON,
		&bd.Active, &bd.StartDate, &bd.EndDate, &bd.Description,
	)
	if err != nil {
		return bd, err
	}
	if err := json.Unmarshal(tiersJSON, &bd.Tiers); err != nil {
		return bd, fmt.Errorf("unmarshaling discount tiers: %w", err)
	}
	return bd, nil
}
