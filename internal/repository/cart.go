package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/cart"
)

const (
	getCartSQL = `SELECT user_id, items, coupon_code, total_amount, total_weight,
		weight_unit, discount_amount, final_amount, updated_at
		FROM carts WHERE user_id = $1`

	saveCartSQL = `INSERT INTO carts (user_id, items, coupon_code, total_amount, total_weight,
		weight_unit, discount_amount, final_amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id) DO UPDATE SET
			items = EXCLUDED.items, coupon_code = EXCLUDED.coupon_code,
			total_amount = EXCLUDED.total_amount, total_weight = EXCLUDED.total_weight,
			weight_unit = EXCLUDED.weight_unit, discount_amount = EXCLUDED.discount_amount,
			final_amount = EXCLUDED.final_amount, updated_at = now()`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Line items
// live in a JSONB column; each user has at most one row.
type CartRepository struct {
	q Querier
}

// NewCartRepository returns a CartRepository using the given querier.
func NewCartRepository(q Querier) *CartRepository {
	return &CartRepository{q: q}
}

// Get returns the user's cart, or cart.ErrNotFound when none exists yet.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.q.Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	return &c, nil
}

// Save upserts the cart keyed by its user.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	_, err = r.q.Exec(ctx, saveCartSQL,
		c.UserID, itemsJSON, c.CouponCode, c.TotalAmount, c.TotalWeight,
		c.WeightUnit, c.DiscountAmount, c.FinalAmount,
	)
	if err != nil {
		return fmt.Errorf("saving cart for %q: %w", c.UserID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
		total     decimal.Decimal
		weight    decimal.Decimal
		discount  decimal.Decimal
		final     decimal.Decimal
	)
	err := row.Scan(
		&c.UserID, &itemsJSON, &c.CouponCode, &total, &weight,
		&c.WeightUnit, &discount, &final, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return c, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	c.TotalAmount = total
	c.TotalWeight = weight
	c.DiscountAmount = discount
	c.FinalAmount = final
	return c, nil
}
