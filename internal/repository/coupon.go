package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, name, description, discount_type, value,
		min_order_amount, max_discount, valid_from, valid_until,
		usage_limit, used_count, categories, products, active
		FROM coupons WHERE UPPER(code) = UPPER($1) AND active`

	upsertCouponSQL = `INSERT INTO coupons (code, name, description, discount_type, value,
		min_order_amount, max_discount, valid_from, valid_until,
		usage_limit, used_count, categories, products, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			min_order_amount = EXCLUDED.min_order_amount, max_discount = EXCLUDED.max_discount,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			usage_limit = EXCLUDED.usage_limit, categories = EXCLUDED.categories,
			products = EXCLUDED.products, active = EXCLUDED.active`

	incrementCouponUsesSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1) AND active
		AND (usage_limit IS NULL OR used_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	q Querier
}

// NewCouponRepository returns a CouponRepository using the given querier.
func NewCouponRepository(q Querier) *CouponRepository {
	return &CouponRepository{q: q}
}

// FindByCode looks up an active coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching active coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.q.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Upsert inserts or replaces a coupon rule keyed by code. The usage counter
// of an existing coupon is preserved.
func (r *CouponRepository) Upsert(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.q.Exec(ctx, upsertCouponSQL,
		rule.Code, rule.Name, rule.Description, string(rule.Type), rule.Value,
		rule.MinOrderAmount, rule.MaxDiscount, rule.ValidFrom, rule.ValidUntil,
		rule.UsageLimit, rule.UsedCount, rule.Categories, rule.Products, rule.Active,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", rule.Code, err)
	}
	return nil
}

// IncrementUses bumps the usage counter. The WHERE clause enforces the usage
// limit atomically, so concurrent checkouts cannot exceed it.
func (r *CouponRepository) IncrementUses(ctx context.Context, code string) error {
	tag, err := r.q.Exec(ctx, incrementCouponUsesSQL, code)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindByCode(ctx, code); err != nil {
			return err
		}
		return coupon.ErrUsageLimitReached
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		value        decimal.Decimal
		minOrder     decimal.Decimal
		maxDiscount  *decimal.Decimal
		usageLimit   *int32
		usedCount    int32
	)
	err := row.Scan(
		&rule.Code, &rule.Name, &rule.Description, &discountType, &value,
		&minOrder, &maxDiscount, &rule.ValidFrom, &rule.ValidUntil,
		&usageLimit, &usedCount, &rule.Categories, &rule.Products, &rule.Active,
	)
	rule.Type = coupon.Type(discountType)
	rule.Value = value
	rule.MinOrderAmount = minOrder
	rule.MaxDiscount = maxDiscount
	rule.UsedCount = int(usedCount)
	if usageLimit != nil {
		limit := int(*usageLimit)
		rule.UsageLimit = &limit
	}
	return rule, err
}
