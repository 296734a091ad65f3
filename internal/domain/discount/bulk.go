// Package discount resolves quantity-based bulk discounts for products and
// categories.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidTiers is returned when a promotion's tiers are not strictly
// ascending by minimum quantity.
var ErrInvalidTiers = errors.New("tiers must be strictly ascending by minimum quantity")

// ErrNotFound is returned when no bulk discount exists for the given scope.
var ErrNotFound = errors.New("bulk discount not found")

// Tier is a single quantity threshold within a bulk discount.
type Tier struct {
	MinQuantity        int              `json:"minQuantity"`
	DiscountPercentage decimal.Decimal  `json:"discountPercentage"`
	MaxDiscount        *decimal.Decimal `json:"maxDiscount,omitempty"`
}

// BulkDiscount is a promotion scoped to a product or a category, with
// ascending quantity tiers.
type BulkDiscount struct {
	ID          string
	ProductID   string
	Category    string
	Tiers       []Tier
	Active      bool
	StartDate   time.Time
	EndDate     *time.Time
	Description string
}

// Repository provides lookup of bulk discounts by scope.
type Repository interface {
	// FindForProduct returns active promotions matching the product ID or its
	// category, most specific first.
	FindForProduct(ctx context.Context, productID, category string) ([]BulkDiscount, error)
	// Create persists a new promotion.
	Create(ctx context.Context, bd *BulkDiscount) error
}

// ValidateTiers checks the strictly-ascending invariant on tier quantities.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return errors.New("at least one discount tier is required")
	}
	for i := 1; i < len(tiers); i++ {
		if tiers[i].MinQuantity <= tiers[i-1].MinQuantity {
			return ErrInvalidTiers
		}
	}
	return nil
}

// currentlyActive reports whether the promotion applies at the given time.
func (bd *BulkDiscount) currentlyActive(now time.Time) bool {
	if !bd.Active || now.Before(bd.StartDate) {
		return false
	}
	return bd.EndDate == nil || !now.After(*bd.EndDate)
}

// TierFor selects the tier with the largest MinQuantity that is at most the
// requested quantity. It returns the zero Tier when no tier qualifies or the
// promotion is not currently active.
func (bd *BulkDiscount) TierFor(quantity int, now time.Time) Tier {
	if !bd.currentlyActive(now) {
		return Tier{}
	}
	var best Tier
	for _, t := range bd.Tiers {
		if quantity >= t.MinQuantity && t.MinQuantity >= best.MinQuantity {
			best = t
		}
	}
	return best
}

// AmountFor computes the discount amount a tier grants on a line of the given
// quantity and unit price, applying the tier's cap when set.
func (t Tier) AmountFor(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	if t.DiscountPercentage.IsZero() {
		return decimal.Zero
	}
	line := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	amount := line.Mul(t.DiscountPercentage).Div(decimal.NewFromInt(100))
	if t.MaxDiscount != nil && amount.GreaterThan(*t.MaxDiscount) {
		amount = *t.MaxDiscount
	}
	return amount.Round(2)
}

// Resolver finds the best applicable bulk discount for a product line.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Resolution describes the outcome of a bulk-discount lookup.
type Resolution struct {
	Promotion *BulkDiscount
	Tier      Tier
	Amount    decimal.Decimal
}

// Resolve returns the largest discount any active promotion grants for the
// given line. A zero-amount Resolution (nil Promotion) means no discount
// applies; that is not an error.
func (r *Resolver) Resolve(
	ctx context.Context,
	productID, category string,
	quantity int,
	unitPrice decimal.Decimal,
) (Resolution, error) {
	promos, err := r.repo.FindForProduct(ctx, productID, category)
	if err != nil {
		return Resolution{}, errors.Wrap(err, "find bulk discounts")
	}

	now := r.now()
	best := Resolution{Amount: decimal.Zero}
	for i := range promos {
		tier := promos[i].TierFor(quantity, now)
		amount := tier.AmountFor(quantity, unitPrice)
		if amount.GreaterThan(best.Amount) {
			best = Resolution{Promotion: &promos[i], Tier: tier, Amount: amount}
		}
	}
	return best, nil
}
