// Package cart implements the per-user shopping cart aggregate.
//
// The aggregate itself is pure: mutations recompute the derived totals and
// return, leaving persistence to the service layer. There is no intermediate
// state in which the totals disagree with the items.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no cart exists for a user yet.
var ErrNotFound = errors.New("cart not found")

// Item is a single line in a cart. Price and weight are snapshots taken when
// the item was added, not live references to the product.
type Item struct {
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Weight     decimal.Decimal `json:"weight"`
	WeightUnit string          `json:"weightUnit"`
}

// Cart is a user's mutable collection of line items plus derived totals.
// Each cart is owned by exactly one user.
type Cart struct {
	UserID         string
	Items          []Item
	CouponCode     string
	TotalAmount    decimal.Decimal
	TotalWeight    decimal.Decimal
	WeightUnit     string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	UpdatedAt      time.Time
}

// New returns an empty cart for the given user.
func New(userID string) *Cart {
	c := &Cart{
		UserID:         userID,
		WeightUnit:     "kg",
		TotalAmount:    decimal.Zero,
		TotalWeight:    decimal.Zero,
		DiscountAmount: decimal.Zero,
		FinalAmount:    decimal.Zero,
	}
	return c
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Find returns the item for the given product, or nil.
func (c *Cart) Find(productID string) *Item {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// Quantity returns the quantity of the given product in the cart, zero when
// absent.
func (c *Cart) Quantity(productID string) int {
	if item := c.Find(productID); item != nil {
		return item.Quantity
	}
	return 0
}

// AddItem merges the given quantity into an existing line for the product or
// appends a new line with the given price/weight snapshot, then recomputes
// totals.
func (c *Cart) AddItem(productID string, quantity int, price, weight decimal.Decimal, weightUnit string) {
	if existing := c.Find(productID); existing != nil {
		existing.Quantity += quantity
	} else {
		c.Items = append(c.Items, Item{
			ProductID:  productID,
			Quantity:   quantity,
			Price:      price,
			Weight:     weight,
			WeightUnit: weightUnit,
		})
	}
	c.recalculate()
}

// UpdateQuantity sets the quantity for the given product and recomputes
// totals. It reports whether the product was present.
func (c *Cart) UpdateQuantity(productID string, quantity int) bool {
	item := c.Find(productID)
	if item == nil {
		return false
	}
	item.Quantity = quantity
	c.recalculate()
	return true
}

// RemoveItem deletes the line for the given product and recomputes totals.
// It reports whether the product was present.
func (c *Cart) RemoveItem(productID string) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.recalculate()
			return true
		}
	}
	return false
}

// Clear empties the cart and resets all totals and the applied coupon.
// Clearing an empty cart is a no-op.
func (c *Cart) Clear() {
	c.Items = nil
	c.CouponCode = ""
	c.DiscountAmount = decimal.Zero
	c.recalculate()
}

// ApplyCoupon records a validated coupon and its discount, then recomputes
// the final amount. The discount is re-validated at checkout; cart state is
// not trusted.
func (c *Cart) ApplyCoupon(code string, discountAmount decimal.Decimal) {
	c.CouponCode = code
	c.DiscountAmount = discountAmount
	c.recalculate()
}

// RemoveCoupon clears the applied coupon and recomputes the final amount.
func (c *Cart) RemoveCoupon() {
	c.CouponCode = ""
	c.DiscountAmount = decimal.Zero
	c.recalculate()
}

// recalculate recomputes every derived field from the items. The discount is
// clamped to the total so that FinalAmount == TotalAmount - DiscountAmount
// and DiscountAmount <= TotalAmount always hold.
func (c *Cart) recalculate() {
	total := decimal.Zero
	weight := decimal.Zero
	for _, item := range c.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(item.Price.Mul(qty))
		weight = weight.Add(item.Weight.Mul(qty))
	}

	c.TotalAmount = total.Round(2)
	c.TotalWeight = weight
	if c.DiscountAmount.GreaterThan(c.TotalAmount) {
		c.DiscountAmount = c.TotalAmount
	}
	c.FinalAmount = c.TotalAmount.Sub(c.DiscountAmount)
	c.UpdatedAt = time.Now()
}

// Repository defines persistence operations for carts.
type Repository interface {
	// Get returns the user's cart, or ErrNotFound when none exists yet.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Save upserts the cart keyed by its user.
	Save(ctx context.Context, c *Cart) error
}
