package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// assertInvariants checks the derived-total invariants that must hold after
// every mutation.
func assertInvariants(t *testing.T, c *Cart) {
	t.Helper()
	assert.True(t, c.FinalAmount.Equal(c.TotalAmount.Sub(c.DiscountAmount)),
		"final %s != total %s - discount %s", c.FinalAmount, c.TotalAmount, c.DiscountAmount)
	assert.True(t, c.DiscountAmount.LessThanOrEqual(c.TotalAmount),
		"discount %s > total %s", c.DiscountAmount, c.TotalAmount)
}

func TestAddItem_MergesByProduct(t *testing.T) {
	c := New("u1")
	c.AddItem("p1", 2, d("100"), d("0.5"), "kg")
	c.AddItem("p2", 1, d("40"), d("1"), "kg")
	c.AddItem("p1", 3, d("100"), d("0.5"), "kg")

	assert.Len(t, c.Items, 2)
	assert.Equal(t, 5, c.Quantity("p1"))
	assert.True(t, d("540").Equal(c.TotalAmount), "got %s", c.TotalAmount)
	assert.True(t, d("3.5").Equal(c.TotalWeight), "got %s", c.TotalWeight)
	assertInvariants(t, c)
}

func TestUpdateQuantity(t *testing.T) {
	c := New("u1")
	c.AddItem("p1", 2, d("100"), d("0.5"), "kg")

	assert.True(t, c.UpdateQuantity("p1", 4))
	assert.Equal(t, 4, c.Quantity("p1"))
	assert.True(t, d("400").Equal(c.TotalAmount))
	assert.False(t, c.UpdateQuantity("missing", 1))
	assertInvariants(t, c)
}

func TestRemoveItem(t *testing.T) {
	c := New("u1")
	c.AddItem("p1", 2, d("100"), d("0.5"), "kg")
	c.AddItem("p2", 1, d("40"), d("1"), "kg")

	assert.True(t, c.RemoveItem("p1"))
	assert.False(t, c.RemoveItem("p1"))
	assert.Len(t, c.Items, 1)
	assert.True(t, d("40").Equal(c.TotalAmount))
	assertInvariants(t, c)
}

func TestApplyCoupon_ClampedToTotal(t *testing.T) {
	c := New("u1")
	c.AddItem("p1", 1, d("100"), d("0.5"), "kg")

	c.ApplyCoupon("SAVE10", d("10"))
	assert.True(t, d("90").Equal(c.FinalAmount))
	assertInvariants(t, c)

	// Shrinking the cart below the discount clamps the discount.
	c.UpdateQuantity("p1", 1)
	c.ApplyCoupon("HUGE", d("500"))
	assert.True(t, c.DiscountAmount.Equal(c.TotalAmount))
	assert.True(t, c.FinalAmount.IsZero())
	assertInvariants(t, c)
}

func TestRemoveCoupon(t *testing.T) {
	c := New("u1")
	c.AddItem("p1", 1, d("100"), d("0.5"), "kg")
	c.ApplyCoupon("SAVE10", d("10"))

	c.RemoveCoupon()
	assert.Empty(t, c.CouponCode)
	assert.True(t, c.DiscountAmount.IsZero())
	assert.True(t, c.FinalAmount.Equal(c.TotalAmount))
	assertInvariants(t, c)
}

func TestClear(t *testing.T) {
	c := New("u1")
	c.AddItem("p1", 2, d("100"), d("0.5"), "kg")
	c.ApplyCoupon("SAVE10", d("10"))

	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.CouponCode)
	assert.True(t, c.TotalAmount.IsZero())
	assert.True(t, c.FinalAmount.IsZero())
	assertInvariants(t, c)

	// Clearing again is a no-op, not an error.
	c.Clear()
	assert.True(t, c.IsEmpty())
}
