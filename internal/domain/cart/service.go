package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/freshmart/internal/domain/coupon"
	"github.com/xenking/freshmart/internal/domain/product"
)

// Sentinel errors for cart validation.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrItemNotInCart   = errors.New("item not in cart")
)

// OutOfStockError indicates a requested quantity exceeds the available stock.
type OutOfStockError struct {
	ProductID string
	Name      string
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("only %d %s available in stock", e.Available, e.Name)
}

// UnavailableError indicates the product is not currently for sale.
type UnavailableError struct {
	ProductID string
	Name      string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is not available", e.Name)
}

// Service encapsulates cart business logic: stock-aware mutations and coupon
// application. Every mutation recomputes the cart's totals and persists the
// cart in one Save.
type Service struct {
	carts    Repository
	products product.Repository
	coupons  coupon.Validator
}

// NewService creates a cart Service with the required domain dependencies.
func NewService(carts Repository, products product.Repository, coupons coupon.Validator) *Service {
	return &Service{
		carts:    carts,
		products: products,
		coupons:  coupons,
	}
}

// Get returns the user's cart, creating an empty one lazily on first access.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return New(userID), nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds quantity of a product to the cart, snapshotting the product's
// current price and weight. The combined quantity must not exceed stock.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsAvailable {
		return nil, &UnavailableError{ProductID: p.ID, Name: p.Name}
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if c.Quantity(productID)+quantity > p.Stock {
		return nil, &OutOfStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
	}

	c.AddItem(p.ID, quantity, p.Price, p.Weight, p.WeightUnit)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// UpdateQuantity sets the quantity of an existing line item, subject to the
// product's current stock.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, &OutOfStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.UpdateQuantity(productID, quantity) {
		return nil, ErrItemNotInCart
	}

	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem deletes a line item from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.RemoveItem(productID) {
		return nil, ErrItemNotInCart
	}

	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the cart. Clearing an already-empty cart succeeds without
// touching storage.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return c, nil
	}

	c.Clear()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// ApplyCoupon validates the code against the cart's current total and the
// categories of its products, then stores the code and computed discount on
// the cart. The coupon is validated again at checkout.
func (s *Service) ApplyCoupon(ctx context.Context, userID, code string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	categories, err := s.cartCategories(ctx, c)
	if err != nil {
		return nil, err
	}

	d, err := s.coupons.Validate(ctx, code, c.TotalAmount, categories)
	if err != nil {
		return nil, err
	}

	c.ApplyCoupon(d.Code, d.Amount)
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveCoupon clears the applied coupon from the cart.
func (s *Service) RemoveCoupon(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.RemoveCoupon()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// cartCategories returns the distinct categories of the cart's products.
func (s *Service) cartCategories(ctx context.Context, c *Cart) ([]string, error) {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get cart products")
	}

	seen := make(map[string]struct{}, len(products))
	categories := make([]string, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories, nil
}
