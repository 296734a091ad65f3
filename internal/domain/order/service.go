package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/freshmart/internal/domain/cart"
	"github.com/xenking/freshmart/internal/domain/coupon"
	"github.com/xenking/freshmart/internal/domain/pricing"
	"github.com/xenking/freshmart/internal/domain/product"
)

// ErrInvalidPaymentMethod is returned when a checkout names an unsupported
// payment method.
var ErrInvalidPaymentMethod = errors.New("unsupported payment method")

// deliveryWindow is added to the checkout time to produce the estimated
// delivery date.
const deliveryWindow = 3 * 24 * time.Hour

// createAttempts bounds retries on order number collisions.
const createAttempts = 3

// CheckoutInput carries everything a checkout needs beyond the cart itself.
// Gateway identifiers are set only for a payment already captured and
// verified; the transport layer checks the capture signature against the
// gateway before calling Checkout.
type CheckoutInput struct {
	UserID           string
	ShippingAddress  Address
	PaymentMethod    PaymentMethod
	Notes            string
	GatewayOrderID   string
	GatewayPaymentID string
}

// Service implements order placement and lifecycle management. All mutations
// that touch stock or coupon counters run inside a single transaction, so a
// failure on any line leaves the catalog untouched.
type Service struct {
	tx     TxRunner
	stores Stores
	now    func() time.Time
}

// NewService creates an order Service. stores is bound to the shared pool and
// serves reads; tx opens per-call transactions for checkout and cancellation.
func NewService(tx TxRunner, stores Stores) *Service {
	return &Service{
		tx:     tx,
		stores: stores,
		now:    time.Now,
	}
}

// Checkout converts the user's cart into an order: it re-validates every line
// against live stock, re-validates the coupon, prices the order, decrements
// stock and bumps the coupon counter, persists the order, and clears the
// cart. All of it commits or none of it does.
//
// A stale coupon on the cart degrades to a zero discount instead of failing
// the checkout; only stock and availability problems abort.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	switch in.PaymentMethod {
	case MethodRazorpay, MethodCOD, MethodCard:
	default:
		return nil, ErrInvalidPaymentMethod
	}

	var placed *Order
	for attempt := 0; attempt < createAttempts; attempt++ {
		err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
			o, err := s.placeOrder(ctx, st, in)
			if err != nil {
				return err
			}
			placed = o
			return nil
		})
		if errors.Is(err, ErrDuplicateNumber) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return placed, nil
	}
	return nil, errors.New("could not allocate a unique order number")
}

func (s *Service) placeOrder(ctx context.Context, st Stores, in CheckoutInput) (*Order, error) {
	c, err := st.Carts.Get(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			return nil, cart.ErrEmptyCart
		}
		return nil, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, cart.ErrEmptyCart
	}

	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	prods, err := st.Products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load products")
	}
	byID := make(map[string]*product.Product, len(prods))
	for i := range prods {
		byID[prods[i].ID] = &prods[i]
	}

	now := s.now()
	items := make([]Item, 0, len(c.Items))
	lines := make([]pricing.LineItem, 0, len(c.Items))
	seasonal := false
	for _, item := range c.Items {
		p, ok := byID[item.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", item.ProductID)
		}
		if !p.IsAvailable {
			return nil, &cart.UnavailableError{ProductID: p.ID, Name: p.Name}
		}
		if p.Stock < item.Quantity {
			return nil, &cart.OutOfStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
		}
		seasonal = seasonal || p.IsSeasonal

		items = append(items, Item{
			ProductID:  p.ID,
			Name:       p.Name,
			Quantity:   item.Quantity,
			Price:      p.Price,
			Weight:     p.Weight,
			WeightUnit: p.WeightUnit,
		})
		lines = append(lines, pricing.LineItem{Price: p.Price, Quantity: item.Quantity})
	}

	discount, couponCode := s.resolveCoupon(ctx, st, c)
	totals := pricing.ComputeTotals(lines, discount, in.PaymentMethod == MethodCOD)

	// Conditional decrements guard against concurrent checkouts racing past
	// the read above.
	for _, item := range items {
		if err := st.Products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			if errors.Is(err, product.ErrInsufficientStock) {
				return nil, &cart.OutOfStockError{ProductID: item.ProductID, Name: item.Name}
			}
			return nil, errors.Wrapf(err, "decrement stock for %s", item.ProductID)
		}
	}

	eta := now.Add(deliveryWindow)
	o := &Order{
		Number:          NewNumber(now),
		UserID:          in.UserID,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,

		Subtotal:     totals.Subtotal,
		ShippingCost: totals.ShippingCost,
		Tax:          totals.Tax,
		Discount:     totals.Discount,
		TotalAmount:  totals.Total,
		CouponCode:   couponCode,

		GatewayOrderID:    in.GatewayOrderID,
		GatewayPaymentID:  in.GatewayPaymentID,
		IsSeasonal:        seasonal,
		Notes:             in.Notes,
		EstimatedDelivery: &eta,
		CreatedAt:         now,
	}
	if in.GatewayPaymentID != "" {
		o.PaymentStatus = PaymentCompleted
		o.Status = StatusConfirmed
	} else if in.PaymentMethod == MethodCOD {
		o.Status = StatusConfirmed
	}

	if err := st.Orders.Create(ctx, o); err != nil {
		return nil, err
	}

	c.Clear()
	if err := st.Carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return o, nil
}

// resolveCoupon re-validates the cart's coupon and bumps its usage counter.
// A coupon that no longer validates, or whose limit was exhausted since it
// was applied, degrades to a zero discount with a warning.
func (s *Service) resolveCoupon(ctx context.Context, st Stores, c *cart.Cart) (decimal.Decimal, string) {
	if c.CouponCode == "" {
		return decimal.Zero, ""
	}

	validator := coupon.NewRepoValidatorAt(st.Coupons, s.now)
	categories := s.itemCategories(ctx, st, c)
	d, err := validator.Validate(ctx, c.CouponCode, c.TotalAmount, categories)
	if err == nil {
		err = st.Coupons.IncrementUses(ctx, d.Code)
	}
	if err != nil {
		zctx.From(ctx).Warn("Coupon no longer applicable, checking out without discount",
			zap.String("code", c.CouponCode),
			zap.Error(err),
		)
		return decimal.Zero, ""
	}
	return d.Amount, d.Code
}

func (s *Service) itemCategories(ctx context.Context, st Stores, c *cart.Cart) []string {
	ids := make([]string, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	prods, err := st.Products.GetByIDs(ctx, ids)
	if err != nil {
		return nil
	}
	seen := make(map[string]struct{}, len(prods))
	categories := make([]string, 0, len(prods))
	for _, p := range prods {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}

// Get returns an order visible to the requester: its owner, or an admin.
func (s *Service) Get(ctx context.Context, orderID, userID string, admin bool) (*Order, error) {
	o, err := s.stores.Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !admin && o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, skip, limit int) ([]Order, int, error) {
	return s.stores.Orders.List(ctx, ListFilter{UserID: userID, Skip: skip, Limit: limit})
}

// ListAll returns orders matching the filter, for admin views.
func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	return s.stores.Orders.List(ctx, filter)
}

// Cancel cancels the user's own order while it is still pending or confirmed,
// restoring the reserved stock in the same transaction.
func (s *Service) Cancel(ctx context.Context, orderID, userID, reason string) (*Order, error) {
	var cancelled *Order
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		o, err := st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrForbidden
		}
		if o.Status != StatusPending && o.Status != StatusConfirmed {
			return ErrNotCancellable
		}

		if err := s.cancelOrder(ctx, st, o, reason); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// UpdateStatus performs an admin-driven status transition, stamping delivery
// and cancellation times and restoring stock on cancellation.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status, trackingNumber, reason string) (*Order, error) {
	if !next.Valid() {
		return nil, &InvalidTransitionError{To: next}
	}

	var updated *Order
	err := s.tx.InTx(ctx, func(ctx context.Context, st Stores) error {
		o, err := st.Orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(next) {
			return &InvalidTransitionError{From: o.Status, To: next}
		}

		if next == StatusCancelled {
			if err := s.cancelOrder(ctx, st, o, reason); err != nil {
				return err
			}
			updated = o
			return nil
		}

		o.Status = next
		if trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
		if next == StatusDelivered {
			now := s.now()
			o.DeliveredAt = &now
		}
		if err := st.Orders.UpdateStatus(ctx, o); err != nil {
			return errors.Wrap(err, "update status")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// cancelOrder marks o cancelled and returns each line's quantity to stock.
func (s *Service) cancelOrder(ctx context.Context, st Stores, o *Order, reason string) error {
	now := s.now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason

	for _, item := range o.Items {
		if err := st.Products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			return errors.Wrapf(err, "restore stock for %s", item.ProductID)
		}
	}
	return st.Orders.UpdateStatus(ctx, o)
}
