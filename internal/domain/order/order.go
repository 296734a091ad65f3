// Package order implements the order snapshot and its status state machine.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/cart"
	"github.com/xenking/freshmart/internal/domain/coupon"
	"github.com/xenking/freshmart/internal/domain/product"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	MethodRazorpay PaymentMethod = "razorpay"
	MethodCOD      PaymentMethod = "cod"
	MethodCard     PaymentMethod = "card"
)

// transitions is the forward-only status graph. Delivered and cancelled are
// terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransitionTo reports whether the status graph permits moving from s to
// next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden is returned when the requester does not own the order.
	ErrForbidden = errors.New("not authorized to access this order")
	// ErrNotCancellable is returned when an order is past the cancellable stages.
	ErrNotCancellable = errors.New("order cannot be cancelled at this stage")
	// ErrDuplicateNumber is returned by Create when the generated order number
	// collides with an existing one.
	ErrDuplicateNumber = errors.New("duplicate order number")
)

// InvalidTransitionError indicates a status change the state machine forbids.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Item is a denormalized order line: a snapshot of the product at order
// time, independent of later catalog mutations.
type Item struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Weight     decimal.Decimal `json:"weight"`
	WeightUnit string          `json:"weightUnit"`
}

// Address is the embedded shipping destination.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Order is an immutable-after-creation snapshot of a checked-out cart.
// Only status transitions and payment reconciliation mutate it; it is never
// deleted.
type Order struct {
	ID              string
	Number          string
	UserID          string
	Items           []Item
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Status          Status

	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	TotalAmount  decimal.Decimal
	CouponCode   string

	GatewayOrderID   string
	GatewayPaymentID string

	IsSeasonal         bool
	TrackingNumber     string
	Notes              string
	EstimatedDelivery  *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
}

// ListFilter narrows admin order listings.
type ListFilter struct {
	UserID        string
	Status        Status
	PaymentStatus PaymentStatus
	From          *time.Time
	To            *time.Time
	Skip          int
	Limit         int
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists a new order. Returns ErrDuplicateNumber when the order
	// number is already taken.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// GetByGatewayOrderID and GetByGatewayPaymentID find the order holding the
	// given gateway identifier, for payment reconciliation.
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error)
	GetByGatewayPaymentID(ctx context.Context, paymentID string) (*Order, error)
	// List returns matching orders, newest first, plus the total match count
	// before pagination.
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	// UpdateStatus persists the mutable status fields: order status, tracking
	// number, notes, delivery/cancellation stamps.
	UpdateStatus(ctx context.Context, o *Order) error
	// UpdatePayment persists the payment status and gateway identifiers, and
	// the order status when it changed as part of reconciliation.
	UpdatePayment(ctx context.Context, o *Order) error
}

// Stores bundles every repository a checkout transaction touches. A TxRunner
// binds them all to one database transaction.
type Stores struct {
	Products product.Repository
	Carts    cart.Repository
	Coupons  coupon.Repository
	Orders   Repository
}

// TxRunner executes fn with all stores bound to a single transaction that is
// committed when fn returns nil and rolled back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, st Stores) error) error
}
