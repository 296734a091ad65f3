// Package payment reconciles orders with the external payment gateway:
// signature verification of client-reported payments, webhook processing,
// and refunds.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrInvalidSignature is returned when a reported payment or webhook fails
// signature verification.
var ErrInvalidSignature = errors.New("invalid payment signature")

// GatewayError wraps a failure of the external gateway so the transport layer
// can surface it as an upstream error rather than a client fault.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// GatewayOrder is a payment order registered with the gateway ahead of
// capture. Amount is in minor currency units.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// GatewayPayment is the gateway's view of a captured payment. Amount is in
// minor currency units.
type GatewayPayment struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Status   string
	Method   string
}

// GatewayRefund is an initiated refund. Amount is in minor currency units.
type GatewayRefund struct {
	ID        string
	PaymentID string
	Amount    int64
	Status    string
}

// Gateway abstracts the payment provider. All amounts are in minor currency
// units (paise for INR).
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
	Refund(ctx context.Context, paymentID string, amount int64) (*GatewayRefund, error)
}
