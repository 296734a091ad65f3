// Package razorpay adapts the Razorpay SDK to the payment.Gateway interface.
package razorpay

import (
	"context"

	"github.com/go-faster/errors"
	razorpay "github.com/razorpay/razorpay-go"

	"github.com/xenking/freshmart/internal/domain/payment"
)

// Client wraps the Razorpay API client. The SDK does not accept a context;
// it is taken for interface compatibility and request deadlines rely on the
// SDK's own HTTP timeout.
type Client struct {
	api *razorpay.Client
}

var _ payment.Gateway = (*Client)(nil)

// New creates a Razorpay-backed gateway with the given API credentials.
func New(keyID, keySecret string) *Client {
	return &Client{api: razorpay.NewClient(keyID, keySecret)}
}

// CreateOrder registers a payment order with auto-capture enabled.
func (c *Client) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*payment.GatewayOrder, error) {
	data := map[string]interface{}{
		"amount":          amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	res, err := c.api.Order.Create(data, nil)
	if err != nil {
		return nil, errors.Wrap(err, "razorpay order create")
	}
	return &payment.GatewayOrder{
		ID:       str(res, "id"),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

// FetchPayment retrieves a payment's current state from the gateway.
func (c *Client) FetchPayment(_ context.Context, paymentID string) (*payment.GatewayPayment, error) {
	res, err := c.api.Payment.Fetch(paymentID, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "razorpay payment fetch")
	}
	return &payment.GatewayPayment{
		ID:       str(res, "id"),
		OrderID:  str(res, "order_id"),
		Amount:   i64(res, "amount"),
		Currency: str(res, "currency"),
		Status:   str(res, "status"),
		Method:   str(res, "method"),
	}, nil
}

// Refund initiates a refund against a captured payment.
func (c *Client) Refund(_ context.Context, paymentID string, amount int64) (*payment.GatewayRefund, error) {
	res, err := c.api.Payment.Refund(paymentID, int(amount), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "razorpay refund")
	}
	return &payment.GatewayRefund{
		ID:        str(res, "id"),
		PaymentID: paymentID,
		Amount:    i64(res, "amount"),
		Status:    str(res, "status"),
	}, nil
}

func str(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// i64 reads a numeric field. The SDK decodes JSON numbers as float64.
func i64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
