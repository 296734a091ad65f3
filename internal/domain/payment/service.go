package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/freshmart/internal/domain/order"
)

// Webhook event names the gateway delivers.
const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
	eventRefundProcessed = "refund.processed"
)

// statusCaptured is the gateway's state for a successfully captured payment.
const statusCaptured = "captured"

// ErrNotRefundable is returned when a refund is requested for an order
// without a completed gateway payment.
var ErrNotRefundable = errors.New("order has no completed gateway payment")

// ErrPaymentNotCaptured is returned when a client-reported payment does not
// exist at the gateway in captured state for the claimed gateway order.
var ErrPaymentNotCaptured = errors.New("payment is not captured")

// Service reconciles order payment state with the gateway.
type Service struct {
	gateway Gateway
	orders  order.Repository
	payment *Signer
	webhook *Signer
}

// NewService creates a payment Service. keySecret signs checkout payment
// confirmations; webhookSecret signs webhook bodies.
func NewService(gateway Gateway, orders order.Repository, keySecret, webhookSecret string) *Service {
	return &Service{
		gateway: gateway,
		orders:  orders,
		payment: NewSigner(keySecret),
		webhook: NewSigner(webhookSecret),
	}
}

// CreateGatewayOrder registers a payment order with the gateway for the given
// amount, converting major currency units to minor ones.
func (s *Service) CreateGatewayOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error) {
	minor := amount.Shift(2).Round(0).IntPart()
	o, err := s.gateway.CreateOrder(ctx, minor, currency, receipt)
	if err != nil {
		return nil, &GatewayError{Op: "create order", Err: err}
	}
	return o, nil
}

// Confirm verifies a client-reported payment signature and, when valid,
// marks the order paid and confirmed. An invalid signature returns
// ErrInvalidSignature without touching the order; the gateway reports the
// real outcome through the webhook.
func (s *Service) Confirm(ctx context.Context, orderID, userID, gatewayOrderID, paymentID, signature string) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrForbidden
	}

	if !s.payment.VerifyPayment(gatewayOrderID, paymentID, signature) {
		return nil, ErrInvalidSignature
	}

	o.PaymentStatus = order.PaymentCompleted
	o.GatewayOrderID = gatewayOrderID
	o.GatewayPaymentID = paymentID
	if o.Status == order.StatusPending {
		o.Status = order.StatusConfirmed
	}
	if err := s.orders.UpdatePayment(ctx, o); err != nil {
		return nil, errors.Wrap(err, "mark payment completed")
	}
	return o, nil
}

// VerifyCapture validates a payment the client captured before checkout: the
// reported signature must match, and the gateway itself must report the
// payment captured against the same gateway order. Nothing is persisted;
// callers only proceed with checkout when this returns nil.
func (s *Service) VerifyCapture(ctx context.Context, gatewayOrderID, paymentID, signature string) error {
	if !s.payment.VerifyPayment(gatewayOrderID, paymentID, signature) {
		return ErrInvalidSignature
	}

	p, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return &GatewayError{Op: "fetch payment", Err: err}
	}
	if p.OrderID != gatewayOrderID || p.Status != statusCaptured {
		return ErrPaymentNotCaptured
	}
	return nil
}

// Refund initiates a gateway refund for the order's full amount and marks the
// payment refunded.
func (s *Service) Refund(ctx context.Context, orderID string) (*GatewayRefund, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != order.PaymentCompleted || o.GatewayPaymentID == "" {
		return nil, ErrNotRefundable
	}

	minor := o.TotalAmount.Shift(2).Round(0).IntPart()
	refund, err := s.gateway.Refund(ctx, o.GatewayPaymentID, minor)
	if err != nil {
		return nil, &GatewayError{Op: "refund", Err: err}
	}

	o.PaymentStatus = order.PaymentRefunded
	if err := s.orders.UpdatePayment(ctx, o); err != nil {
		return nil, errors.Wrap(err, "mark payment refunded")
	}
	return refund, nil
}

// HandleWebhook verifies and processes a raw gateway webhook. Events for
// unknown orders and event types this service does not track are logged and
// acknowledged so the gateway stops retrying them.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.webhook.VerifyBody(body, signature) {
		return ErrInvalidSignature
	}

	ev, err := parseWebhook(body)
	if err != nil {
		return errors.Wrap(err, "parse webhook")
	}

	lg := zctx.From(ctx).With(zap.String("event", ev.Event))
	switch ev.Event {
	case eventPaymentCaptured:
		return s.settle(ctx, lg, ev, order.PaymentCompleted)
	case eventPaymentFailed:
		return s.settle(ctx, lg, ev, order.PaymentFailed)
	case eventRefundProcessed:
		o, err := s.orders.GetByGatewayPaymentID(ctx, ev.PaymentID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				lg.Warn("Webhook for unknown payment", zap.String("payment_id", ev.PaymentID))
				return nil
			}
			return err
		}
		o.PaymentStatus = order.PaymentRefunded
		return s.orders.UpdatePayment(ctx, o)
	default:
		lg.Info("Ignoring unhandled webhook event")
		return nil
	}
}

// settle resolves the order by its gateway order id and applies the payment
// outcome.
func (s *Service) settle(ctx context.Context, lg *zap.Logger, ev webhookEvent, status order.PaymentStatus) error {
	o, err := s.orders.GetByGatewayOrderID(ctx, ev.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			lg.Warn("Webhook for unknown order", zap.String("gateway_order_id", ev.OrderID))
			return nil
		}
		return err
	}

	o.PaymentStatus = status
	if status == order.PaymentCompleted {
		o.GatewayPaymentID = ev.PaymentID
		if o.Status == order.StatusPending {
			o.Status = order.StatusConfirmed
		}
	}
	return s.orders.UpdatePayment(ctx, o)
}

// webhookEvent is the subset of a gateway webhook this service acts on.
type webhookEvent struct {
	Event     string
	OrderID   string
	PaymentID string
}

// parseWebhook extracts the event name and entity identifiers from the raw
// webhook body. Payment events carry payload.payment.entity with "id" and
// "order_id"; refund events carry payload.refund.entity with "payment_id".
func parseWebhook(body []byte) (webhookEvent, error) {
	var ev webhookEvent
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "event":
			v, err := d.Str()
			ev.Event = v
			return err
		case "payload":
			return d.Obj(func(d *jx.Decoder, entity string) error {
				if entity != "payment" && entity != "refund" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "entity" {
						return d.Skip()
					}
					return d.Obj(func(d *jx.Decoder, field string) error {
						switch field {
						case "id":
							if entity != "payment" {
								return d.Skip()
							}
							v, err := d.Str()
							ev.PaymentID = v
							return err
						case "order_id":
							v, err := d.Str()
							ev.OrderID = v
							return err
						case "payment_id":
							v, err := d.Str()
							ev.PaymentID = v
							return err
						default:
							return d.Skip()
						}
					})
				})
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return webhookEvent{}, err
	}
	if ev.Event == "" {
		return webhookEvent{}, errors.New("missing event field")
	}
	return ev, nil
}
