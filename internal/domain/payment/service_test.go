package payment

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/freshmart/internal/domain/order"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"
)

// --- Mocks ---

type mockOrders struct {
	byID map[string]*order.Order
}

func newMockOrders(orders ...*order.Order) *mockOrders {
	m := &mockOrders{byID: make(map[string]*order.Order)}
	for _, o := range orders {
		m.byID[o.ID] = o
	}
	return m
}

func (m *mockOrders) Create(_ context.Context, o *order.Order) error {
	m.byID[o.ID] = o
	return nil
}

func (m *mockOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) GetByGatewayOrderID(_ context.Context, gatewayOrderID string) (*order.Order, error) {
	for _, o := range m.byID {
		if o.GatewayOrderID == gatewayOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrders) GetByGatewayPaymentID(_ context.Context, paymentID string) (*order.Order, error) {
	for _, o := range m.byID {
		if o.GatewayPaymentID == paymentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *mockOrders) List(_ context.Context, _ order.ListFilter) ([]order.Order, int, error) {
	return nil, 0, nil
}

func (m *mockOrders) UpdateStatus(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrders) UpdatePayment(_ context.Context, o *order.Order) error {
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

type mockGateway struct {
	err     error
	orders  int
	refunds []int64
	payment *GatewayPayment
}

func (m *mockGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*GatewayOrder, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.orders++
	return &GatewayOrder{
		ID:       fmt.Sprintf("order_gw%d", m.orders),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (m *mockGateway) FetchPayment(_ context.Context, paymentID string) (*GatewayPayment, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.payment != nil {
		cp := *m.payment
		return &cp, nil
	}
	return &GatewayPayment{ID: paymentID, Status: "captured"}, nil
}

func (m *mockGateway) Refund(_ context.Context, _ string, amount int64) (*GatewayRefund, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.refunds = append(m.refunds, amount)
	return &GatewayRefund{ID: "rfnd_1", Amount: amount, Status: "processed"}, nil
}

func pendingOrder(id, userID string) *order.Order {
	return &order.Order{
		ID:            id,
		UserID:        userID,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		PaymentMethod: order.MethodRazorpay,
		TotalAmount:   decimal.RequireFromString("259.99"),
	}
}

func newTestService(orders *mockOrders) (*Service, *mockGateway) {
	gw := &mockGateway{}
	return NewService(gw, orders, testKeySecret, testWebhookSecret), gw
}

// --- CreateGatewayOrder ---

func TestCreateGatewayOrder_MinorUnits(t *testing.T) {
	svc, _ := newTestService(newMockOrders())

	o, err := svc.CreateGatewayOrder(context.Background(), decimal.RequireFromString("259.99"), "INR", "FM250615ABCDEF")
	require.NoError(t, err)
	assert.Equal(t, int64(25999), o.Amount)
	assert.Equal(t, "INR", o.Currency)
	assert.Equal(t, "FM250615ABCDEF", o.Receipt)
}

func TestCreateGatewayOrder_GatewayFailure(t *testing.T) {
	svc, gw := newTestService(newMockOrders())
	gw.err = errors.New("connection refused")

	_, err := svc.CreateGatewayOrder(context.Background(), decimal.NewFromInt(100), "INR", "rcpt")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
}

// --- Confirm ---

func TestConfirm_ValidSignature(t *testing.T) {
	orders := newMockOrders(pendingOrder("o1", "u1"))
	svc, _ := newTestService(orders)

	sig := NewSigner(testKeySecret).SignPayment("order_gw1", "pay_1")
	o, err := svc.Confirm(context.Background(), "o1", "u1", "order_gw1", "pay_1", sig)
	require.NoError(t, err)

	assert.Equal(t, order.PaymentCompleted, o.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, "order_gw1", o.GatewayOrderID)
	assert.Equal(t, "pay_1", o.GatewayPaymentID)
	assert.Equal(t, order.PaymentCompleted, orders.byID["o1"].PaymentStatus)
}

func TestConfirm_InvalidSignatureLeavesOrderUntouched(t *testing.T) {
	orders := newMockOrders(pendingOrder("o1", "u1"))
	svc, _ := newTestService(orders)

	_, err := svc.Confirm(context.Background(), "o1", "u1", "order_gw1", "pay_1", "deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, order.PaymentPending, orders.byID["o1"].PaymentStatus)
	assert.Equal(t, order.StatusPending, orders.byID["o1"].Status)
	assert.Empty(t, orders.byID["o1"].GatewayPaymentID)
}

func TestConfirm_WrongUser(t *testing.T) {
	orders := newMockOrders(pendingOrder("o1", "u1"))
	svc, _ := newTestService(orders)

	sig := NewSigner(testKeySecret).SignPayment("order_gw1", "pay_1")
	_, err := svc.Confirm(context.Background(), "o1", "u2", "order_gw1", "pay_1", sig)
	require.ErrorIs(t, err, order.ErrForbidden)
	// An unauthorized attempt leaves the order untouched.
	assert.Equal(t, order.PaymentPending, orders.byID["o1"].PaymentStatus)
}

func TestConfirm_UnknownOrder(t *testing.T) {
	svc, _ := newTestService(newMockOrders())

	_, err := svc.Confirm(context.Background(), "missing", "u1", "order_gw1", "pay_1", "sig")
	require.ErrorIs(t, err, order.ErrNotFound)
}

// --- VerifyCapture ---

func TestVerifyCapture(t *testing.T) {
	svc, gw := newTestService(newMockOrders())
	gw.payment = &GatewayPayment{ID: "pay_1", OrderID: "order_gw1", Status: "captured"}

	sig := NewSigner(testKeySecret).SignPayment("order_gw1", "pay_1")
	require.NoError(t, svc.VerifyCapture(context.Background(), "order_gw1", "pay_1", sig))
}

func TestVerifyCapture_MissingSignature(t *testing.T) {
	svc, gw := newTestService(newMockOrders())
	gw.payment = &GatewayPayment{ID: "pay_1", OrderID: "order_gw1", Status: "captured"}

	// Fabricated gateway identifiers without a signature must not pass.
	err := svc.VerifyCapture(context.Background(), "order_gw1", "pay_1", "")
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyCapture_NotCaptured(t *testing.T) {
	svc, gw := newTestService(newMockOrders())
	gw.payment = &GatewayPayment{ID: "pay_1", OrderID: "order_gw1", Status: "authorized"}

	sig := NewSigner(testKeySecret).SignPayment("order_gw1", "pay_1")
	err := svc.VerifyCapture(context.Background(), "order_gw1", "pay_1", sig)
	require.ErrorIs(t, err, ErrPaymentNotCaptured)
}

func TestVerifyCapture_OrderMismatch(t *testing.T) {
	svc, gw := newTestService(newMockOrders())
	gw.payment = &GatewayPayment{ID: "pay_1", OrderID: "order_other", Status: "captured"}

	// A valid signature over a pair the gateway never linked is rejected.
	sig := NewSigner(testKeySecret).SignPayment("order_gw1", "pay_1")
	err := svc.VerifyCapture(context.Background(), "order_gw1", "pay_1", sig)
	require.ErrorIs(t, err, ErrPaymentNotCaptured)
}

func TestVerifyCapture_GatewayFailure(t *testing.T) {
	svc, gw := newTestService(newMockOrders())
	gw.err = errors.New("gateway timeout")

	sig := NewSigner(testKeySecret).SignPayment("order_gw1", "pay_1")
	err := svc.VerifyCapture(context.Background(), "order_gw1", "pay_1", sig)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
}

// --- Refund ---

func TestRefund(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.PaymentStatus = order.PaymentCompleted
	o.GatewayPaymentID = "pay_1"
	orders := newMockOrders(o)
	svc, gw := newTestService(orders)

	refund, err := svc.Refund(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "processed", refund.Status)
	assert.Equal(t, []int64{25999}, gw.refunds)
	assert.Equal(t, order.PaymentRefunded, orders.byID["o1"].PaymentStatus)
}

func TestRefund_NotRefundable(t *testing.T) {
	orders := newMockOrders(pendingOrder("o1", "u1"))
	svc, _ := newTestService(orders)

	_, err := svc.Refund(context.Background(), "o1")
	require.ErrorIs(t, err, ErrNotRefundable)
}

func TestRefund_GatewayFailure(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.PaymentStatus = order.PaymentCompleted
	o.GatewayPaymentID = "pay_1"
	orders := newMockOrders(o)
	svc, gw := newTestService(orders)
	gw.err = errors.New("gateway timeout")

	_, err := svc.Refund(context.Background(), "o1")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	// The order stays paid when the gateway call fails.
	assert.Equal(t, order.PaymentCompleted, orders.byID["o1"].PaymentStatus)
}

// --- Webhooks ---

func signedWebhook(body string) (payload []byte, signature string) {
	b := []byte(body)
	return b, NewSigner(testWebhookSecret).sign(b)
}

func TestHandleWebhook_PaymentCaptured(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.GatewayOrderID = "order_gw1"
	orders := newMockOrders(o)
	svc, _ := newTestService(orders)

	body, sig := signedWebhook(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_gw1", "amount": 25999}}}
	}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))

	got := orders.byID["o1"]
	assert.Equal(t, order.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, order.StatusConfirmed, got.Status)
	assert.Equal(t, "pay_1", got.GatewayPaymentID)
}

func TestHandleWebhook_PaymentFailed(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.GatewayOrderID = "order_gw1"
	orders := newMockOrders(o)
	svc, _ := newTestService(orders)

	body, sig := signedWebhook(`{
		"event": "payment.failed",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_gw1"}}}
	}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))

	got := orders.byID["o1"]
	assert.Equal(t, order.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestHandleWebhook_RefundProcessed(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.PaymentStatus = order.PaymentCompleted
	o.GatewayPaymentID = "pay_1"
	orders := newMockOrders(o)
	svc, _ := newTestService(orders)

	body, sig := signedWebhook(`{
		"event": "refund.processed",
		"payload": {"refund": {"entity": {"id": "rfnd_1", "payment_id": "pay_1"}}}
	}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	assert.Equal(t, order.PaymentRefunded, orders.byID["o1"].PaymentStatus)
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	o := pendingOrder("o1", "u1")
	o.GatewayOrderID = "order_gw1"
	orders := newMockOrders(o)
	svc, _ := newTestService(orders)

	body := []byte(`{"event": "payment.captured", "payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_gw1"}}}}`)
	err := svc.HandleWebhook(context.Background(), body, "deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, order.PaymentPending, orders.byID["o1"].PaymentStatus)
}

func TestHandleWebhook_UnknownEventIgnored(t *testing.T) {
	svc, _ := newTestService(newMockOrders())

	body, sig := signedWebhook(`{"event": "invoice.paid", "payload": {}}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
}

func TestHandleWebhook_UnknownOrderAcknowledged(t *testing.T) {
	svc, _ := newTestService(newMockOrders())

	body, sig := signedWebhook(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_unknown"}}}
	}`)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	svc, _ := newTestService(newMockOrders())

	body, sig := signedWebhook(`{"payload": {}}`)
	require.Error(t, svc.HandleWebhook(context.Background(), body, sig))
}

func TestParseWebhook(t *testing.T) {
	ev, err := parseWebhook([]byte(`{
		"entity": "event",
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_gw1", "notes": {"k": "v"}}}}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "payment.captured", ev.Event)
	assert.Equal(t, "pay_1", ev.PaymentID)
	assert.Equal(t, "order_gw1", ev.OrderID)
}
