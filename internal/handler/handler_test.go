package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/freshmart/internal/domain/cart"
	"github.com/xenking/freshmart/internal/domain/coupon"
	"github.com/xenking/freshmart/internal/domain/discount"
	"github.com/xenking/freshmart/internal/domain/order"
	"github.com/xenking/freshmart/internal/domain/payment"
	"github.com/xenking/freshmart/internal/domain/product"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Fakes ---

type fakeProducts struct {
	byID map[string]*product.Product
}

func (f *fakeProducts) List(_ context.Context, filter product.ListFilter) ([]product.Product, error) {
	var out []product.Product
	for _, p := range f.byID {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProducts) AdjustStock(_ context.Context, id string, delta int) error {
	p, ok := f.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return product.ErrInsufficientStock
	}
	p.Stock += delta
	return nil
}

type fakeCarts struct {
	byUser map[string]*cart.Cart
}

func (f *fakeCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	c, ok := f.byUser[userID]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return c, nil
}

func (f *fakeCarts) Save(_ context.Context, c *cart.Cart) error {
	f.byUser[c.UserID] = c
	return nil
}

type fakeValidator struct {
	discount *coupon.Discount
	err      error
}

func (f *fakeValidator) Validate(_ context.Context, _ string, _ decimal.Decimal, _ []string) (*coupon.Discount, error) {
	return f.discount, f.err
}

type fakeOrders struct {
	byID map[string]*order.Order
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) GetByGatewayOrderID(_ context.Context, id string) (*order.Order, error) {
	for _, o := range f.byID {
		if o.GatewayOrderID == id {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrders) GetByGatewayPaymentID(_ context.Context, id string) (*order.Order, error) {
	for _, o := range f.byID {
		if o.GatewayPaymentID == id {
			return o, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrders) List(_ context.Context, _ order.ListFilter) ([]order.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, o *order.Order) error {
	f.byID[o.ID] = o
	return nil
}

func (f *fakeOrders) UpdatePayment(_ context.Context, o *order.Order) error {
	f.byID[o.ID] = o
	return nil
}

type fakeGateway struct{}

func (fakeGateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*payment.GatewayOrder, error) {
	return &payment.GatewayOrder{ID: "order_gw1", Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (fakeGateway) FetchPayment(_ context.Context, id string) (*payment.GatewayPayment, error) {
	return &payment.GatewayPayment{ID: id, OrderID: "order_gw1", Status: "captured"}, nil
}

func (fakeGateway) Refund(_ context.Context, _ string, amount int64) (*payment.GatewayRefund, error) {
	return &payment.GatewayRefund{ID: "rfnd_1", Amount: amount, Status: "processed"}, nil
}

type fakeDiscounts struct {
	promos []discount.BulkDiscount
}

func (f *fakeDiscounts) FindForProduct(_ context.Context, _, _ string) ([]discount.BulkDiscount, error) {
	return f.promos, nil
}

func (f *fakeDiscounts) Create(_ context.Context, _ *discount.BulkDiscount) error { return nil }

type testEnv struct {
	router    *gin.Engine
	products  *fakeProducts
	carts     *fakeCarts
	validator *fakeValidator
	orders    *fakeOrders
	discounts *fakeDiscounts
}

func newTestEnv() *testEnv {
	env := &testEnv{
		products:  &fakeProducts{byID: make(map[string]*product.Product)},
		carts:     &fakeCarts{byUser: make(map[string]*cart.Cart)},
		validator: &fakeValidator{},
		orders:    &fakeOrders{byID: make(map[string]*order.Order)},
		discounts: &fakeDiscounts{},
	}
	env.products.byID["p1"] = &product.Product{
		ID: "p1", Name: "Tomatoes", Price: d("40"), Stock: 10,
		Weight: d("0.5"), WeightUnit: "kg", Category: "vegetables", IsAvailable: true,
	}

	carts := cart.NewService(env.carts, env.products, env.validator)
	payments := payment.NewService(fakeGateway{}, env.orders, "key_secret", "webhook_secret")
	h := New(env.products, carts, nil, payments, discount.NewResolver(env.discounts))

	env.router = gin.New()
	h.RegisterRoutes(env.router)
	return env
}

func (env *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-ID": id}
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Products []productResponse `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Products, 1)
	assert.Equal(t, "Tomatoes", body.Products[0].Name)
}

func TestGetProduct_NotFound(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/api/products/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartRequiresIdentity(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/api/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddCartItem(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/api/cart/items",
		gin.H{"productId": "p1", "quantity": 2}, asUser("u1"))
	require.Equal(t, http.StatusOK, w.Code)

	var body cartResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, 2, body.Items[0].Quantity)
	assert.True(t, d("80").Equal(body.TotalAmount))
}

func TestAddCartItem_ExceedsStock(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/api/cart/items",
		gin.H{"productId": "p1", "quantity": 11}, asUser("u1"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "available in stock")
}

func TestAddCartItem_MissingFields(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/api/cart/items", gin.H{"productId": "p1"}, asUser("u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApplyCoupon_Expired(t *testing.T) {
	env := newTestEnv()
	env.validator.err = coupon.ErrExpired

	w := env.do(http.MethodPost, "/api/cart/items",
		gin.H{"productId": "p1", "quantity": 1}, asUser("u1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/cart/coupon", gin.H{"code": "OLD"}, asUser("u1"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCheckout_PrepaidRequiresValidSignature(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodPost, "/api/cart/items",
		gin.H{"productId": "p1", "quantity": 1}, asUser("u1"))
	require.Equal(t, http.StatusOK, w.Code)

	// Fabricated gateway identifiers with no signature must not place a
	// completed order.
	w = env.do(http.MethodPost, "/api/orders", gin.H{
		"shippingAddress":   gin.H{"street": "1 Main St", "city": "Pune", "country": "IN"},
		"paymentMethod":     "razorpay",
		"razorpayOrderId":   "order_fabricated",
		"razorpayPaymentId": "pay_fabricated",
	}, asUser("u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A signature over identifiers the gateway never linked fails too.
	sig := payment.NewSigner("key_secret").SignPayment("order_fabricated", "pay_fabricated")
	w = env.do(http.MethodPost, "/api/orders", gin.H{
		"shippingAddress":   gin.H{"street": "1 Main St", "city": "Pune", "country": "IN"},
		"paymentMethod":     "razorpay",
		"razorpayOrderId":   "order_fabricated",
		"razorpayPaymentId": "pay_fabricated",
		"razorpaySignature": sig,
	}, asUser("u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv()

	w := env.do(http.MethodGet, "/api/admin/orders", nil, asUser("u1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQuoteBulkDiscount(t *testing.T) {
	env := newTestEnv()
	env.discounts.promos = []discount.BulkDiscount{{
		ID:        "bd1",
		ProductID: "p1",
		Tiers:     []discount.Tier{{MinQuantity: 5, DiscountPercentage: d("10")}},
		Active:    true,
		StartDate: time.Now().Add(-time.Hour),
	}}

	w := env.do(http.MethodGet, "/api/products/p1/bulk-discount?quantity=6", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Discount decimal.Decimal `json:"discount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	// 6 * 40 * 10% = 24.
	assert.True(t, d("24").Equal(body.Discount), "got %s", body.Discount)
}

func TestWebhook(t *testing.T) {
	env := newTestEnv()
	env.orders.byID["o1"] = &order.Order{
		ID: "o1", UserID: "u1", Status: order.StatusPending,
		PaymentStatus: order.PaymentPending, GatewayOrderID: "order_gw1",
	}

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_gw1"}}}}`)
	sig := payment.NewSigner("webhook_secret").SignBody(body)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set("X-Razorpay-Signature", sig)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, order.PaymentCompleted, env.orders.byID["o1"].PaymentStatus)
}

func TestWebhook_BadSignature(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook",
		bytes.NewReader([]byte(`{"event":"payment.captured"}`)))
	req.Header.Set("X-Razorpay-Signature", "deadbeef")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{cart.ErrInvalidQuantity, http.StatusBadRequest},
		{payment.ErrInvalidSignature, http.StatusBadRequest},
		{payment.ErrPaymentNotCaptured, http.StatusBadRequest},
		{order.ErrForbidden, http.StatusForbidden},
		{product.ErrNotFound, http.StatusNotFound},
		{order.ErrNotFound, http.StatusNotFound},
		{coupon.ErrNotFound, http.StatusNotFound},
		{order.ErrNotCancellable, http.StatusConflict},
		{&order.InvalidTransitionError{From: order.StatusShipped, To: order.StatusPending}, http.StatusConflict},
		{cart.ErrEmptyCart, http.StatusUnprocessableEntity},
		{coupon.ErrExpired, http.StatusUnprocessableEntity},
		{coupon.ErrUsageLimitReached, http.StatusUnprocessableEntity},
		{&cart.OutOfStockError{ProductID: "p1", Available: 2}, http.StatusUnprocessableEntity},
		{&coupon.MinimumNotMetError{MinOrderAmount: d("100")}, http.StatusUnprocessableEntity},
		{&payment.GatewayError{Op: "refund", Err: errors.New("down")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "error %v", tt.err)
	}
}
