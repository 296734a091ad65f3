package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/order"
)

const (
	orderColumns = `id, order_number, user_id, items, shipping_address,
		payment_method, payment_status, order_status,
		subtotal, shipping_cost, tax, discount, total_amount, coupon_code,
		gateway_order_id, gateway_payment_id, is_seasonal,
		tracking_number, notes, estimated_delivery, delivered_at,
		cancelled_at, cancellation_reason, created_at`

	createOrderSQL = `INSERT INTO orders (id, order_number, user_id, items, shipping_address,
		payment_method, payment_status, order_status,
		subtotal, shipping_cost, tax, discount, total_amount, coupon_code,
		gateway_order_id, gateway_payment_id, is_seasonal, notes, estimated_delivery, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByGatewayOrderSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE gateway_order_id = $1 AND gateway_order_id <> ''`

	getOrderByGatewayPaymentSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE gateway_payment_id = $1 AND gateway_payment_id <> ''`

	listOrdersSQL = `SELECT ` + orderColumns + `, count(*) OVER () FROM orders
		WHERE ($1 = '' OR user_id = $1)
		AND ($2 = '' OR order_status = $2)
		AND ($3 = '' OR payment_status = $3)
		AND ($4::timestamptz IS NULL OR created_at >= $4)
		AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC OFFSET $6 LIMIT $7`

	updateOrderStatusSQL = `UPDATE orders SET order_status = $2, tracking_number = $3,
		notes = $4, delivered_at = $5, cancelled_at = $6, cancellation_reason = $7,
		updated_at = now()
		WHERE id = $1`

	updateOrderPaymentSQL = `UPDATE orders SET payment_status = $2, order_status = $3,
		gateway_order_id = $4, gateway_payment_id = $5, updated_at = now()
		WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items and the shipping address are stored as JSONB snapshots.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository returns an OrderRepository using the given querier.
func NewOrderRepository(q Querier) *OrderRepository {
	return &OrderRepository{q: q}
}

// Create persists a new order, assigning its ID. Returns
// order.ErrDuplicateNumber when the order number is already taken.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshaling shipping address: %w", err)
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err = r.q.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.UserID, itemsJSON, addressJSON,
		string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
		o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.TotalAmount, o.CouponCode,
		o.GatewayOrderID, o.GatewayPaymentID, o.IsSeasonal, o.Notes,
		o.EstimatedDelivery, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateNumber
		}
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// GetByID returns an order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByIDSQL, id)
}

// GetByGatewayOrderID finds the order holding the given gateway order
// identifier.
func (r *OrderRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByGatewayOrderSQL, gatewayOrderID)
}

// GetByGatewayPaymentID finds the order holding the given gateway payment
// identifier.
func (r *OrderRepository) GetByGatewayPaymentID(ctx context.Context, paymentID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByGatewayPaymentSQL, paymentID)
}

func (r *OrderRepository) getOne(ctx context.Context, sql, arg string) (*order.Order, error) {
	rows, err := r.q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Order, error) {
		o, _, err := scanOrder(row, false)
		return o, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

// List returns orders matching the filter, newest first, plus the total
// match count before pagination.
func (r *OrderRepository) List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	rows, err := r.q.Query(ctx, listOrdersSQL,
		filter.UserID, string(filter.Status), string(filter.PaymentStatus),
		filter.From, filter.To, filter.Skip, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	total := 0
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Order, error) {
		o, count, err := scanOrder(row, true)
		total = count
		return o, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus persists the order's status fields.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	tag, err := r.q.Exec(ctx, updateOrderStatusSQL,
		o.ID, string(o.Status), o.TrackingNumber, o.Notes,
		o.DeliveredAt, o.CancelledAt, o.CancellationReason,
	)
	if err != nil {
		return fmt.Errorf("updating status for order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// UpdatePayment persists the order's payment reconciliation fields.
func (r *OrderRepository) UpdatePayment(ctx context.Context, o *order.Order) error {
	tag, err := r.q.Exec(ctx, updateOrderPaymentSQL,
		o.ID, string(o.PaymentStatus), string(o.Status),
		o.GatewayOrderID, o.GatewayPaymentID,
	)
	if err != nil {
		return fmt.Errorf("updating payment for order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow, withCount bool) (order.Order, int, error) {
	var (
		o             order.Order
		itemsJSON     []byte
		addressJSON   []byte
		method        string
		paymentStatus string
		status        string
		subtotal      decimal.Decimal
		shipping      decimal.Decimal
		tax           decimal.Decimal
		discount      decimal.Decimal
		total         decimal.Decimal
		count         int
	)
	dest := []any{
		&o.ID, &o.Number, &o.UserID, &itemsJSON, &addressJSON,
		&method, &paymentStatus, &status,
		&subtotal, &shipping, &tax, &discount, &total, &o.CouponCode,
		&o.GatewayOrderID, &o.GatewayPaymentID, &o.IsSeasonal,
		&o.TrackingNumber, &o.Notes, &o.EstimatedDelivery, &o.DeliveredAt,
		&o.CancelledAt, &o.CancellationReason, &o.CreatedAt,
	}
	if withCount {
		dest = append(dest, &count)
	}
	if err := row.Scan(dest...); err != nil {
		return o, 0, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, 0, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return o, 0, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)
	o.Subtotal = subtotal
	o.ShippingCost = shipping
	o.Tax = tax
	o.Discount = discount
	o.TotalAmount = total
	return o, count, nil
}
