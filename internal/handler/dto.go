package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/cart"
	"github.com/xenking/freshmart/internal/domain/order"
	"github.com/xenking/freshmart/internal/domain/product"
)

type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Weight      decimal.Decimal `json:"weight"`
	WeightUnit  string          `json:"weightUnit"`
	Category    string          `json:"category"`
	IsAvailable bool            `json:"isAvailable"`
	IsSeasonal  bool            `json:"isSeasonal"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Stock:       p.Stock,
		Weight:      p.Weight,
		WeightUnit:  p.WeightUnit,
		Category:    p.Category,
		IsAvailable: p.IsAvailable,
		IsSeasonal:  p.IsSeasonal,
	}
}

type cartResponse struct {
	UserID         string          `json:"userId"`
	Items          []cart.Item     `json:"items"`
	CouponCode     string          `json:"couponCode,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	TotalWeight    decimal.Decimal `json:"totalWeight"`
	WeightUnit     string          `json:"weightUnit"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

func toCartResponse(c *cart.Cart) cartResponse {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	return cartResponse{
		UserID:         c.UserID,
		Items:          items,
		CouponCode:     c.CouponCode,
		TotalAmount:    c.TotalAmount,
		TotalWeight:    c.TotalWeight,
		WeightUnit:     c.WeightUnit,
		DiscountAmount: c.DiscountAmount,
		FinalAmount:    c.FinalAmount,
	}
}

type orderResponse struct {
	ID                 string          `json:"id"`
	OrderNumber        string          `json:"orderNumber"`
	UserID             string          `json:"userId"`
	Items              []order.Item    `json:"items"`
	ShippingAddress    order.Address   `json:"shippingAddress"`
	PaymentMethod      string          `json:"paymentMethod"`
	PaymentStatus      string          `json:"paymentStatus"`
	OrderStatus        string          `json:"orderStatus"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	ShippingCost       decimal.Decimal `json:"shippingCost"`
	Tax                decimal.Decimal `json:"tax"`
	Discount           decimal.Decimal `json:"discount"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	CouponCode         string          `json:"couponCode,omitempty"`
	GatewayOrderID     string          `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID   string          `json:"gatewayPaymentId,omitempty"`
	IsSeasonal         bool            `json:"isSeasonal"`
	TrackingNumber     string          `json:"trackingNumber,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	EstimatedDelivery  *time.Time      `json:"estimatedDelivery,omitempty"`
	DeliveredAt        *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time      `json:"cancelledAt,omitempty"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.Number,
		UserID:             o.UserID,
		Items:              o.Items,
		ShippingAddress:    o.ShippingAddress,
		PaymentMethod:      string(o.PaymentMethod),
		PaymentStatus:      string(o.PaymentStatus),
		OrderStatus:        string(o.Status),
		Subtotal:           o.Subtotal,
		ShippingCost:       o.ShippingCost,
		Tax:                o.Tax,
		Discount:           o.Discount,
		TotalAmount:        o.TotalAmount,
		CouponCode:         o.CouponCode,
		GatewayOrderID:     o.GatewayOrderID,
		GatewayPaymentID:   o.GatewayPaymentID,
		IsSeasonal:         o.IsSeasonal,
		TrackingNumber:     o.TrackingNumber,
		Notes:              o.Notes,
		EstimatedDelivery:  o.EstimatedDelivery,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
	}
}

type pageResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Skip   int             `json:"skip"`
	Limit  int             `json:"limit"`
}

func toPageResponse(orders []order.Order, total, skip, limit int) pageResponse {
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrderResponse(&orders[i])
	}
	return pageResponse{Orders: out, Total: total, Skip: skip, Limit: limit}
}
