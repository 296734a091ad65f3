// Package handler exposes the checkout core over HTTP using gin.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/freshmart/internal/domain/cart"
	"github.com/xenking/freshmart/internal/domain/coupon"
	"github.com/xenking/freshmart/internal/domain/discount"
	"github.com/xenking/freshmart/internal/domain/order"
	"github.com/xenking/freshmart/internal/domain/payment"
	"github.com/xenking/freshmart/internal/domain/product"
)

// Handler bundles the services behind the HTTP API.
type Handler struct {
	products  product.Repository
	carts     *cart.Service
	orders    *order.Service
	payments  *payment.Service
	discounts *discount.Resolver
}

// New creates a Handler over the given services.
func New(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Service,
	discounts *discount.Resolver,
) *Handler {
	return &Handler{
		products:  products,
		carts:     carts,
		orders:    orders,
		payments:  payments,
		discounts: discounts,
	}
}

// RegisterRoutes mounts all API routes on the router.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api")

	api.GET("/products", h.ListProducts)
	api.GET("/products/:id", h.GetProduct)
	api.GET("/products/:id/bulk-discount", h.QuoteBulkDiscount)

	// The gateway calls the webhook directly; it authenticates with its
	// signature, not user identity.
	api.POST("/payments/webhook", h.HandleWebhook)

	user := api.Group("", RequireUser())
	{
		user.GET("/cart", h.GetCart)
		user.POST("/cart/items", h.AddCartItem)
		user.PUT("/cart/items/:productID", h.UpdateCartItem)
		user.DELETE("/cart/items/:productID", h.RemoveCartItem)
		user.DELETE("/cart", h.ClearCart)
		user.POST("/cart/coupon", h.ApplyCoupon)
		user.DELETE("/cart/coupon", h.RemoveCoupon)

		user.POST("/orders", h.Checkout)
		user.GET("/orders", h.ListOrders)
		user.GET("/orders/:id", h.GetOrder)
		user.POST("/orders/:id/cancel", h.CancelOrder)

		user.POST("/payments/create-order", h.CreatePaymentOrder)
		user.POST("/payments/verify", h.VerifyPayment)
	}

	admin := api.Group("/admin", RequireUser(), RequireAdmin())
	{
		admin.GET("/orders", h.AdminListOrders)
		admin.PUT("/orders/:id/status", h.AdminUpdateStatus)
		admin.POST("/orders/:id/refund", h.AdminRefund)
	}
}

// writeError maps domain errors onto HTTP status codes and a uniform error
// body.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zctx.From(c.Request.Context()).Error("Request failed", zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		oosErr   *cart.OutOfStockError
		uaErr    *cart.UnavailableError
		minErr   *coupon.MinimumNotMetError
		transErr *order.InvalidTransitionError
		gwErr    *payment.GatewayError

		notFound = errors.Is(err, product.ErrNotFound) || errors.Is(err, order.ErrNotFound) || errors.Is(err, coupon.ErrNotFound)
		badInput = errors.Is(err, cart.ErrInvalidQuantity) ||
			errors.Is(err, order.ErrInvalidPaymentMethod) ||
			errors.Is(err, payment.ErrInvalidSignature) ||
			errors.Is(err, payment.ErrPaymentNotCaptured)
		conflict  = errors.Is(err, order.ErrNotCancellable)
		unprocess = errors.Is(err, cart.ErrEmptyCart) ||
			errors.Is(err, cart.ErrItemNotInCart) ||
			errors.Is(err, coupon.ErrExpired) ||
			errors.Is(err, coupon.ErrUsageLimitReached) ||
			errors.Is(err, coupon.ErrCategoryMismatch) ||
			errors.Is(err, payment.ErrNotRefundable)
	)
	switch {
	case badInput:
		return http.StatusBadRequest
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden
	case notFound:
		return http.StatusNotFound
	case conflict || errors.As(err, &transErr):
		return http.StatusConflict
	case unprocess || errors.As(err, &oosErr) || errors.As(err, &uaErr) || errors.As(err, &minErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &gwErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
