package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xenking/freshmart/internal/domain/order"
)

type addressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country" binding:"required"`
}

type checkoutRequest struct {
	ShippingAddress addressRequest `json:"shippingAddress" binding:"required"`
	PaymentMethod   string         `json:"paymentMethod" binding:"required"`
	Notes           string         `json:"notes"`

	// Set when the payment was captured on the client before checkout. The
	// signature is verified against the gateway before the order is placed.
	GatewayOrderID   string `json:"razorpayOrderId"`
	GatewayPaymentID string `json:"razorpayPaymentId"`
	GatewaySignature string `json:"razorpaySignature"`
}

// Checkout turns the user's cart into an order.
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.GatewayPaymentID != "" || req.GatewayOrderID != "" {
		err := h.payments.VerifyCapture(c.Request.Context(),
			req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	o, err := h.orders.Checkout(c.Request.Context(), order.CheckoutInput{
		UserID: currentUser(c),
		ShippingAddress: order.Address{
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			ZipCode: req.ShippingAddress.ZipCode,
			Country: req.ShippingAddress.Country,
		},
		PaymentMethod:    order.PaymentMethod(req.PaymentMethod),
		Notes:            req.Notes,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(o))
}

// ListOrders returns the current user's orders, newest first.
func (h *Handler) ListOrders(c *gin.Context) {
	skip := intQuery(c, "skip", 0)
	limit := intQuery(c, "limit", 20)

	orders, total, err := h.orders.ListForUser(c.Request.Context(), currentUser(c), skip, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(orders, total, skip, limit))
}

// GetOrder returns one order, visible to its owner or an admin.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"), currentUser(c), isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels the user's own order while it is still cancellable.
func (h *Handler) CancelOrder(c *gin.Context) {
	var req cancelOrderRequest
	// The reason is optional, so an empty body is fine.
	_ = c.ShouldBindJSON(&req)

	o, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), currentUser(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

// AdminListOrders returns orders across all users, filtered.
func (h *Handler) AdminListOrders(c *gin.Context) {
	skip := intQuery(c, "skip", 0)
	limit := intQuery(c, "limit", 20)
	filter := order.ListFilter{
		UserID:        c.Query("userId"),
		Status:        order.Status(c.Query("status")),
		PaymentStatus: order.PaymentStatus(c.Query("paymentStatus")),
		Skip:          skip,
		Limit:         limit,
	}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		filter.To = &to
	}

	orders, total, err := h.orders.ListAll(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPageResponse(orders, total, skip, limit))
}

type updateStatusRequest struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"trackingNumber"`
	Reason         string `json:"reason"`
}

// AdminUpdateStatus moves an order through its lifecycle.
func (h *Handler) AdminUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"),
		order.Status(req.Status), req.TrackingNumber, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}
