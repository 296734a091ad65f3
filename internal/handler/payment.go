package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Razorpay-Signature"

type createPaymentOrderRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// CreatePaymentOrder registers the order's total with the gateway and returns
// the gateway order for client-side capture.
func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	var req createPaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.orders.Get(c.Request.Context(), req.OrderID, currentUser(c), isAdmin(c))
	if err != nil {
		writeError(c, err)
		return
	}

	gw, err := h.payments.CreateGatewayOrder(c.Request.Context(), o.TotalAmount, "INR", o.Number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gatewayOrderId": gw.ID,
		"amount":         gw.Amount,
		"currency":       gw.Currency,
		"receipt":        gw.Receipt,
	})
}

type verifyPaymentRequest struct {
	OrderID           string `json:"orderId" binding:"required"`
	RazorpayOrderID   string `json:"razorpayOrderId" binding:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string `json:"razorpaySignature" binding:"required"`
}

// VerifyPayment checks the client-reported payment signature and marks the
// order paid.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o, err := h.payments.Confirm(c.Request.Context(), req.OrderID, currentUser(c),
		req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

// HandleWebhook processes gateway webhooks. The signature covers the raw
// body, so the body is read before any parsing.
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AdminRefund refunds a paid order in full.
func (h *Handler) AdminRefund(c *gin.Context) {
	refund, err := h.payments.Refund(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"refundId": refund.ID,
		"amount":   refund.Amount,
		"status":   refund.Status,
	})
}
