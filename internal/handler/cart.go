package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCart returns the current user's cart.
func (h *Handler) GetCart(c *gin.Context) {
	crt, err := h.carts.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

type addItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// AddCartItem adds a product to the cart.
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crt, err := h.carts.AddItem(c.Request.Context(), currentUser(c), req.ProductID, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

type updateItemRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// UpdateCartItem sets the quantity of an item already in the cart.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crt, err := h.carts.UpdateQuantity(c.Request.Context(), currentUser(c), c.Param("productID"), req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

// RemoveCartItem deletes an item from the cart.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	crt, err := h.carts.RemoveItem(c.Request.Context(), currentUser(c), c.Param("productID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(c *gin.Context) {
	crt, err := h.carts.Clear(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

type applyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon validates a coupon against the cart and stores it.
func (h *Handler) ApplyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	crt, err := h.carts.ApplyCoupon(c.Request.Context(), currentUser(c), req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}

// RemoveCoupon clears the applied coupon from the cart.
func (h *Handler) RemoveCoupon(c *gin.Context) {
	crt, err := h.carts.RemoveCoupon(c.Request.Context(), currentUser(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCartResponse(crt))
}
