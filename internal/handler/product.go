package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshmart/internal/domain/product"
)

// ListProducts returns catalog products, optionally filtered by category and
// availability.
func (h *Handler) ListProducts(c *gin.Context) {
	filter := product.ListFilter{
		Category:      c.Query("category"),
		OnlyAvailable: c.Query("available") == "true",
		Skip:          intQuery(c, "skip", 0),
		Limit:         intQuery(c, "limit", 50),
	}

	products, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]productResponse, len(products))
	for i := range products {
		out[i] = toProductResponse(&products[i])
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

// QuoteBulkDiscount returns the bulk discount a given quantity of the product
// would earn.
func (h *Handler) QuoteBulkDiscount(c *gin.Context) {
	quantity := intQuery(c, "quantity", 1)
	if quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be at least 1"})
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := h.discounts.Resolve(c.Request.Context(), p.ID, p.Category, quantity, p.Price)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"productId": p.ID,
		"quantity":  quantity,
		"unitPrice": p.Price,
		"discount":  res.Amount,
	}
	if res.Promotion != nil {
		body["description"] = res.Promotion.Description
		body["discountPercentage"] = res.Tier.DiscountPercentage
	} else {
		body["discountPercentage"] = decimal.Zero
	}
	c.JSON(http.StatusOK, body)
}

func intQuery(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
