package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrInsufficientStock is returned by conditional stock decrements when the
// remaining stock cannot cover the requested quantity.
var ErrInsufficientStock = errors.New("insufficient stock")

// Product represents a catalog item available for purchase. The catalog is
// maintained elsewhere; this core reads products and adjusts stock.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Stock       int
	Weight      decimal.Decimal
	WeightUnit  string
	Category    string
	IsAvailable bool
	IsSeasonal  bool
}

// ListFilter narrows List results. Zero values mean no filtering; Limit 0
// means no limit.
type ListFilter struct {
	Category      string
	OnlyAvailable bool
	Skip          int
	Limit         int
}

// Repository defines catalog operations needed by the checkout core.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	// AdjustStock changes a product's stock by delta. Negative deltas are
	// conditional: when the remaining stock cannot cover the decrement, it
	// returns ErrInsufficientStock and changes nothing.
	AdjustStock(ctx context.Context, id string, delta int) error
}
