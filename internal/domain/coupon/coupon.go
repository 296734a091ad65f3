package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage applies a percentage-based discount to the order amount.
	TypePercentage Type = "percentage"
	// TypeFixed applies a fixed monetary discount capped at the order amount.
	TypeFixed Type = "fixed"
)

var (
	// ErrNotFound is returned when a coupon code is unknown or inactive.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when a coupon is outside its validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCategoryMismatch is returned when a restricted coupon matches none of
	// the order's categories.
	ErrCategoryMismatch = errors.New("coupon not applicable to these categories")
)

// MinimumNotMetError indicates the order amount is below the coupon's minimum.
type MinimumNotMetError struct {
	MinOrderAmount decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("minimum order amount of %s required", e.MinOrderAmount)
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Empty Categories and Products lists mean the coupon is unrestricted.
type Rule struct {
	Code           string
	Name           string
	Description    string
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxDiscount    *decimal.Decimal
	ValidFrom      time.Time
	ValidUntil     time.Time
	UsageLimit     *int
	UsedCount      int
	Categories     []string
	Products       []string
	Active         bool
}

// Discount holds the computed discount amount and a human-readable description.
type Discount struct {
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	// FindByCode looks up an active coupon by code, case-insensitively.
	// Returns ErrNotFound when no active coupon matches.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// Upsert inserts or replaces a coupon rule keyed by code.
	Upsert(ctx context.Context, rule *Rule) error
	// IncrementUses bumps the usage counter, enforcing the usage limit
	// atomically. Returns ErrUsageLimitReached when the limit is exhausted.
	IncrementUses(ctx context.Context, code string) error
}
