package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator validates a coupon code against an order context and returns the
// computed discount. Validation is read-only; the usage counter is bumped
// separately, inside the checkout transaction.
type Validator interface {
	Validate(ctx context.Context, code string, orderAmount decimal.Decimal, categories []string) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository,
// reading the wall clock.
func NewRepoValidator(repo Repository) *RepoValidator {
	return NewRepoValidatorAt(repo, time.Now)
}

// NewRepoValidatorAt creates a RepoValidator that reads the current time from
// now, for callers carrying their own clock.
func NewRepoValidatorAt(repo Repository, now func() time.Time) *RepoValidator {
	return &RepoValidator{repo: repo, now: now}
}

// Validate looks up the rule for the given code and checks, in order:
// existence, validity window, usage limit, minimum order amount, and
// category restrictions. On success it returns the computed discount,
// capped by MaxDiscount and never exceeding the order amount.
func (v *RepoValidator) Validate(
	ctx context.Context,
	code string,
	orderAmount decimal.Decimal,
	categories []string,
) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := v.now()
	if now.Before(rule.ValidFrom) || now.After(rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.UsageLimit != nil && rule.UsedCount >= *rule.UsageLimit {
		return nil, ErrUsageLimitReached
	}

	if orderAmount.LessThan(rule.MinOrderAmount) {
		return nil, &MinimumNotMetError{MinOrderAmount: rule.MinOrderAmount}
	}

	if len(rule.Categories) > 0 && !anyMatch(rule.Categories, categories) {
		return nil, ErrCategoryMismatch
	}

	return &Discount{
		Code:        rule.Code,
		Amount:      CalculateDiscount(rule, orderAmount),
		Description: rule.Description,
	}, nil
}

// CalculateDiscount computes the discount a rule grants for the given order
// amount: the fixed value, or the percentage of the amount, capped by
// MaxDiscount when set and always capped to the order amount itself.
func CalculateDiscount(rule *Rule, orderAmount decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch rule.Type {
	case TypeFixed:
		amount = rule.Value
	case TypePercentage:
		amount = orderAmount.Mul(rule.Value).Div(hundred)
	default:
		return decimal.Zero
	}

	if rule.MaxDiscount != nil && amount.GreaterThan(*rule.MaxDiscount) {
		amount = *rule.MaxDiscount
	}
	amount = decimal.Min(amount, orderAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

func anyMatch(restricted, got []string) bool {
	return slices.ContainsFunc(got, func(c string) bool {
		return slices.Contains(restricted, c)
	})
}
