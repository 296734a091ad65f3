package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule *Rule
	err  error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockCouponRepo) Upsert(_ context.Context, _ *Rule) error { return nil }

func (m *mockCouponRepo) IncrementUses(_ context.Context, _ string) error { return nil }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	validWindow := Rule{
		ValidFrom:  pastTime,
		ValidUntil: futureTime,
		Active:     true,
	}

	percentRule := func(value string) *Rule {
		r := validWindow
		r.Code = "SAVE"
		r.Type = TypePercentage
		r.Value = d(value)
		r.Description = value + "% off"
		return &r
	}

	tests := []struct {
		name        string
		repo        *mockCouponRepo
		orderAmount decimal.Decimal
		categories  []string
		wantAmount  decimal.Decimal
		wantErr     error
	}{
		{
			name:        "percentage discount",
			repo:        &mockCouponRepo{rule: percentRule("10")},
			orderAmount: d("200"),
			wantAmount:  d("20"),
		},
		{
			name: "fixed discount",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := validWindow
				r.Code = "FLAT50"
				r.Type = TypeFixed
				r.Value = d("50")
				return &r
			}()},
			orderAmount: d("200"),
			wantAmount:  d("50"),
		},
		{
			name:        "unknown code",
			repo:        &mockCouponRepo{err: ErrNotFound},
			orderAmount: d("200"),
			wantErr:     ErrNotFound,
		},
		{
			name: "expired",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.ValidUntil = pastTime
				return &r
			}()},
			orderAmount: d("200"),
			wantErr:     ErrExpired,
		},
		{
			name: "not yet valid",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.ValidFrom = futureTime
				return &r
			}()},
			orderAmount: d("200"),
			wantErr:     ErrExpired,
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.UsageLimit = ptr(3)
				r.UsedCount = 3
				return &r
			}()},
			orderAmount: d("200"),
			wantErr:     ErrUsageLimitReached,
		},
		{
			name: "usage under limit succeeds",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.UsageLimit = ptr(3)
				r.UsedCount = 2
				return &r
			}()},
			orderAmount: d("200"),
			wantAmount:  d("20"),
		},
		{
			name: "no usage limit ignores used count",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.UsedCount = 9999
				return &r
			}()},
			orderAmount: d("200"),
			wantAmount:  d("20"),
		},
		{
			name: "minimum order amount not met",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.MinOrderAmount = d("150")
				return &r
			}()},
			orderAmount: d("100"),
			wantErr:     &MinimumNotMetError{},
		},
		{
			name: "percentage capped by max discount",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.MinOrderAmount = d("150")
				r.MaxDiscount = ptr(d("15"))
				return &r
			}()},
			orderAmount: d("200"),
			wantAmount:  d("15"),
		},
		{
			name: "fixed discount capped to order amount",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := validWindow
				r.Code = "FLAT500"
				r.Type = TypeFixed
				r.Value = d("500")
				return &r
			}()},
			orderAmount: d("80"),
			wantAmount:  d("80"),
		},
		{
			name: "category restriction mismatch",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.Categories = []string{"vegetables"}
				return &r
			}()},
			orderAmount: d("200"),
			categories:  []string{"fruits", "dairy"},
			wantErr:     ErrCategoryMismatch,
		},
		{
			name: "category restriction match",
			repo: &mockCouponRepo{rule: func() *Rule {
				r := *percentRule("10")
				r.Categories = []string{"vegetables", "fruits"}
				return &r
			}()},
			orderAmount: d("200"),
			categories:  []string{"fruits"},
			wantAmount:  d("20"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), "CODE", tt.orderAmount, tt.categories)

			if tt.wantErr != nil {
				require.Error(t, err)
				if _, ok := tt.wantErr.(*MinimumNotMetError); ok {
					var minErr *MinimumNotMetError
					require.ErrorAs(t, err, &minErr)
				} else {
					require.ErrorIs(t, err, tt.wantErr)
				}
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
		})
	}
}

func TestNewRepoValidatorAt_UsesInjectedClock(t *testing.T) {
	// A window far in the past only validates through the injected clock,
	// never through the wall clock.
	windowStart := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockCouponRepo{rule: &Rule{
		Code:       "RETRO",
		Type:       TypeFixed,
		Value:      d("25"),
		ValidFrom:  windowStart,
		ValidUntil: windowStart.Add(24 * time.Hour),
		Active:     true,
	}}

	inside := NewRepoValidatorAt(repo, func() time.Time { return windowStart.Add(time.Hour) })
	got, err := inside.Validate(context.Background(), "RETRO", d("200"), nil)
	require.NoError(t, err)
	assert.True(t, d("25").Equal(got.Amount))

	outside := NewRepoValidator(repo)
	_, err = outside.Validate(context.Background(), "RETRO", d("200"), nil)
	require.ErrorIs(t, err, ErrExpired)
}

func TestCalculateDiscount_NeverExceedsOrderAmount(t *testing.T) {
	rule := &Rule{
		Type:        TypePercentage,
		Value:       d("100"),
		MaxDiscount: ptr(d("10000")),
	}
	got := CalculateDiscount(rule, d("42.50"))
	assert.True(t, d("42.50").Equal(got))
}
