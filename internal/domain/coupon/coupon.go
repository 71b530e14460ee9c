// Package coupon implements code-redeemable checkout discounts: rule lookup,
// the ordered eligibility pipeline, discount computation, and cart scoping.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageExceeded is returned when atomic redemption finds a usage
	// limit already reached. After a successful validation this indicates a
	// lost race with a concurrent checkout; the transaction must abort.
	ErrUsageExceeded = errors.New("coupon usage limit exceeded")
)

// Error is a business-rule coupon rejection carrying the user-facing message.
// Callers clear the coupon from the checkout session when they receive one.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Rule defines a coupon's discount behaviour and eligibility constraints.
// A Rule is fetched once per request and treated as immutable for its
// duration; usage counters are only mutated through atomic redemption.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MaxDiscount caps the computed discount when positive.
	MaxDiscount decimal.Decimal
	// MinPurchase is the minimum order subtotal required to redeem.
	MinPurchase decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
	// UsageLimit caps total redemptions; zero means unlimited.
	UsageLimit int
	// PerUserLimit caps redemptions per user; zero means unlimited.
	PerUserLimit int
	UsedCount    int
	// ApplicableProducts/ApplicableCategories, when non-empty, restrict the
	// coupon to carts containing at least one matching line.
	ApplicableProducts   []string
	ApplicableCategories []string
	Active               bool
	Deleted              bool
}

// DiscountOn computes the coupon discount against an order subtotal.
// Percentage and fixed values are capped at MaxDiscount when set, then at the
// subtotal itself: a coupon can never push an order total negative.
func (r *Rule) DiscountOn(subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch r.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(r.Value).Div(hundred)
	case DiscountFixed:
		amount = r.Value
	default:
		return decimal.Zero
	}
	if r.MaxDiscount.IsPositive() && amount.GreaterThan(r.MaxDiscount) {
		amount = r.MaxDiscount
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

var hundred = decimal.NewFromInt(100)

// Usage records one redemption of a coupon by a user.
type Usage struct {
	UserID string
	UsedAt time.Time
}

// Repository provides lookup and atomic redemption of coupon rules.
type Repository interface {
	// FindByCode returns the rule for a code regardless of its active or
	// deleted flags; callers distinguish "never existed" from "disabled".
	// Returns ErrNotFound when no coupon has the code.
	FindByCode(ctx context.Context, code string) (*Rule, error)
	// CountUserUsage returns how many times the user has redeemed the code.
	CountUserUsage(ctx context.Context, code, userID string) (int, error)
}
