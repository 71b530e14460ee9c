// Package offer resolves the single best catalog discount for an item at
// browse and cart time. Offers are time-windowed rules scoped to a product or
// a category; when both apply, the one yielding the larger discount wins.
package offer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Type scopes an offer to a product or a whole category.
type Type string

const (
	TypeProduct  Type = "product"
	TypeCategory Type = "category"
)

// DiscountType enumerates the supported offer discount strategies.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the item price.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a flat amount off the item price.
	DiscountFixed DiscountType = "fixed"
)

// Offer is a time-windowed discount rule maintained by catalog management.
type Offer struct {
	ID           string
	Type         Type
	TargetID     string
	DiscountType DiscountType
	Value        decimal.Decimal
	// MaxDiscount caps percentage discounts when positive.
	MaxDiscount decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
	Priority    int
	Active      bool
	Deleted     bool
}

// DiscountOn computes the discount this offer yields against the given unit
// price. Percentage values are capped at MaxDiscount when set; the result
// never exceeds the price and is never negative.
func (o Offer) DiscountOn(price decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch o.DiscountType {
	case DiscountPercentage:
		amount = price.Mul(o.Value).Div(hundred)
		if o.MaxDiscount.IsPositive() && amount.GreaterThan(o.MaxDiscount) {
			amount = o.MaxDiscount
		}
	case DiscountFixed:
		amount = o.Value
	default:
		return decimal.Zero
	}
	if amount.GreaterThan(price) {
		amount = price
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// activeAt reports whether the offer is live at the given instant.
func (o Offer) activeAt(now time.Time) bool {
	if !o.Active || o.Deleted {
		return false
	}
	if now.Before(o.StartDate) || now.After(o.EndDate) {
		return false
	}
	return true
}

var hundred = decimal.NewFromInt(100)

// Repository provides lookup of offer rules by their target.
type Repository interface {
	FindByProduct(ctx context.Context, productID string) ([]Offer, error)
	FindByCategory(ctx context.Context, categoryID string) ([]Offer, error)
}
