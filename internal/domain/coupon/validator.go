package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validation is the result of checking a coupon against a user and subtotal.
// When Valid is false, Message carries the specific rejection reason; when
// Valid is true, Rule holds the fetched rule and Discount the computed amount.
type Validation struct {
	Valid    bool
	Rule     *Rule
	Discount decimal.Decimal
	Message  string
}

// Validator checks coupon eligibility. The checks run in a fixed order and
// short-circuit on the first failure, each producing a distinct message;
// callers surface Message verbatim.
type Validator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a Validator backed by the given Repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo, now: time.Now}
}

// Validate runs the eligibility pipeline for code against the user and order
// subtotal. The returned error is reserved for infrastructure failures;
// business rejections come back as Validation{Valid: false}.
//
// Check order: existence/active, start date, end date, global usage limit,
// per-user limit, minimum purchase.
func (v *Validator) Validate(ctx context.Context, code, userID string, subtotal decimal.Decimal) (Validation, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return rejected("Invalid coupon code"), nil
		}
		return Validation{}, errors.Wrap(err, "lookup coupon")
	}
	if rule.Deleted || !rule.Active {
		return rejected("Invalid coupon code"), nil
	}

	now := v.now()
	if now.Before(rule.StartDate) {
		return rejected(fmt.Sprintf("Coupon will be valid from %s", rule.StartDate.Format("02 Jan 2006"))), nil
	}
	if now.After(rule.EndDate) {
		return rejected("Coupon has expired"), nil
	}

	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return rejected("Coupon usage limit reached"), nil
	}

	if userID != "" && rule.PerUserLimit > 0 {
		used, err := v.repo.CountUserUsage(ctx, rule.Code, userID)
		if err != nil {
			return Validation{}, errors.Wrap(err, "count coupon usage")
		}
		if used >= rule.PerUserLimit {
			return rejected("You have already used this coupon"), nil
		}
	}

	if subtotal.LessThan(rule.MinPurchase) {
		return rejected(fmt.Sprintf("Minimum purchase of ₹%s required", rule.MinPurchase.String())), nil
	}

	return Validation{
		Valid:    true,
		Rule:     rule,
		Discount: rule.DiscountOn(subtotal),
	}, nil
}

func rejected(msg string) Validation {
	return Validation{Valid: false, Message: msg}
}

// ScopeLine carries the identifiers needed to match a cart line against a
// coupon's applicable products and categories.
type ScopeLine struct {
	ProductID  string
	CategoryID string
}

// InScope reports whether the cart satisfies the rule's product/category
// scoping. A rule with no scoping applies to every cart; a scoped rule needs
// at least one matching line. The returned message is set only on rejection.
func (r *Rule) InScope(lines []ScopeLine) (bool, string) {
	if len(r.ApplicableProducts) == 0 && len(r.ApplicableCategories) == 0 {
		return true, ""
	}
	products := make(map[string]struct{}, len(r.ApplicableProducts))
	for _, id := range r.ApplicableProducts {
		products[id] = struct{}{}
	}
	categories := make(map[string]struct{}, len(r.ApplicableCategories))
	for _, id := range r.ApplicableCategories {
		categories[id] = struct{}{}
	}
	for _, line := range lines {
		if _, ok := products[line.ProductID]; ok {
			return true, ""
		}
		if _, ok := categories[line.CategoryID]; ok {
			return true, ""
		}
	}
	if len(r.ApplicableProducts) > 0 {
		return false, "Coupon is not applicable to the items in your cart"
	}
	return false, "Coupon is not applicable to the categories in your cart"
}
