// Package pricing composes offers, coupons, tax, and shipping into cart and
// checkout totals, and distributes whole-order coupon discounts across line
// items so that later per-item refunds reverse them exactly.
package pricing

import "github.com/shopspring/decimal"

// Fixed pricing policy: flat 10% tax, flat ₹50 shipping waived at ₹500.
// Both are computed once over the full order subtotal.
var (
	taxRate           = decimal.NewFromFloat(0.10)
	shippingFee       = decimal.NewFromInt(50)
	freeShippingAbove = decimal.NewFromInt(500)
)

// Tax returns the flat 10% tax on a subtotal, rounded to 2 places.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRate).Round(2)
}

// Shipping returns the flat shipping fee, waived for subtotals of ₹500 or more.
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(freeShippingAbove) {
		return decimal.Zero
	}
	return shippingFee
}

// Distribute allocates a whole-order discount across line totals
// proportionally, rounding each share to 2 places. The last line absorbs the
// rounding remainder so the shares always sum to the discount exactly.
func Distribute(discount decimal.Decimal, lineTotals []decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lineTotals))
	if len(lineTotals) == 0 || !discount.IsPositive() {
		return shares
	}

	sum := decimal.Zero
	for _, t := range lineTotals {
		sum = sum.Add(t)
	}
	if !sum.IsPositive() {
		return shares
	}

	remaining := discount
	for i, t := range lineTotals {
		if i == len(lineTotals)-1 {
			shares[i] = remaining
			break
		}
		share := discount.Mul(t).Div(sum).Round(2)
		// Never hand out more than is left to allocate.
		if share.GreaterThan(remaining) {
			share = remaining
		}
		shares[i] = share
		remaining = remaining.Sub(share)
	}
	return shares
}
