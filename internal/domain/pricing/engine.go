package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shelfline/storefront/internal/domain/cart"
	"github.com/shelfline/storefront/internal/domain/catalog"
	"github.com/shelfline/storefront/internal/domain/coupon"
	"github.com/shelfline/storefront/internal/domain/offer"
)

// Line is the priced breakdown of one cart line: base price, resolved offer
// discount, the resulting unit price, the line total, and the line's share of
// the order-level coupon discount.
type Line struct {
	ProductID   string
	ProductName string
	CategoryID  string
	VariantID   string
	Quantity    int

	BasePrice     decimal.Decimal
	OfferID       string
	OfferDiscount decimal.Decimal // per unit
	FinalPrice    decimal.Decimal // per unit, after offer
	ItemTotal     decimal.Decimal // FinalPrice * Quantity
	CouponShare   decimal.Decimal
}

// Quote is the complete priced view of a cart: per-line breakdowns and the
// order aggregates. Placement freezes these figures into the order record.
type Quote struct {
	Lines       []Line
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Shipping    decimal.Decimal
	FinalAmount decimal.Decimal
	CouponCode  string
}

// Engine prices carts. It fetches the coupon rule once per quote and treats
// it as immutable for the duration of the computation.
type Engine struct {
	catalog catalog.Repository
	carts   cart.Repository
	offers  *offer.Resolver
	coupons *coupon.Validator
}

// NewEngine creates a pricing Engine with the required collaborators.
func NewEngine(
	catalogRepo catalog.Repository,
	carts cart.Repository,
	offers *offer.Resolver,
	coupons *coupon.Validator,
) *Engine {
	return &Engine{
		catalog: catalogRepo,
		carts:   carts,
		offers:  offers,
		coupons: coupons,
	}
}

// Quote prices the session user's cart: per-line base price and best offer,
// subtotal, flat tax, threshold shipping, and the session coupon when one is
// applied. Offer and coupon discounts compose: the coupon is evaluated
// against the offer-discounted subtotal.
//
// Business rejections surface as *catalog.UnavailableError or *coupon.Error;
// other errors are infrastructure failures.
func (e *Engine) Quote(ctx context.Context, sess *Session) (*Quote, error) {
	c, err := e.carts.Get(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Lines) == 0 {
		return &Quote{}, nil
	}

	q := &Quote{Lines: make([]Line, 0, len(c.Lines))}
	scope := make([]coupon.ScopeLine, 0, len(c.Lines))

	for _, cl := range c.Lines {
		line, err := e.priceLine(ctx, cl)
		if err != nil {
			return nil, err
		}
		q.Lines = append(q.Lines, line)
		q.Subtotal = q.Subtotal.Add(line.ItemTotal)
		scope = append(scope, coupon.ScopeLine{ProductID: line.ProductID, CategoryID: line.CategoryID})
	}

	q.Tax = Tax(q.Subtotal)
	q.Shipping = Shipping(q.Subtotal)

	if sess.CouponCode != "" {
		if err := e.applyCoupon(ctx, sess, q, scope); err != nil {
			return nil, err
		}
	}

	q.FinalAmount = q.Subtotal.Sub(q.Discount).Add(q.Tax).Add(q.Shipping)
	if q.FinalAmount.IsNegative() {
		q.FinalAmount = decimal.Zero
	}
	q.FinalAmount = q.FinalAmount.Round(2)

	return q, nil
}

// priceLine resolves one cart line to its catalog records and prices it.
func (e *Engine) priceLine(ctx context.Context, cl cart.Line) (Line, error) {
	product, err := e.catalog.GetProduct(ctx, cl.ProductID)
	if err != nil {
		return Line{}, errors.Wrapf(err, "get product %s", cl.ProductID)
	}
	category, err := e.catalog.GetCategory(ctx, product.CategoryID)
	if err != nil {
		return Line{}, errors.Wrapf(err, "get category %s", product.CategoryID)
	}
	variant, err := e.catalog.GetVariant(ctx, cl.VariantID)
	if err != nil {
		return Line{}, errors.Wrapf(err, "get variant %s", cl.VariantID)
	}

	if !catalog.Purchasable(*product, *category) || !variant.Listed {
		return Line{}, &catalog.UnavailableError{ProductName: product.Name}
	}

	base := variant.BasePrice()
	best, err := e.offers.Best(ctx, product.ID, product.CategoryID, base)
	if err != nil {
		return Line{}, errors.Wrap(err, "resolve offer")
	}

	line := Line{
		ProductID:   product.ID,
		ProductName: product.Name,
		CategoryID:  product.CategoryID,
		VariantID:   variant.ID,
		Quantity:    cl.Quantity,
		BasePrice:   base,
		FinalPrice:  base,
	}
	if best != nil {
		line.OfferID = best.ID
		line.OfferDiscount = best.DiscountOn(base)
		line.FinalPrice = base.Sub(line.OfferDiscount)
	}
	line.ItemTotal = line.FinalPrice.Mul(decimal.NewFromInt(int64(cl.Quantity)))
	return line, nil
}

// applyCoupon validates the session coupon against the quoted subtotal,
// checks cart scope, and distributes the discount across lines.
func (e *Engine) applyCoupon(ctx context.Context, sess *Session, q *Quote, scope []coupon.ScopeLine) error {
	val, err := e.coupons.Validate(ctx, sess.CouponCode, sess.UserID, q.Subtotal)
	if err != nil {
		return errors.Wrap(err, "validate coupon")
	}
	if !val.Valid {
		return &coupon.Error{Message: val.Message}
	}
	if ok, msg := val.Rule.InScope(scope); !ok {
		return &coupon.Error{Message: msg}
	}

	q.CouponCode = val.Rule.Code
	q.Discount = val.Discount

	lineTotals := make([]decimal.Decimal, len(q.Lines))
	for i := range q.Lines {
		lineTotals[i] = q.Lines[i].ItemTotal
	}
	for i, share := range Distribute(q.Discount, lineTotals) {
		q.Lines[i].CouponShare = share
	}
	return nil
}
