package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfline/storefront/internal/domain/cart"
	"github.com/shelfline/storefront/internal/domain/catalog"
	"github.com/shelfline/storefront/internal/domain/coupon"
	"github.com/shelfline/storefront/internal/domain/offer"
)

type mockCatalog struct {
	products   map[string]*catalog.Product
	variants   map[string]*catalog.Variant
	categories map[string]*catalog.Category
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	if p, ok := m.products[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrProductNotFound
}

func (m *mockCatalog) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	if v, ok := m.variants[id]; ok {
		return v, nil
	}
	return nil, catalog.ErrVariantNotFound
}

func (m *mockCatalog) GetCategory(_ context.Context, id string) (*catalog.Category, error) {
	if c, ok := m.categories[id]; ok {
		return c, nil
	}
	return nil, catalog.ErrCategoryNotFound
}

type mockCarts struct {
	carts map[string]*cart.Cart
}

func (m *mockCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return &cart.Cart{UserID: userID}, nil
}

type mockOffers struct {
	byProduct map[string][]offer.Offer
}

func (m *mockOffers) FindByProduct(_ context.Context, productID string) ([]offer.Offer, error) {
	return m.byProduct[productID], nil
}

func (m *mockOffers) FindByCategory(_ context.Context, _ string) ([]offer.Offer, error) {
	return nil, nil
}

type mockCoupons struct {
	rules map[string]*coupon.Rule
}

func (m *mockCoupons) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	if r, ok := m.rules[code]; ok {
		return r, nil
	}
	return nil, coupon.ErrNotFound
}

func (m *mockCoupons) CountUserUsage(_ context.Context, _, _ string) (int, error) {
	return 0, nil
}

// fixture builds an engine over a catalog with one active category "tees" and
// products p1 (variant v1, ₹500) and p2 (variant v2, ₹250).
type fixture struct {
	catalog *mockCatalog
	carts   *mockCarts
	offers  *mockOffers
	coupons *mockCoupons
	engine  *Engine
}

func newFixture() *fixture {
	f := &fixture{
		catalog: &mockCatalog{
			products: map[string]*catalog.Product{
				"p1": {ID: "p1", Name: "Crew Tee", CategoryID: "tees", Status: catalog.StatusActive},
				"p2": {ID: "p2", Name: "Pocket Tee", CategoryID: "tees", Status: catalog.StatusActive},
			},
			variants: map[string]*catalog.Variant{
				"v1": {ID: "v1", ProductID: "p1", Price: decimal.RequireFromString("500"), Stock: 10, Listed: true},
				"v2": {ID: "v2", ProductID: "p2", Price: decimal.RequireFromString("250"), Stock: 10, Listed: true},
			},
			categories: map[string]*catalog.Category{
				"tees": {ID: "tees", Name: "T-Shirts", Active: true},
			},
		},
		carts:   &mockCarts{carts: map[string]*cart.Cart{}},
		offers:  &mockOffers{byProduct: map[string][]offer.Offer{}},
		coupons: &mockCoupons{rules: map[string]*coupon.Rule{}},
	}

	resolver := offer.NewResolver(f.offers)
	validator := coupon.NewValidator(f.coupons)
	f.engine = NewEngine(f.catalog, f.carts, resolver, validator)
	return f
}

func (f *fixture) setCart(userID string, lines ...cart.Line) {
	f.carts.carts[userID] = &cart.Cart{UserID: userID, Lines: lines}
}

func liveCoupon(code string) *coupon.Rule {
	return &coupon.Rule{
		Code:         code,
		DiscountType: coupon.DiscountPercentage,
		Value:        dec("10"),
		MaxDiscount:  dec("100"),
		StartDate:    time.Now().Add(-24 * time.Hour),
		EndDate:      time.Now().Add(24 * time.Hour),
		Active:       true,
	}
}

func TestQuote_EmptyCart(t *testing.T) {
	f := newFixture()

	q, err := f.engine.Quote(context.Background(), NewSession("u1"))
	require.NoError(t, err)
	assert.Empty(t, q.Lines)
	assert.True(t, q.FinalAmount.IsZero())
}

func TestQuote_SubtotalTaxAndFreeShipping(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 2})

	q, err := f.engine.Quote(context.Background(), NewSession("u1"))
	require.NoError(t, err)

	// 2 x 500 = 1000; 10% tax = 100; shipping waived at >= 500.
	assert.True(t, q.Subtotal.Equal(dec("1000")))
	assert.True(t, q.Tax.Equal(dec("100")))
	assert.True(t, q.Shipping.IsZero())
	assert.True(t, q.FinalAmount.Equal(dec("1100")))
}

func TestQuote_ShippingBelowThreshold(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p2", VariantID: "v2", Quantity: 1})

	q, err := f.engine.Quote(context.Background(), NewSession("u1"))
	require.NoError(t, err)

	// 250 + 25 tax + 50 shipping.
	assert.True(t, q.Subtotal.Equal(dec("250")))
	assert.True(t, q.Tax.Equal(dec("25")))
	assert.True(t, q.Shipping.Equal(dec("50")))
	assert.True(t, q.FinalAmount.Equal(dec("325")))
}

func TestQuote_CouponDiscount(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 2})
	f.coupons.rules["SAVE10"] = liveCoupon("SAVE10")

	sess := NewSession("u1")
	require.NoError(t, sess.ApplyCoupon("SAVE10"))

	q, err := f.engine.Quote(context.Background(), sess)
	require.NoError(t, err)

	// 1000 - 100 coupon + 100 tax = 1000.
	assert.Equal(t, "SAVE10", q.CouponCode)
	assert.True(t, q.Discount.Equal(dec("100")))
	assert.True(t, q.FinalAmount.Equal(dec("1000")))

	// The whole-order discount is distributed onto the single line.
	require.Len(t, q.Lines, 1)
	assert.True(t, q.Lines[0].CouponShare.Equal(dec("100")))
}

func TestQuote_CouponSharesAcrossLines(t *testing.T) {
	f := newFixture()
	f.setCart("u1",
		cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 1}, // 500
		cart.Line{ProductID: "p2", VariantID: "v2", Quantity: 1}, // 250
	)
	rule := liveCoupon("SAVE10")
	rule.MaxDiscount = decimal.Zero // uncapped 10% of 750 = 75
	f.coupons.rules["SAVE10"] = rule

	sess := NewSession("u1")
	require.NoError(t, sess.ApplyCoupon("SAVE10"))

	q, err := f.engine.Quote(context.Background(), sess)
	require.NoError(t, err)

	require.Len(t, q.Lines, 2)
	assert.True(t, q.Discount.Equal(dec("75")))
	assert.True(t, q.Lines[0].CouponShare.Equal(dec("50")))
	assert.True(t, q.Lines[1].CouponShare.Equal(dec("25")))
}

func TestQuote_CouponComposesWithOffer(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 2})
	// 20% product offer: 500 -> 400 per unit, subtotal 800.
	f.offers.byProduct["p1"] = []offer.Offer{{
		ID:           "summer",
		Type:         offer.TypeProduct,
		TargetID:     "p1",
		DiscountType: offer.DiscountPercentage,
		Value:        dec("20"),
		StartDate:    time.Now().Add(-time.Hour),
		EndDate:      time.Now().Add(time.Hour),
		Active:       true,
	}}
	rule := liveCoupon("SAVE10")
	rule.MaxDiscount = decimal.Zero
	f.coupons.rules["SAVE10"] = rule

	sess := NewSession("u1")
	require.NoError(t, sess.ApplyCoupon("SAVE10"))

	q, err := f.engine.Quote(context.Background(), sess)
	require.NoError(t, err)

	require.Len(t, q.Lines, 1)
	line := q.Lines[0]
	assert.Equal(t, "summer", line.OfferID)
	assert.True(t, line.OfferDiscount.Equal(dec("100")))
	assert.True(t, line.FinalPrice.Equal(dec("400")))
	assert.True(t, q.Subtotal.Equal(dec("800")))

	// The coupon is evaluated against the offer-discounted subtotal.
	assert.True(t, q.Discount.Equal(dec("80")))
	// 800 - 80 + 80 tax + 0 shipping.
	assert.True(t, q.FinalAmount.Equal(dec("800")))
}

func TestQuote_MinPurchaseRejection(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p2", VariantID: "v2", Quantity: 1}) // 250
	rule := liveCoupon("BIG")
	rule.MinPurchase = dec("500")
	f.coupons.rules["BIG"] = rule

	sess := NewSession("u1")
	require.NoError(t, sess.ApplyCoupon("BIG"))

	_, err := f.engine.Quote(context.Background(), sess)
	var couponErr *coupon.Error
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, "Minimum purchase of ₹500 required", couponErr.Message)
}

func TestQuote_CouponOutOfScope(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p2", VariantID: "v2", Quantity: 1})
	rule := liveCoupon("P1ONLY")
	rule.ApplicableProducts = []string{"p1"}
	f.coupons.rules["P1ONLY"] = rule

	sess := NewSession("u1")
	require.NoError(t, sess.ApplyCoupon("P1ONLY"))

	_, err := f.engine.Quote(context.Background(), sess)
	var couponErr *coupon.Error
	require.ErrorAs(t, err, &couponErr)
	assert.Equal(t, "Coupon is not applicable to the items in your cart", couponErr.Message)
}

func TestQuote_UnavailableProduct(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 1})
	f.catalog.products["p1"].Status = catalog.StatusBlocked

	_, err := f.engine.Quote(context.Background(), NewSession("u1"))
	var unavailable *catalog.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "Crew Tee", unavailable.ProductName)
}

func TestQuote_InactiveCategory(t *testing.T) {
	f := newFixture()
	f.setCart("u1", cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 1})
	f.catalog.categories["tees"].Active = false

	_, err := f.engine.Quote(context.Background(), NewSession("u1"))
	var unavailable *catalog.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestQuote_SalePriceOverridesPrice(t *testing.T) {
	f := newFixture()
	f.catalog.variants["v1"].SalePrice = dec("450")
	f.setCart("u1", cart.Line{ProductID: "p1", VariantID: "v1", Quantity: 1})

	q, err := f.engine.Quote(context.Background(), NewSession("u1"))
	require.NoError(t, err)

	require.Len(t, q.Lines, 1)
	assert.True(t, q.Lines[0].BasePrice.Equal(dec("450")))
	assert.True(t, q.Subtotal.Equal(dec("450")))
}
