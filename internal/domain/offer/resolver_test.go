package offer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo serves fixed offers per target ID.
type mockRepo struct {
	byProduct  map[string][]Offer
	byCategory map[string][]Offer
}

func (m *mockRepo) FindByProduct(_ context.Context, productID string) ([]Offer, error) {
	return m.byProduct[productID], nil
}

func (m *mockRepo) FindByCategory(_ context.Context, categoryID string) ([]Offer, error) {
	return m.byCategory[categoryID], nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func liveWindow(o Offer) Offer {
	o.StartDate = testNow.Add(-24 * time.Hour)
	o.EndDate = testNow.Add(24 * time.Hour)
	o.Active = true
	return o
}

func newTestResolver(repo Repository) *Resolver {
	r := NewResolver(repo)
	r.now = func() time.Time { return testNow }
	return r
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBest_NoOffers(t *testing.T) {
	r := newTestResolver(&mockRepo{})

	best, err := r.Best(context.Background(), "p1", "c1", dec("100"))
	require.NoError(t, err)
	assert.Nil(t, best)
}

func TestBest_ProductOfferOnly(t *testing.T) {
	repo := &mockRepo{
		byProduct: map[string][]Offer{
			"p1": {liveWindow(Offer{ID: "o1", Type: TypeProduct, DiscountType: DiscountPercentage, Value: dec("10")})},
		},
	}
	r := newTestResolver(repo)

	best, err := r.Best(context.Background(), "p1", "c1", dec("100"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "o1", best.ID)
	assert.True(t, best.DiscountOn(dec("100")).Equal(dec("10")))
}

func TestBest_LargerDiscountWins(t *testing.T) {
	repo := &mockRepo{
		byProduct: map[string][]Offer{
			"p1": {liveWindow(Offer{ID: "product-10pct", DiscountType: DiscountPercentage, Value: dec("10")})},
		},
		byCategory: map[string][]Offer{
			"c1": {liveWindow(Offer{ID: "category-flat-25", DiscountType: DiscountFixed, Value: dec("25")})},
		},
	}
	r := newTestResolver(repo)

	// 10% of 100 = 10 < flat 25: category offer wins.
	best, err := r.Best(context.Background(), "p1", "c1", dec("100"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "category-flat-25", best.ID)

	// 10% of 500 = 50 > flat 25: product offer wins.
	best, err = r.Best(context.Background(), "p1", "c1", dec("500"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "product-10pct", best.ID)
}

func TestBest_TieBrokenByPriority(t *testing.T) {
	repo := &mockRepo{
		byProduct: map[string][]Offer{
			"p1": {liveWindow(Offer{ID: "product", DiscountType: DiscountFixed, Value: dec("20"), Priority: 1})},
		},
		byCategory: map[string][]Offer{
			"c1": {liveWindow(Offer{ID: "category", DiscountType: DiscountFixed, Value: dec("20"), Priority: 5})},
		},
	}
	r := newTestResolver(repo)

	best, err := r.Best(context.Background(), "p1", "c1", dec("100"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "category", best.ID)
}

func TestBest_TieEqualPriorityPrefersProduct(t *testing.T) {
	repo := &mockRepo{
		byProduct: map[string][]Offer{
			"p1": {liveWindow(Offer{ID: "product", DiscountType: DiscountFixed, Value: dec("20"), Priority: 3})},
		},
		byCategory: map[string][]Offer{
			"c1": {liveWindow(Offer{ID: "category", DiscountType: DiscountFixed, Value: dec("20"), Priority: 3})},
		},
	}
	r := newTestResolver(repo)

	best, err := r.Best(context.Background(), "p1", "c1", dec("100"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "product", best.ID)
}

func TestBest_SkipsExpiredAndInactive(t *testing.T) {
	expired := Offer{ID: "expired", DiscountType: DiscountFixed, Value: dec("50"), Active: true}
	expired.StartDate = testNow.Add(-48 * time.Hour)
	expired.EndDate = testNow.Add(-24 * time.Hour)

	inactive := liveWindow(Offer{ID: "inactive", DiscountType: DiscountFixed, Value: dec("50")})
	inactive.Active = false

	future := Offer{ID: "future", DiscountType: DiscountFixed, Value: dec("50"), Active: true}
	future.StartDate = testNow.Add(24 * time.Hour)
	future.EndDate = testNow.Add(48 * time.Hour)

	repo := &mockRepo{
		byProduct: map[string][]Offer{
			"p1": {expired, inactive, future, liveWindow(Offer{ID: "live", DiscountType: DiscountFixed, Value: dec("5")})},
		},
	}
	r := newTestResolver(repo)

	best, err := r.Best(context.Background(), "p1", "", dec("100"))
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "live", best.ID)
}

func TestDiscountOn_PercentageCappedAtMax(t *testing.T) {
	o := Offer{DiscountType: DiscountPercentage, Value: dec("50"), MaxDiscount: dec("100")}

	// 50% of 1000 = 500, capped at 100.
	assert.True(t, o.DiscountOn(dec("1000")).Equal(dec("100")))
	// 50% of 100 = 50, below the cap.
	assert.True(t, o.DiscountOn(dec("100")).Equal(dec("50")))
}

func TestDiscountOn_NeverExceedsPrice(t *testing.T) {
	o := Offer{DiscountType: DiscountFixed, Value: dec("80")}
	assert.True(t, o.DiscountOn(dec("30")).Equal(dec("30")))
}

func TestDiscountOn_UnknownTypeIsZero(t *testing.T) {
	o := Offer{DiscountType: "bogo", Value: dec("10")}
	assert.True(t, o.DiscountOn(dec("100")).IsZero())
}
