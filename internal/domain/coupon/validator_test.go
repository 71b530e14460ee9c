package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRepo serves one rule per code and fixed per-user usage counts.
type mockRepo struct {
	rules map[string]*Rule
	usage map[string]int // code+":"+userID -> count
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Rule, error) {
	if r, ok := m.rules[code]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

func (m *mockRepo) CountUserUsage(_ context.Context, code, userID string) (int, error) {
	return m.usage[code+":"+userID], nil
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func liveRule(code string) *Rule {
	return &Rule{
		Code:         code,
		DiscountType: DiscountPercentage,
		Value:        dec("10"),
		StartDate:    testNow.Add(-24 * time.Hour),
		EndDate:      testNow.Add(24 * time.Hour),
		Active:       true,
	}
}

func newTestValidator(repo Repository) *Validator {
	v := NewValidator(repo)
	v.now = func() time.Time { return testNow }
	return v
}

func TestValidate_UnknownCode(t *testing.T) {
	v := newTestValidator(&mockRepo{})

	res, err := v.Validate(context.Background(), "NOPE", "u1", dec("100"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Invalid coupon code", res.Message)
}

func TestValidate_InactiveOrDeleted(t *testing.T) {
	inactive := liveRule("OFF")
	inactive.Active = false
	deleted := liveRule("GONE")
	deleted.Deleted = true

	v := newTestValidator(&mockRepo{rules: map[string]*Rule{"OFF": inactive, "GONE": deleted}})

	for _, code := range []string{"OFF", "GONE"} {
		res, err := v.Validate(context.Background(), code, "u1", dec("100"))
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "Invalid coupon code", res.Message)
	}
}

func TestValidate_NotYetStarted(t *testing.T) {
	rule := liveRule("SOON")
	rule.StartDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	rule.EndDate = time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC)

	v := newTestValidator(&mockRepo{rules: map[string]*Rule{"SOON": rule}})

	res, err := v.Validate(context.Background(), "SOON", "u1", dec("100"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Coupon will be valid from 01 Jul 2025", res.Message)
}

func TestValidate_Expired(t *testing.T) {
	rule := liveRule("OLD")
	rule.StartDate = testNow.Add(-48 * time.Hour)
	rule.EndDate = testNow.Add(-24 * time.Hour)

	v := newTestValidator(&mockRepo{rules: map[string]*Rule{"OLD": rule}})

	res, err := v.Validate(context.Background(), "OLD", "u1", dec("100"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Coupon has expired", res.Message)
}

func TestValidate_UsageLimitReached(t *testing.T) {
	rule := liveRule("BUSY")
	rule.UsageLimit = 100
	rule.UsedCount = 100

	v := newTestValidator(&mockRepo{rules: map[string]*Rule{"BUSY": rule}})

	res, err := v.Validate(context.Background(), "BUSY", "u1", dec("100"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Coupon usage limit reached", res.Message)
}

func TestValidate_PerUserLimitReached(t *testing.T) {
	rule := liveRule("ONCE")
	rule.PerUserLimit = 1

	v := newTestValidator(&mockRepo{
		rules: map[string]*Rule{"ONCE": rule},
		usage: map[string]int{"ONCE:u1": 1},
	})

	res, err := v.Validate(context.Background(), "ONCE", "u1", dec("100"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "You have already used this coupon", res.Message)

	// A different user is unaffected.
	res, err = v.Validate(context.Background(), "ONCE", "u2", dec("100"))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidate_MinPurchase(t *testing.T) {
	rule := liveRule("BIG")
	rule.MinPurchase = dec("500")

	v := newTestValidator(&mockRepo{rules: map[string]*Rule{"BIG": rule}})

	res, err := v.Validate(context.Background(), "BIG", "u1", dec("499.99"))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Minimum purchase of ₹500 required", res.Message)

	res, err = v.Validate(context.Background(), "BIG", "u1", dec("500"))
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidate_Success(t *testing.T) {
	v := newTestValidator(&mockRepo{rules: map[string]*Rule{"SAVE10": liveRule("SAVE10")}})

	res, err := v.Validate(context.Background(), "SAVE10", "u1", dec("1000"))
	require.NoError(t, err)
	assert.True(t, res.Valid)
	require.NotNil(t, res.Rule)
	assert.Equal(t, "SAVE10", res.Rule.Code)
	assert.True(t, res.Discount.Equal(dec("100")))
	assert.Empty(t, res.Message)
}

func TestDiscountOn_PercentageWithCap(t *testing.T) {
	rule := &Rule{DiscountType: DiscountPercentage, Value: dec("20"), MaxDiscount: dec("150")}

	// 20% of 1000 = 200, capped at 150.
	assert.True(t, rule.DiscountOn(dec("1000")).Equal(dec("150")))
	// 20% of 500 = 100, under the cap.
	assert.True(t, rule.DiscountOn(dec("500")).Equal(dec("100")))
}

func TestDiscountOn_FixedCappedAtSubtotal(t *testing.T) {
	rule := &Rule{DiscountType: DiscountFixed, Value: dec("90")}
	assert.True(t, rule.DiscountOn(dec("60")).Equal(dec("60")))
}

func TestDiscountOn_RoundsToPaise(t *testing.T) {
	rule := &Rule{DiscountType: DiscountPercentage, Value: dec("10")}
	assert.True(t, rule.DiscountOn(dec("99.99")).Equal(dec("10")))
}

func TestInScope(t *testing.T) {
	lines := []ScopeLine{
		{ProductID: "p1", CategoryID: "c1"},
		{ProductID: "p2", CategoryID: "c2"},
	}

	t.Run("unscoped rule applies everywhere", func(t *testing.T) {
		rule := &Rule{}
		ok, msg := rule.InScope(lines)
		assert.True(t, ok)
		assert.Empty(t, msg)
	})

	t.Run("product match", func(t *testing.T) {
		rule := &Rule{ApplicableProducts: []string{"p2"}}
		ok, _ := rule.InScope(lines)
		assert.True(t, ok)
	})

	t.Run("category match", func(t *testing.T) {
		rule := &Rule{ApplicableCategories: []string{"c2"}}
		ok, _ := rule.InScope(lines)
		assert.True(t, ok)
	})

	t.Run("product mismatch", func(t *testing.T) {
		rule := &Rule{ApplicableProducts: []string{"p9"}}
		ok, msg := rule.InScope(lines)
		assert.False(t, ok)
		assert.Equal(t, "Coupon is not applicable to the items in your cart", msg)
	})

	t.Run("category mismatch", func(t *testing.T) {
		rule := &Rule{ApplicableCategories: []string{"c9"}}
		ok, msg := rule.InScope(lines)
		assert.False(t, ok)
		assert.Equal(t, "Coupon is not applicable to the categories in your cart", msg)
	})
}
