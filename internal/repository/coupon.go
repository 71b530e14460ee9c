package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfline/storefront/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, max_discount, min_purchase,
			start_date, end_date, usage_limit, per_user_limit, used_count,
			applicable_products, applicable_categories, active, deleted
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	countCouponUsageSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_code = $1 AND user_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), regardless of
// active/deleted flags; the validator distinguishes missing from disabled.
// Returns coupon.ErrNotFound when no coupon has the code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// CountUserUsage returns how many times the user has redeemed the coupon.
func (r *CouponRepository) CountUserUsage(ctx context.Context, code, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, countCouponUsageSQL, code, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting usage of coupon %q by %q: %w", code, userID, err)
	}
	return count, nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
	)
	err := row.Scan(
		&rule.Code, &discountType, &rule.Value, &rule.MaxDiscount, &rule.MinPurchase,
		&rule.StartDate, &rule.EndDate, &rule.UsageLimit, &rule.PerUserLimit, &rule.UsedCount,
		&rule.ApplicableProducts, &rule.ApplicableCategories, &rule.Active, &rule.Deleted,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	return rule, err
}
