package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfline/storefront/internal/domain/offer"
)

// Active/deleted flags are filtered here; the time window is checked by the
// resolver against its injected clock.
const findOffersSQL = `SELECT id, type, target_id, discount_type, value, max_discount,
		start_date, end_date, priority, active, deleted
	FROM offers
	WHERE type = $1 AND target_id = $2 AND active = TRUE AND deleted = FALSE
	ORDER BY priority DESC`

var _ offer.Repository = (*OfferRepository)(nil)

// OfferRepository implements offer.Repository backed by PostgreSQL.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository returns an OfferRepository that uses the given pool.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

// FindByProduct returns live product-scoped offers for the product.
func (r *OfferRepository) FindByProduct(ctx context.Context, productID string) ([]offer.Offer, error) {
	return r.find(ctx, offer.TypeProduct, productID)
}

// FindByCategory returns live category-scoped offers for the category.
func (r *OfferRepository) FindByCategory(ctx context.Context, categoryID string) ([]offer.Offer, error) {
	return r.find(ctx, offer.TypeCategory, categoryID)
}

func (r *OfferRepository) find(ctx context.Context, typ offer.Type, targetID string) ([]offer.Offer, error) {
	rows, err := r.pool.Query(ctx, findOffersSQL, string(typ), targetID)
	if err != nil {
		return nil, fmt.Errorf("finding %s offers for %q: %w", typ, targetID, err)
	}
	return pgx.CollectRows(rows, scanOffer)
}

func scanOffer(row pgx.CollectableRow) (offer.Offer, error) {
	var (
		o            offer.Offer
		typ          string
		discountType string
	)
	err := row.Scan(
		&o.ID, &typ, &o.TargetID, &discountType, &o.Value, &o.MaxDiscount,
		&o.StartDate, &o.EndDate, &o.Priority, &o.Active, &o.Deleted,
	)
	o.Type = offer.Type(typ)
	o.DiscountType = offer.DiscountType(discountType)
	return o, err
}
