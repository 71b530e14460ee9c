package offer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Resolver finds the best live offer for a product at a given price. It is a
// pure read: safe to call many times per request, no side effects.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Best returns the live offer yielding the largest discount against price,
// considering at most one product-scoped and one category-scoped offer.
// An exact discount tie is broken by higher Priority. It returns nil when no
// live offer applies.
func (r *Resolver) Best(ctx context.Context, productID, categoryID string, price decimal.Decimal) (*Offer, error) {
	now := r.now()

	productOffer, err := r.liveOffer(ctx, r.repo.FindByProduct, productID, now)
	if err != nil {
		return nil, errors.Wrap(err, "find product offers")
	}
	categoryOffer, err := r.liveOffer(ctx, r.repo.FindByCategory, categoryID, now)
	if err != nil {
		return nil, errors.Wrap(err, "find category offers")
	}

	switch {
	case productOffer == nil:
		return categoryOffer, nil
	case categoryOffer == nil:
		return productOffer, nil
	}

	pd := productOffer.DiscountOn(price)
	cd := categoryOffer.DiscountOn(price)
	switch {
	case pd.GreaterThan(cd):
		return productOffer, nil
	case cd.GreaterThan(pd):
		return categoryOffer, nil
	case productOffer.Priority >= categoryOffer.Priority:
		return productOffer, nil
	default:
		return categoryOffer, nil
	}
}

// liveOffer picks the first offer from find that is live at now. The
// repository filters on active/deleted flags; the time window is checked here
// so the resolver stays a pure function of the injected clock.
func (r *Resolver) liveOffer(
	ctx context.Context,
	find func(context.Context, string) ([]Offer, error),
	targetID string,
	now time.Time,
) (*Offer, error) {
	if targetID == "" {
		return nil, nil
	}
	found, err := find(ctx, targetID)
	if err != nil {
		return nil, err
	}
	for i := range found {
		if found[i].activeAt(now) {
			return &found[i], nil
		}
	}
	return nil, nil
}
