package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfline/storefront/internal/domain/cart"
	"github.com/shelfline/storefront/internal/domain/order"
)

const (
	getCartSQL = `SELECT product_id, variant_id, quantity
		FROM cart_items WHERE user_id = $1 ORDER BY position`

	getAddressSQL = `SELECT id, name, line1, line2, city, state, pincode, phone
		FROM addresses WHERE id = $1 AND user_id = $2`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart lines in insertion order. A user with no lines
// gets an empty cart, not an error.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.VariantID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	return &cart.Cart{UserID: userID, Lines: lines}, nil
}

var _ order.AddressRepository = (*AddressRepository)(nil)

// AddressRepository implements order.AddressRepository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// Get returns the address only when it belongs to the user.
func (r *AddressRepository) Get(ctx context.Context, id, userID string) (*order.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	a, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (order.Address, error) {
		var a order.Address
		err := row.Scan(&a.ID, &a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.Pincode, &a.Phone)
		return a, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrAddressNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}
