package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfline/storefront/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, number, user_id, address, items, subtotal, discount, tax,
			shipping, final_amount, coupon_code, payment_method, payment_status,
			payment_ref, status, history, created_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, number, user_id, address, items, subtotal, discount, tax,
			shipping, final_amount, coupon_code, payment_method, payment_status,
			payment_ref, status, history, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. The
// address snapshot, line items, and status history live in JSONB columns;
// the monetary aggregates are NUMERIC so invariants can be checked in SQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get returns a single order by its identifier.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns the user's orders, most recent first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		addressJSON   []byte
		itemsJSON     []byte
		historyJSON   []byte
		paymentMethod string
		paymentStatus string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &addressJSON, &itemsJSON,
		&o.Subtotal, &o.Discount, &o.Tax, &o.Shipping, &o.FinalAmount,
		&o.CouponCode, &paymentMethod, &paymentStatus,
		&o.PaymentRef, &status, &historyJSON, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)

	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &o.History); err != nil {
		return o, fmt.Errorf("unmarshaling order history: %w", err)
	}
	return o, nil
}
