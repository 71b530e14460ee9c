package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shelfline/storefront/internal/domain/settlement"
)

const (
	getRefundSQL = `SELECT id, order_id, user_id, items, amount, method, status,
			wallet_refunded, history, admin_notes, created_at, updated_at
		FROM refund_requests WHERE id = $1`

	listRefundsByUserSQL = `SELECT id, order_id, user_id, items, amount, method, status,
			wallet_refunded, history, admin_notes, created_at, updated_at
		FROM refund_requests WHERE user_id = $1 ORDER BY created_at DESC`

	hasOpenRefundSQL = `SELECT EXISTS (
		SELECT 1 FROM refund_requests
		WHERE order_id = $1 AND status NOT IN ('refund_completed', 'rejected'))`
)

var _ settlement.Repository = (*RefundRepository)(nil)

// RefundRepository implements settlement.Repository backed by PostgreSQL.
type RefundRepository struct {
	pool *pgxpool.Pool
}

// NewRefundRepository returns a RefundRepository that uses the given pool.
func NewRefundRepository(pool *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{pool: pool}
}

// Get returns a single refund request by its identifier.
func (r *RefundRepository) Get(ctx context.Context, id string) (*settlement.RefundRequest, error) {
	rows, err := r.pool.Query(ctx, getRefundSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting refund request %q: %w", id, err)
	}

	req, err := pgx.CollectExactlyOneRow(rows, scanRefund)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settlement.ErrNotFound
		}
		return nil, fmt.Errorf("getting refund request %q: %w", id, err)
	}
	return &req, nil
}

// ListByUser returns the user's refund requests, most recent first.
func (r *RefundRepository) ListByUser(ctx context.Context, userID string) ([]settlement.RefundRequest, error) {
	rows, err := r.pool.Query(ctx, listRefundsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing refund requests for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanRefund)
}

// HasOpen reports whether the order has a refund request in a non-terminal state.
func (r *RefundRepository) HasOpen(ctx context.Context, orderID string) (bool, error) {
	var open bool
	if err := r.pool.QueryRow(ctx, hasOpenRefundSQL, orderID).Scan(&open); err != nil {
		return false, fmt.Errorf("checking open refund requests for %q: %w", orderID, err)
	}
	return open, nil
}

func scanRefund(row pgx.CollectableRow) (settlement.RefundRequest, error) {
	var (
		req         settlement.RefundRequest
		itemsJSON   []byte
		historyJSON []byte
		notesJSON   []byte
		method      string
		status      string
	)
	err := row.Scan(
		&req.ID, &req.OrderID, &req.UserID, &itemsJSON, &req.Amount,
		&method, &status, &req.WalletRefunded,
		&historyJSON, &notesJSON, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return req, err
	}
	req.Method = settlement.RefundMethod(method)
	req.Status = settlement.RefundStatus(status)

	if err := json.Unmarshal(itemsJSON, &req.Items); err != nil {
		return req, fmt.Errorf("unmarshaling refund items: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &req.History); err != nil {
		return req, fmt.Errorf("unmarshaling refund history: %w", err)
	}
	if err := json.Unmarshal(notesJSON, &req.AdminNotes); err != nil {
		return req, fmt.Errorf("unmarshaling refund notes: %w", err)
	}
	return req, nil
}
