package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shelfline/storefront/internal/domain/catalog"
	"github.com/shelfline/storefront/internal/domain/coupon"
	"github.com/shelfline/storefront/internal/domain/order"
	"github.com/shelfline/storefront/internal/domain/settlement"
	"github.com/shelfline/storefront/internal/domain/wallet"
)

// store bundles every transactional mutation over one querier. It satisfies
// both order.Store and settlement.Store; the conditional UPDATEs make the
// stock, coupon, and wallet guards atomic with their mutations.
type store struct {
	q querier
}

var (
	_ order.Store      = (*store)(nil)
	_ settlement.Store = (*store)(nil)
)

// OrderTx runs order placement units inside a single transaction.
type OrderTx struct {
	pool *pgxpool.Pool
}

// NewOrderTx returns an OrderTx that uses the given pool.
func NewOrderTx(pool *pgxpool.Pool) *OrderTx {
	return &OrderTx{pool: pool}
}

// ExecTx implements order.TxRunner.
func (t *OrderTx) ExecTx(ctx context.Context, fn func(order.Store) error) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(&store{q: tx})
	})
}

// SettlementTx runs cancellation and refund units inside a single transaction.
type SettlementTx struct {
	pool *pgxpool.Pool
}

// NewSettlementTx returns a SettlementTx that uses the given pool.
func NewSettlementTx(pool *pgxpool.Pool) *SettlementTx {
	return &SettlementTx{pool: pool}
}

// ExecTx implements settlement.TxRunner.
func (t *SettlementTx) ExecTx(ctx context.Context, fn func(settlement.Store) error) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(&store{q: tx})
	})
}

const (
	createOrderSQL = `INSERT INTO orders (id, number, user_id, address, items, subtotal,
			discount, tax, shipping, final_amount, coupon_code, payment_method,
			payment_status, payment_ref, status, history, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	saveOrderSQL = `UPDATE orders SET items = $2, payment_status = $3, payment_ref = $4,
			status = $5, history = $6
		WHERE id = $1`

	decrementStockSQL = `UPDATE variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	incrementStockSQL = `UPDATE variants SET stock = stock + $2 WHERE id = $1`

	variantShortfallSQL = `SELECT v.stock, p.name FROM variants v
		JOIN products p ON p.id = v.product_id WHERE v.id = $1`

	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1
		  AND (usage_limit = 0 OR used_count < usage_limit)
		  AND (per_user_limit = 0 OR (SELECT COUNT(*) FROM coupon_usages u
				WHERE u.coupon_code = $1 AND u.user_id = $2) < per_user_limit)`

	insertCouponUsageSQL = `INSERT INTO coupon_usages (coupon_code, user_id, used_at)
		VALUES ($1, $2, now())`

	creditWalletSQL = `UPDATE wallets SET balance = balance + $2 WHERE user_id = $1`

	debitWalletSQL = `UPDATE wallets SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2`

	walletExistsSQL = `SELECT EXISTS (SELECT 1 FROM wallets WHERE user_id = $1)`

	insertWalletTxSQL = `INSERT INTO wallet_transactions (id, user_id, amount, type,
			description, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	createRefundSQL = `INSERT INTO refund_requests (id, order_id, user_id, items, amount,
			method, status, wallet_refunded, history, admin_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	saveRefundSQL = `UPDATE refund_requests SET status = $2, wallet_refunded = $3,
			history = $4, admin_notes = $5, updated_at = $6
		WHERE id = $1`
)

// CreateOrder persists a new order with its JSONB snapshots.
func (s *store) CreateOrder(ctx context.Context, o *order.Order) error {
	addressJSON, itemsJSON, historyJSON, err := marshalOrderBlobs(o)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.UserID, addressJSON, itemsJSON,
		o.Subtotal, o.Discount, o.Tax, o.Shipping, o.FinalAmount,
		o.CouponCode, string(o.PaymentMethod), string(o.PaymentStatus),
		o.PaymentRef, string(o.Status), historyJSON, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// SaveOrder persists the mutable slice of an order: items, payment state,
// status, and history. The monetary columns never change after creation.
func (s *store) SaveOrder(ctx context.Context, o *order.Order) error {
	_, itemsJSON, historyJSON, err := marshalOrderBlobs(o)
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, saveOrderSQL,
		o.ID, itemsJSON, string(o.PaymentStatus), o.PaymentRef,
		string(o.Status), historyJSON,
	)
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func marshalOrderBlobs(o *order.Order) (address, items, history []byte, err error) {
	if address, err = json.Marshal(o.Address); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling order address: %w", err)
	}
	if items, err = json.Marshal(o.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling order items: %w", err)
	}
	if history, err = json.Marshal(o.History); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling order history: %w", err)
	}
	return address, items, history, nil
}

// DecrementStock atomically takes qty units from a variant. The guard and
// the mutation are one statement, so concurrent checkouts can never jointly
// oversell a variant.
func (s *store) DecrementStock(ctx context.Context, variantID string, qty int) error {
	tag, err := s.q.Exec(ctx, decrementStockSQL, variantID, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock of %q: %w", variantID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var (
		stock int
		name  string
	)
	if err := s.q.QueryRow(ctx, variantShortfallSQL, variantID).Scan(&stock, &name); err != nil {
		return catalog.ErrVariantNotFound
	}
	return &catalog.InsufficientStockError{
		ProductName: name,
		VariantID:   variantID,
		Requested:   qty,
		Available:   stock,
	}
}

// IncrementStock returns qty units to a variant.
func (s *store) IncrementStock(ctx context.Context, variantID string, qty int) error {
	tag, err := s.q.Exec(ctx, incrementStockSQL, variantID, qty)
	if err != nil {
		return fmt.Errorf("incrementing stock of %q: %w", variantID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrVariantNotFound
	}
	return nil
}

// RedeemCoupon increments the coupon's usage counter and records the user's
// usage. Both limits are enforced in the UPDATE's WHERE clause, so the
// check and the increment cannot race with concurrent redemptions.
func (s *store) RedeemCoupon(ctx context.Context, code, userID string) error {
	tag, err := s.q.Exec(ctx, redeemCouponSQL, code, userID)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageExceeded
	}
	if _, err := s.q.Exec(ctx, insertCouponUsageSQL, code, userID); err != nil {
		return fmt.Errorf("recording usage of coupon %q: %w", code, err)
	}
	return nil
}

// CreditWallet adds amount to the user's balance and appends the ledger
// entry in the same transaction. A missing wallet is wallet.ErrNotFound.
func (s *store) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error {
	tag, err := s.q.Exec(ctx, creditWalletSQL, userID, amount)
	if err != nil {
		return fmt.Errorf("crediting wallet of %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrNotFound
	}
	return s.insertWalletTx(ctx, userID, amount, wallet.TxCredit, description, orderID)
}

// DebitWallet subtracts amount from the user's balance when it covers the
// amount, appending the ledger entry in the same transaction.
func (s *store) DebitWallet(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error {
	tag, err := s.q.Exec(ctx, debitWalletSQL, userID, amount)
	if err != nil {
		return fmt.Errorf("debiting wallet of %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.q.QueryRow(ctx, walletExistsSQL, userID).Scan(&exists); err != nil {
			return fmt.Errorf("checking wallet of %q: %w", userID, err)
		}
		if !exists {
			return wallet.ErrNotFound
		}
		return wallet.ErrInsufficientBalance
	}
	return s.insertWalletTx(ctx, userID, amount, wallet.TxDebit, description, orderID)
}

func (s *store) insertWalletTx(ctx context.Context, userID string, amount decimal.Decimal, typ wallet.TxType, description, orderID string) error {
	_, err := s.q.Exec(ctx, insertWalletTxSQL,
		uuid.New().String(), userID, amount, string(typ), description, orderID,
	)
	if err != nil {
		return fmt.Errorf("recording wallet transaction for %q: %w", userID, err)
	}
	return nil
}

// ClearCart removes every line from the user's cart.
func (s *store) ClearCart(ctx context.Context, userID string) error {
	if _, err := s.q.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return nil
}

// CreateRefund persists a new refund request.
func (s *store) CreateRefund(ctx context.Context, r *settlement.RefundRequest) error {
	itemsJSON, historyJSON, notesJSON, err := marshalRefundBlobs(r)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, createRefundSQL,
		r.ID, r.OrderID, r.UserID, itemsJSON, r.Amount,
		string(r.Method), string(r.Status), r.WalletRefunded,
		historyJSON, notesJSON, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating refund request %q: %w", r.ID, err)
	}
	return nil
}

// SaveRefund persists a refund request's workflow state and history.
func (s *store) SaveRefund(ctx context.Context, r *settlement.RefundRequest) error {
	_, historyJSON, notesJSON, err := marshalRefundBlobs(r)
	if err != nil {
		return err
	}
	tag, err := s.q.Exec(ctx, saveRefundSQL,
		r.ID, string(r.Status), r.WalletRefunded, historyJSON, notesJSON, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving refund request %q: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return settlement.ErrNotFound
	}
	return nil
}

func marshalRefundBlobs(r *settlement.RefundRequest) (items, history, notes []byte, err error) {
	if items, err = json.Marshal(r.Items); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling refund items: %w", err)
	}
	if history, err = json.Marshal(r.History); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling refund history: %w", err)
	}
	if notes, err = json.Marshal(r.AdminNotes); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling refund notes: %w", err)
	}
	return items, history, notes, nil
}
