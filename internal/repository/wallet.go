package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shelfline/storefront/internal/domain/wallet"
)

const (
	getWalletSQL = `SELECT balance FROM wallets WHERE user_id = $1`

	listWalletTxSQL = `SELECT id, amount, type, description, order_id, created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC`
)

var _ wallet.Repository = (*WalletRepository)(nil)

// WalletRepository implements wallet.Repository backed by PostgreSQL.
// Standalone credits and debits (top-ups, referral bonuses) run through the
// same conditional-UPDATE statements the transactional store uses, so the
// balance/ledger invariant holds for every writer.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository returns a WalletRepository that uses the given pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Get returns the user's wallet with its full ledger, newest entry first.
func (r *WalletRepository) Get(ctx context.Context, userID string) (*wallet.Wallet, error) {
	w := &wallet.Wallet{UserID: userID}
	err := r.pool.QueryRow(ctx, getWalletSQL, userID).Scan(&w.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, wallet.ErrNotFound
		}
		return nil, fmt.Errorf("getting wallet of %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listWalletTxSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing wallet transactions of %q: %w", userID, err)
	}
	w.Transactions, err = pgx.CollectRows(rows, scanWalletTx)
	if err != nil {
		return nil, fmt.Errorf("listing wallet transactions of %q: %w", userID, err)
	}
	return w, nil
}

// Credit adds amount to the balance and appends the ledger entry atomically.
func (r *WalletRepository) Credit(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return (&store{q: tx}).CreditWallet(ctx, userID, amount, description, orderID)
	})
}

// Debit subtracts amount from the balance and appends the ledger entry
// atomically, failing with wallet.ErrInsufficientBalance when short.
func (r *WalletRepository) Debit(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return (&store{q: tx}).DebitWallet(ctx, userID, amount, description, orderID)
	})
}

func scanWalletTx(row pgx.CollectableRow) (wallet.Transaction, error) {
	var (
		t   wallet.Transaction
		typ string
	)
	err := row.Scan(&t.ID, &t.Amount, &typ, &t.Description, &t.OrderID, &t.CreatedAt)
	t.Type = wallet.TxType(typ)
	return t, err
}
