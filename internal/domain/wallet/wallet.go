// Package wallet models the per-user cash ledger: an append-only transaction
// log backing a balance. The balance always equals the signed sum of
// successful transactions; every mutation writes both sides atomically.
package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// TxType marks a ledger entry as money in or money out.
type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
)

var (
	// ErrNotFound is returned when a user has no provisioned wallet. During
	// refund crediting this is an integrity error: wallets are provisioned
	// at signup and their absence must never be silently ignored.
	ErrNotFound = errors.New("wallet not found")
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidAmount is returned for zero or negative mutation amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Transaction is one append-only ledger entry.
type Transaction struct {
	ID          string
	Amount      decimal.Decimal
	Type        TxType
	Description string
	OrderID     string
	CreatedAt   time.Time
}

// Wallet is a user's balance plus its full ledger.
type Wallet struct {
	UserID       string
	Balance      decimal.Decimal
	Transactions []Transaction
}

// Repository provides wallet reads and atomic balance mutations. Credit and
// Debit update the balance and append the ledger entry in one unit, serialized
// per wallet by the storage layer.
type Repository interface {
	Get(ctx context.Context, userID string) (*Wallet, error)
	Credit(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error
	Debit(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error
}

// Service wraps Repository with input validation shared by every caller
// (top-ups, order payments, settlement credits).
type Service struct {
	repo Repository
}

// NewService creates a wallet Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns a user's wallet with its ledger.
func (s *Service) Get(ctx context.Context, userID string) (*Wallet, error) {
	return s.repo.Get(ctx, userID)
}

// TopUp credits the wallet with externally funded money.
func (s *Service) TopUp(ctx context.Context, userID string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return s.repo.Credit(ctx, userID, amount.Round(2), "Wallet top-up", "")
}

// Deduct debits the wallet, failing with ErrInsufficientBalance when the
// balance cannot cover the amount.
func (s *Service) Deduct(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return s.repo.Debit(ctx, userID, amount.Round(2), description, orderID)
}
