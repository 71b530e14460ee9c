// Package settlement reverses placed orders: cancellation with stock and
// wallet restitution, and the refund-request approval workflow for returns.
// All amounts are computed from the frozen order record, never from current
// catalog prices.
package settlement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/shelfline/storefront/internal/domain/order"
)

// RefundStatus enumerates the refund-request workflow states.
type RefundStatus string

const (
	RefundPending         RefundStatus = "pending"
	RefundApproved        RefundStatus = "approved"
	RefundRejected        RefundStatus = "rejected"
	RefundPickupScheduled RefundStatus = "pickup_scheduled"
	RefundPickedUp        RefundStatus = "picked_up"
	RefundInitiated       RefundStatus = "refund_initiated"
	RefundCompleted       RefundStatus = "refund_completed"
)

// transitions defines the allowed moves of the refund state machine. The
// backward edges into approved are an admin correction escape hatch.
var transitions = map[RefundStatus][]RefundStatus{
	RefundPending:         {RefundApproved, RefundRejected},
	RefundApproved:        {RefundPickupScheduled, RefundRejected},
	RefundPickupScheduled: {RefundPickedUp, RefundApproved},
	RefundPickedUp:        {RefundInitiated, RefundApproved},
	RefundInitiated:       {RefundCompleted, RefundApproved},
}

// Terminal reports whether no further transitions leave the status.
func (s RefundStatus) Terminal() bool {
	return s == RefundCompleted || s == RefundRejected
}

// RefundMethod selects where an approved refund is paid out.
type RefundMethod string

const (
	MethodWallet   RefundMethod = "wallet"
	MethodOriginal RefundMethod = "original_method"
)

// CreditsWallet reports whether completing a refund moves money into the
// user's wallet: wallet and original-method refunds both do, as does any
// refund on a COD order.
func (m RefundMethod) CreditsWallet(paymentMethod order.PaymentMethod) bool {
	return m == MethodWallet || m == MethodOriginal || paymentMethod == order.MethodCOD
}

// ReturnItem names one order item and the quantity being returned.
type ReturnItem struct {
	OrderItemID string `json:"order_item_id"`
	Quantity    int    `json:"quantity"`
}

// RefundRequest is one return attempt on an order, moving through the
// approval workflow. WalletRefunded guards the wallet credit: it is set
// exactly once, making the refund_completed transition idempotent in its
// money movement.
type RefundRequest struct {
	ID             string
	OrderID        string
	UserID         string
	Items          []ReturnItem
	Amount         decimal.Decimal
	Method         RefundMethod
	Status         RefundStatus
	WalletRefunded bool
	History        []order.StatusEntry
	AdminNotes     []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var (
	// ErrNotFound is returned when a refund request does not exist.
	ErrNotFound = errors.New("refund request not found")
	// ErrNotDelivered is returned when a return is requested on an order
	// that has not been delivered.
	ErrNotDelivered = errors.New("only delivered orders can be returned")
	// ErrOpenRequest is returned when the order already has a refund
	// request in a non-terminal state.
	ErrOpenRequest = errors.New("a refund request is already in progress for this order")
)

// NotCancellableError rejects cancellation of an order past the cancellable
// states, naming its current status.
type NotCancellableError struct {
	Status order.Status
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("order in status %s cannot be cancelled", e.Status)
}

// InvalidReturnError rejects a malformed return item list.
type InvalidReturnError struct {
	Reason string
}

func (e *InvalidReturnError) Error() string { return e.Reason }

// StateTransitionError rejects an illegal refund-status transition, naming
// the current state and the allowed next states.
type StateTransitionError struct {
	Current RefundStatus
	Target  RefundStatus
	Allowed []RefundStatus
}

func (e *StateTransitionError) Error() string {
	if e.Current == e.Target {
		return fmt.Sprintf("refund request is already %s", e.Current)
	}
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	return fmt.Sprintf("cannot move refund from %s to %s; allowed: %s",
		e.Current, e.Target, strings.Join(allowed, ", "))
}

// Repository defines read access to refund requests.
type Repository interface {
	Get(ctx context.Context, id string) (*RefundRequest, error)
	ListByUser(ctx context.Context, userID string) ([]RefundRequest, error)
	// HasOpen reports whether the order has a request in any non-terminal
	// state (pending, approved, pickup_scheduled, picked_up, refund_initiated).
	HasOpen(ctx context.Context, orderID string) (bool, error)
}

// Store is the set of mutations available inside a settlement transaction.
type Store interface {
	SaveOrder(ctx context.Context, o *order.Order) error
	IncrementStock(ctx context.Context, variantID string, qty int) error
	// CreditWallet fails with wallet.ErrNotFound when the user has no
	// wallet; settlement treats that as a fatal integrity error.
	CreditWallet(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error
	CreateRefund(ctx context.Context, r *RefundRequest) error
	SaveRefund(ctx context.Context, r *RefundRequest) error
}

// TxRunner executes fn inside a single storage transaction.
type TxRunner interface {
	ExecTx(ctx context.Context, fn func(Store) error) error
}
