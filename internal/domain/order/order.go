// Package order holds the order aggregate and the placement service. An
// order is an immutable financial record once created; only status, payment
// state, and settlement fields change afterwards, and every change appends to
// the status history.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates order lifecycle states.
type Status string

const (
	StatusPlaced    Status = "Placed"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// PaymentStatus enumerates payment settlement states.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// PaymentMethod enumerates how an order is paid.
type PaymentMethod string

const (
	MethodCOD     PaymentMethod = "COD"
	MethodWallet  PaymentMethod = "Wallet"
	MethodGateway PaymentMethod = "Razorpay"
)

// ItemStatus tracks per-line settlement state inside an order.
type ItemStatus string

const (
	ItemActive    ItemStatus = "Active"
	ItemCancelled ItemStatus = "Cancelled"
	ItemReturned  ItemStatus = "Returned"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrAddressNotFound is returned when the shipping address does not
	// exist or belongs to another user.
	ErrAddressNotFound = errors.New("address not found")
	// ErrNotOwner is returned when a user acts on another user's order.
	ErrNotOwner = errors.New("order belongs to another user")
	// ErrPaymentSettled is returned when a payment confirmation arrives for
	// an order whose payment is no longer pending.
	ErrPaymentSettled = errors.New("payment already settled")
	// ErrOrderCancelled is returned when a payment confirmation arrives for
	// an order that was cancelled while its payment was still pending.
	ErrOrderCancelled = errors.New("order is cancelled")
)

// Address is the shipping address snapshot embedded in an order. It is
// copied at placement so later address edits never alter historical orders.
type Address struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// Item is one frozen order line: unit price and totals as computed at
// placement, plus the line's share of the order-level coupon discount.
type Item struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	VariantID   string          `json:"variant_id"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"` // frozen unit price after offer
	Total       decimal.Decimal `json:"total"` // Price * Quantity
	CouponShare decimal.Decimal `json:"coupon_share"`
	Status      ItemStatus      `json:"status"`
	// ReturnedQuantity accumulates across refund requests; the item flips to
	// Returned only once every unit has come back.
	ReturnedQuantity int        `json:"returned_quantity,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

// StatusEntry is one append-only audit record of a status change.
type StatusEntry struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	Actor     string    `json:"actor"`
	Note      string    `json:"note,omitempty"`
}

// Order is the frozen financial record of one checkout.
// Invariant: FinalAmount = Subtotal - Discount + Tax + Shipping.
type Order struct {
	ID          string
	Number      string
	UserID      string
	Address     Address
	Items       []Item
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	Shipping    decimal.Decimal
	FinalAmount decimal.Decimal
	CouponCode  string

	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	PaymentRef    string
	Status        Status
	History       []StatusEntry
	CreatedAt     time.Time
}

// AppendHistory records a status change in the order's audit log.
func (o *Order) AppendHistory(status, actor, note string, at time.Time) {
	o.History = append(o.History, StatusEntry{
		Status:    status,
		ChangedAt: at,
		Actor:     actor,
		Note:      note,
	})
}

// Repository defines read access to persisted orders.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

// AddressRepository resolves a user's shipping address for snapshotting.
type AddressRepository interface {
	// Get returns the address only when it belongs to userID;
	// otherwise ErrAddressNotFound.
	Get(ctx context.Context, id, userID string) (*Address, error)
}

// Store is the set of mutations available inside a placement transaction.
// All methods see the same transaction; any error aborts the whole unit.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	SaveOrder(ctx context.Context, o *Order) error
	// DecrementStock atomically decrements a variant's stock, failing with
	// *catalog.InsufficientStockError when fewer than qty units remain.
	DecrementStock(ctx context.Context, variantID string, qty int) error
	// RedeemCoupon atomically increments the coupon's usage counter and
	// records the user's usage, enforcing both limits in the same statement.
	RedeemCoupon(ctx context.Context, code, userID string) error
	// DebitWallet atomically debits the user's wallet, failing with
	// wallet.ErrInsufficientBalance when the balance is too low.
	DebitWallet(ctx context.Context, userID string, amount decimal.Decimal, description, orderID string) error
	ClearCart(ctx context.Context, userID string) error
}

// TxRunner executes fn inside a single storage transaction.
type TxRunner interface {
	ExecTx(ctx context.Context, fn func(Store) error) error
}
