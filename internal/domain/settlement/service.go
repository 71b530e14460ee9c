package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shelfline/storefront/internal/domain/order"
)

// Service implements order cancellation and the refund-request workflow.
type Service struct {
	orders  order.Repository
	refunds Repository
	tx      TxRunner

	now   func() time.Time
	newID func() string
}

// NewService creates a settlement Service.
func NewService(orders order.Repository, refunds Repository, tx TxRunner) *Service {
	return &Service{
		orders:  orders,
		refunds: refunds,
		tx:      tx,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// CancelOrder cancels an order the user owns while it is still in Placed or
// Confirmed state. Atomically it restores variant stock, credits the wallet
// for paid wallet/gateway orders with subtotal minus discount (tax and
// shipping are not refunded on cancellation), and marks payment refunded.
//
// COD orders are marked refunded with no wallet movement: nothing was paid.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID string) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrNotOwner
	}
	if o.Status != order.StatusPlaced && o.Status != order.StatusConfirmed {
		return nil, &NotCancellableError{Status: o.Status}
	}

	// Gateway orders defer their stock decrement until payment confirms, so
	// an uncaptured gateway order has no inventory to give back.
	restock := o.PaymentMethod != order.MethodGateway || o.PaymentStatus == order.PaymentPaid

	now := s.now()
	o.Status = order.StatusCancelled
	for i := range o.Items {
		o.Items[i].Status = order.ItemCancelled
		t := now
		o.Items[i].CancelledAt = &t
	}
	o.AppendHistory(string(order.StatusCancelled), userID, "", now)

	credit := decimal.Zero
	switch {
	case o.PaymentMethod == order.MethodCOD:
		o.PaymentStatus = order.PaymentRefunded
	case o.PaymentStatus == order.PaymentPaid:
		credit = o.Subtotal.Sub(o.Discount)
		if credit.IsNegative() {
			credit = decimal.Zero
		}
		o.PaymentStatus = order.PaymentRefunded
	}

	err = s.tx.ExecTx(ctx, func(st Store) error {
		if restock {
			for _, item := range o.Items {
				if err := st.IncrementStock(ctx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}
		if credit.IsPositive() {
			desc := fmt.Sprintf("Refund for cancelled order %s", o.Number)
			if err := st.CreditWallet(ctx, o.UserID, credit, desc, o.ID); err != nil {
				return errors.Wrap(err, "credit cancellation refund")
			}
		}
		return st.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// SubmitRequest is the input for opening a refund request.
type SubmitRequest struct {
	OrderID string
	UserID  string
	Items   []ReturnItem
	Method  RefundMethod
}

// SubmitRefundRequest opens a return on a delivered order. The refund amount
// is computed now, from the order's frozen figures, and an order may have at
// most one open (non-terminal) request at a time.
func (s *Service) SubmitRefundRequest(ctx context.Context, req SubmitRequest) (*RefundRequest, error) {
	o, err := s.orders.Get(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != req.UserID {
		return nil, order.ErrNotOwner
	}
	if o.Status != order.StatusDelivered {
		return nil, ErrNotDelivered
	}

	open, err := s.refunds.HasOpen(ctx, req.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "check open refund requests")
	}
	if open {
		return nil, ErrOpenRequest
	}

	if err := validateReturnItems(o, req.Items); err != nil {
		return nil, err
	}

	now := s.now()
	r := &RefundRequest{
		ID:        s.newID(),
		OrderID:   req.OrderID,
		UserID:    req.UserID,
		Items:     req.Items,
		Amount:    RefundAmount(o, req.Items),
		Method:    req.Method,
		Status:    RefundPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.History = append(r.History, order.StatusEntry{
		Status:    string(RefundPending),
		ChangedAt: now,
		Actor:     req.UserID,
	})

	err = s.tx.ExecTx(ctx, func(st Store) error {
		return st.CreateRefund(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func validateReturnItems(o *order.Order, items []ReturnItem) error {
	if len(items) == 0 {
		return &InvalidReturnError{Reason: "no items selected for return"}
	}
	byID := make(map[string]*order.Item, len(o.Items))
	for i := range o.Items {
		byID[o.Items[i].ID] = &o.Items[i]
	}
	for _, ri := range items {
		item, ok := byID[ri.OrderItemID]
		if !ok {
			return &InvalidReturnError{Reason: fmt.Sprintf("item %s is not part of this order", ri.OrderItemID)}
		}
		if item.Status != order.ItemActive {
			return &InvalidReturnError{Reason: fmt.Sprintf("%s has already been settled", item.ProductName)}
		}
		remaining := item.Quantity - item.ReturnedQuantity
		if ri.Quantity <= 0 || ri.Quantity > remaining {
			return &InvalidReturnError{
				Reason: fmt.Sprintf("return quantity for %s must be between 1 and %d", item.ProductName, remaining),
			}
		}
	}
	return nil
}

// RefundAmount computes what a set of returned items is worth from the
// order's frozen figures: the items' subtotal minus the proportional slice of
// the order's coupon discount, plus the same proportional slices of tax and
// shipping. Rounded to 2 places, never negative.
func RefundAmount(o *order.Order, items []ReturnItem) decimal.Decimal {
	byID := make(map[string]*order.Item, len(o.Items))
	for i := range o.Items {
		byID[o.Items[i].ID] = &o.Items[i]
	}

	returnSubtotal := decimal.Zero
	for _, ri := range items {
		item, ok := byID[ri.OrderItemID]
		if !ok {
			continue
		}
		returnSubtotal = returnSubtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(ri.Quantity))))
	}

	amount := returnSubtotal
	if o.Subtotal.IsPositive() {
		ratio := returnSubtotal.Div(o.Subtotal)
		discount := o.Discount.Mul(ratio)
		tax := o.Tax.Mul(ratio)
		shipping := o.Shipping.Mul(ratio)
		amount = returnSubtotal.Sub(discount).Add(tax).Add(shipping)
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount.Round(2)
}

// TransitionRefund moves a refund request to a new workflow state on behalf
// of an admin actor. Entering refund_completed credits the wallet exactly
// once, guarded by WalletRefunded, and marks the order's payment refunded.
func (s *Service) TransitionRefund(ctx context.Context, refundID string, target RefundStatus, actor, note string) (*RefundRequest, error) {
	r, err := s.refunds.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}

	if r.Status == target {
		return nil, &StateTransitionError{Current: r.Status, Target: target, Allowed: transitions[r.Status]}
	}
	if !allowedTransition(r.Status, target) {
		return nil, &StateTransitionError{Current: r.Status, Target: target, Allowed: transitions[r.Status]}
	}

	now := s.now()
	r.Status = target
	r.UpdatedAt = now
	r.History = append(r.History, order.StatusEntry{
		Status:    string(target),
		ChangedAt: now,
		Actor:     actor,
		Note:      note,
	})
	if note != "" {
		r.AdminNotes = append(r.AdminNotes, note)
	}

	if target != RefundCompleted {
		err = s.tx.ExecTx(ctx, func(st Store) error {
			return st.SaveRefund(ctx, r)
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}

	o, err := s.orders.Get(ctx, r.OrderID)
	if err != nil {
		return nil, err
	}

	creditWallet := r.Method.CreditsWallet(o.PaymentMethod) && !r.WalletRefunded
	if creditWallet {
		r.WalletRefunded = true
	}
	markReturned(o, r.Items, now)
	o.PaymentStatus = order.PaymentRefunded
	o.AppendHistory("Refund Completed", actor, note, now)

	err = s.tx.ExecTx(ctx, func(st Store) error {
		if creditWallet {
			desc := fmt.Sprintf("Refund for order %s", o.Number)
			if err := st.CreditWallet(ctx, r.UserID, r.Amount, desc, o.ID); err != nil {
				return errors.Wrap(err, "credit refund")
			}
		}
		if err := st.SaveOrder(ctx, o); err != nil {
			return err
		}
		return st.SaveRefund(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func allowedTransition(from, to RefundStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func markReturned(o *order.Order, items []ReturnItem, now time.Time) {
	qty := make(map[string]int, len(items))
	for _, ri := range items {
		qty[ri.OrderItemID] += ri.Quantity
	}
	for i := range o.Items {
		n, ok := qty[o.Items[i].ID]
		if !ok {
			continue
		}
		o.Items[i].ReturnedQuantity += n
		if o.Items[i].ReturnedQuantity >= o.Items[i].Quantity {
			o.Items[i].Status = order.ItemReturned
			t := now
			o.Items[i].CancelledAt = &t
		}
	}
}
