package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/shelfline/storefront/internal/domain/cart"
	"github.com/shelfline/storefront/internal/domain/catalog"
	"github.com/shelfline/storefront/internal/domain/coupon"
	"github.com/shelfline/storefront/internal/domain/pricing"
)

// PlaceOrderRequest holds the input for placing an order. Session carries the
// explicit checkout state (applied coupon); it is consumed on success.
type PlaceOrderRequest struct {
	UserID        string
	AddressID     string
	PaymentMethod PaymentMethod
	Session       *pricing.Session
}

// Service implements order placement and payment confirmation.
type Service struct {
	catalog   catalog.Repository
	carts     cart.Repository
	addresses AddressRepository
	coupons   coupon.Repository
	pricing   *pricing.Engine
	orders    Repository
	tx        TxRunner

	now   func() time.Time
	newID func() string
}

// NewService creates an order Service with the required collaborators.
func NewService(
	catalogRepo catalog.Repository,
	carts cart.Repository,
	addresses AddressRepository,
	coupons coupon.Repository,
	pricingEngine *pricing.Engine,
	orders Repository,
	tx TxRunner,
) *Service {
	return &Service{
		catalog:   catalogRepo,
		carts:     carts,
		addresses: addresses,
		coupons:   coupons,
		pricing:   pricingEngine,
		orders:    orders,
		tx:        tx,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// ValidateOrder runs every placement precondition with no side effects, so
// callers can pre-flight a checkout without risking partial mutation. On
// success it returns the quote whose figures placement would freeze.
//
// Check order: address ownership, non-empty cart, product/category
// availability, variant listing and stock, applied-coupon liveness.
func (s *Service) ValidateOrder(ctx context.Context, req PlaceOrderRequest) (*pricing.Quote, error) {
	quote, _, err := s.validate(ctx, req)
	return quote, err
}

func (s *Service) validate(ctx context.Context, req PlaceOrderRequest) (*pricing.Quote, *Address, error) {
	addr, err := s.addresses.Get(ctx, req.AddressID, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	c, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get cart")
	}
	if len(c.Lines) == 0 {
		return nil, nil, cart.ErrEmpty
	}

	for _, line := range c.Lines {
		if err := s.checkLine(ctx, line); err != nil {
			return nil, nil, err
		}
	}

	sess := req.Session
	if sess == nil {
		sess = pricing.NewSession(req.UserID)
	}

	// A coupon that was applied and later disabled by an admin gets its own
	// message; the quote below re-validates window, limits, and scope.
	if sess.CouponCode != "" {
		rule, err := s.coupons.FindByCode(ctx, sess.CouponCode)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			return nil, nil, &coupon.Error{Message: "Coupon has been disabled by admin"}
		case err != nil:
			return nil, nil, errors.Wrap(err, "lookup coupon")
		case rule.Deleted || !rule.Active:
			return nil, nil, &coupon.Error{Message: "Coupon has been disabled by admin"}
		}
	}

	quote, err := s.pricing.Quote(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	return quote, addr, nil
}

func (s *Service) checkLine(ctx context.Context, line cart.Line) error {
	product, err := s.catalog.GetProduct(ctx, line.ProductID)
	if err != nil {
		return errors.Wrapf(err, "get product %s", line.ProductID)
	}
	category, err := s.catalog.GetCategory(ctx, product.CategoryID)
	if err != nil {
		return errors.Wrapf(err, "get category %s", product.CategoryID)
	}
	if !catalog.Purchasable(*product, *category) {
		return &catalog.UnavailableError{ProductName: product.Name}
	}

	variant, err := s.catalog.GetVariant(ctx, line.VariantID)
	if err != nil {
		return errors.Wrapf(err, "get variant %s", line.VariantID)
	}
	if !variant.Listed {
		return &catalog.UnavailableError{ProductName: product.Name}
	}
	if variant.Stock < line.Quantity {
		return &catalog.InsufficientStockError{
			ProductName: product.Name,
			VariantID:   variant.ID,
			Requested:   line.Quantity,
			Available:   variant.Stock,
		}
	}
	return nil
}

// PlaceOrder validates the checkout and commits it atomically: order insert,
// stock decrements, wallet debit for wallet payments, coupon redemption, and
// cart clear all run in one transaction. A failure anywhere leaves no partial
// state behind.
//
// Gateway-paid orders are created with payment pending and commit their
// inventory and coupon mutations only on ConfirmPayment: an unconfirmed
// payment must not decrement stock or clear the cart.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	quote, addr, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	o := s.freeze(quote, req, *addr, now)

	if req.PaymentMethod == MethodGateway {
		err = s.tx.ExecTx(ctx, func(st Store) error {
			return st.CreateOrder(ctx, o)
		})
	} else {
		err = s.tx.ExecTx(ctx, func(st Store) error {
			if err := st.CreateOrder(ctx, o); err != nil {
				return err
			}
			return s.commitPlacement(ctx, st, o)
		})
	}
	if err != nil {
		return nil, err
	}

	if req.Session != nil {
		req.Session.RemoveCoupon()
	}
	return o, nil
}

// freeze converts a quote into an immutable order record.
func (s *Service) freeze(quote *pricing.Quote, req PlaceOrderRequest, addr Address, now time.Time) *Order {
	items := make([]Item, len(quote.Lines))
	for i, line := range quote.Lines {
		items[i] = Item{
			ID:          s.newID(),
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
			Price:       line.FinalPrice,
			Total:       line.ItemTotal,
			CouponShare: line.CouponShare,
			Status:      ItemActive,
		}
	}

	paymentStatus := PaymentPending
	if req.PaymentMethod == MethodWallet {
		paymentStatus = PaymentPaid
	}

	o := &Order{
		ID:            s.newID(),
		Number:        s.orderNumber(now),
		UserID:        req.UserID,
		Address:       addr,
		Items:         items,
		Subtotal:      quote.Subtotal,
		Discount:      quote.Discount,
		Tax:           quote.Tax,
		Shipping:      quote.Shipping,
		FinalAmount:   quote.FinalAmount,
		CouponCode:    quote.CouponCode,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: paymentStatus,
		Status:        StatusPlaced,
		CreatedAt:     now,
	}
	o.AppendHistory(string(StatusPlaced), req.UserID, "", now)
	return o
}

// commitPlacement applies the side effects of a paid-or-COD placement inside
// the transaction: stock, wallet, coupon, cart.
func (s *Service) commitPlacement(ctx context.Context, st Store, o *Order) error {
	for _, item := range o.Items {
		if err := st.DecrementStock(ctx, item.VariantID, item.Quantity); err != nil {
			return err
		}
	}
	if o.PaymentMethod == MethodWallet {
		desc := fmt.Sprintf("Payment for order %s", o.Number)
		if err := st.DebitWallet(ctx, o.UserID, o.FinalAmount, desc, o.ID); err != nil {
			return err
		}
	}
	if o.CouponCode != "" {
		if err := st.RedeemCoupon(ctx, o.CouponCode, o.UserID); err != nil {
			return errors.Wrap(err, "redeem coupon")
		}
	}
	return st.ClearCart(ctx, o.UserID)
}

// ConfirmPayment records the gateway's payment outcome for a pending order.
// On success the deferred placement side effects commit atomically; stock may
// have moved since placement, in which case the whole confirmation aborts and
// the order stays pending for the caller to settle with the gateway.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string, success bool, paymentRef string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, ErrOrderCancelled
	}
	if o.PaymentStatus != PaymentPending {
		return nil, ErrPaymentSettled
	}

	now := s.now()
	if !success {
		o.PaymentStatus = PaymentFailed
		o.AppendHistory("Payment Failed", o.UserID, "gateway reported failure", now)
		err = s.tx.ExecTx(ctx, func(st Store) error {
			return st.SaveOrder(ctx, o)
		})
		if err != nil {
			return nil, err
		}
		return o, nil
	}

	o.PaymentStatus = PaymentPaid
	o.PaymentRef = paymentRef
	o.AppendHistory("Payment Confirmed", o.UserID, "", now)
	err = s.tx.ExecTx(ctx, func(st Store) error {
		if err := s.commitPlacement(ctx, st, o); err != nil {
			return err
		}
		return st.SaveOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// orderNumber generates a unique human-readable order number.
func (s *Service) orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}
