package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shelfline/storefront/internal/domain/cart"
	"github.com/shelfline/storefront/internal/domain/catalog"
	"github.com/shelfline/storefront/internal/domain/coupon"
	"github.com/shelfline/storefront/internal/domain/order"
	"github.com/shelfline/storefront/internal/domain/pricing"
	"github.com/shelfline/storefront/internal/domain/settlement"
	"github.com/shelfline/storefront/internal/domain/wallet"
)

// writeJSON encodes a response body with jx and writes it with the status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeMessage writes a {"message": ...} body.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

// writeDomainError maps a domain error to an HTTP response. Business-rule
// rejections become 4xx with their specific message; anything else is an
// integrity or infrastructure failure: logged distinctly and returned as 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unavailable *catalog.UnavailableError
		stock       *catalog.InsufficientStockError
		couponErr   *coupon.Error
		notCancel   *settlement.NotCancellableError
		badReturn   *settlement.InvalidReturnError
		transition  *settlement.StateTransitionError
	)
	switch {
	case errors.Is(err, cart.ErrEmpty),
		errors.As(err, &badReturn):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrAddressNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, settlement.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotOwner):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.As(err, &unavailable),
		errors.As(err, &stock),
		errors.As(err, &couponErr),
		errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, pricing.ErrCouponAlreadyApplied),
		errors.Is(err, settlement.ErrNotDelivered),
		errors.Is(err, settlement.ErrOpenRequest),
		errors.Is(err, order.ErrPaymentSettled),
		errors.Is(err, order.ErrOrderCancelled):
		writeMessage(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &notCancel),
		errors.As(err, &transition):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// isCouponRejection reports whether the error should clear the applied
// coupon from the checkout session.
func isCouponRejection(err error) bool {
	var couponErr *coupon.Error
	return errors.As(err, &couponErr)
}

// decodeBody reads and parses a small JSON request body into fields.
func decodeBody(r *http.Request, assign func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	d := jx.DecodeBytes(body)
	return d.Obj(func(d *jx.Decoder, key string) error {
		return assign(d, key)
	})
}

func money(e *jx.Encoder, field string, d decimal.Decimal) {
	e.FieldStart(field)
	e.Float64(d.InexactFloat64())
}

func encodeQuote(e *jx.Encoder, q *pricing.Quote) {
	e.ObjStart()
	e.FieldStart("lines")
	e.ArrStart()
	for _, line := range q.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(line.ProductID)
		e.FieldStart("product_name")
		e.Str(line.ProductName)
		e.FieldStart("variant_id")
		e.Str(line.VariantID)
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		money(e, "base_price", line.BasePrice)
		money(e, "offer_discount", line.OfferDiscount)
		money(e, "final_price", line.FinalPrice)
		money(e, "item_total", line.ItemTotal)
		money(e, "coupon_share", line.CouponShare)
		e.ObjEnd()
	}
	e.ArrEnd()
	money(e, "subtotal", q.Subtotal)
	money(e, "discount", q.Discount)
	money(e, "tax", q.Tax)
	money(e, "shipping", q.Shipping)
	money(e, "final_amount", q.FinalAmount)
	if q.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(q.CouponCode)
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("number")
	e.Str(o.Number)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("payment_method")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("payment_status")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(item.ID)
		e.FieldStart("product_name")
		e.Str(item.ProductName)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		money(e, "price", item.Price)
		money(e, "total", item.Total)
		money(e, "coupon_share", item.CouponShare)
		e.FieldStart("status")
		e.Str(string(item.Status))
		if item.ReturnedQuantity > 0 {
			e.FieldStart("returned_quantity")
			e.Int(item.ReturnedQuantity)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	money(e, "subtotal", o.Subtotal)
	money(e, "discount", o.Discount)
	money(e, "tax", o.Tax)
	money(e, "shipping", o.Shipping)
	money(e, "final_amount", o.FinalAmount)
	if o.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(o.CouponCode)
	}
	e.ObjEnd()
}

func encodeRefund(e *jx.Encoder, r *settlement.RefundRequest) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("order_id")
	e.Str(r.OrderID)
	e.FieldStart("status")
	e.Str(string(r.Status))
	e.FieldStart("method")
	e.Str(string(r.Method))
	money(e, "amount", r.Amount)
	e.FieldStart("wallet_refunded")
	e.Bool(r.WalletRefunded)
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range r.Items {
		e.ObjStart()
		e.FieldStart("order_item_id")
		e.Str(item.OrderItemID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeWallet(e *jx.Encoder, w *wallet.Wallet) {
	e.ObjStart()
	money(e, "balance", w.Balance)
	e.FieldStart("transactions")
	e.ArrStart()
	for _, t := range w.Transactions {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(t.ID)
		money(e, "amount", t.Amount)
		e.FieldStart("type")
		e.Str(string(t.Type))
		e.FieldStart("description")
		e.Str(t.Description)
		if t.OrderID != "" {
			e.FieldStart("order_id")
			e.Str(t.OrderID)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
