package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/shelfline/storefront/internal/domain/order"
)

// placeOrder validates and commits a checkout. The session coupon is
// consumed on success; a coupon rejection clears it so the user can retry
// without the stale selection.
func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var (
		addressID     string
		paymentMethod string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "address_id":
			addressID, err = d.Str()
		case "payment_method":
			paymentMethod, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if addressID == "" {
		writeMessage(w, http.StatusBadRequest, "address_id is required")
		return
	}
	method := order.PaymentMethod(paymentMethod)
	switch method {
	case order.MethodCOD, order.MethodWallet, order.MethodGateway:
	default:
		writeMessage(w, http.StatusBadRequest, "unsupported payment method")
		return
	}

	sess := h.sessions.Snapshot(userID)
	placed, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:        userID,
		AddressID:     addressID,
		PaymentMethod: method,
		Session:       sess,
	})
	if err != nil {
		if isCouponRejection(err) {
			h.sessions.Remove(userID)
		}
		writeDomainError(w, r, err)
		return
	}

	h.sessions.Remove(userID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, placed) })
}

// listOrders returns the user's order history.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	orders, err := h.orderRepo.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
		e.ArrEnd()
	})
}

// cancelOrder cancels one of the user's orders with full settlement.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	cancelled, err := h.settlement.CancelOrder(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, cancelled) })
}

// confirmPayment records the gateway's payment outcome for a pending order.
// The gateway adapter has already verified the signature; this endpoint only
// receives the fact.
func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var (
		success    bool
		paymentRef string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			success, err = d.Bool()
		case "payment_ref":
			paymentRef, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	confirmed, err := h.orders.ConfirmPayment(r.Context(), r.PathValue("id"), success, paymentRef)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, confirmed) })
}
