package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// checkoutTotals prices the current cart with the session coupon applied.
// A coupon rejection clears the stale selection before reporting it.
func (h *Handler) checkoutTotals(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	quote, err := h.pricing.Quote(r.Context(), h.sessions.Snapshot(userID))
	if err != nil {
		if isCouponRejection(err) {
			h.sessions.Remove(userID)
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, quote) })
}

// applyCoupon records a coupon selection for the checkout session and
// returns the recomputed totals. The selection only sticks if the coupon
// survives validation against the current cart.
func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var code string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "code" {
			var err error
			code, err = d.Str()
			return err
		}
		return d.Skip()
	})
	if err != nil || code == "" {
		writeMessage(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	if err := h.sessions.Apply(userID, code); err != nil {
		writeDomainError(w, r, err)
		return
	}

	quote, err := h.pricing.Quote(r.Context(), h.sessions.Snapshot(userID))
	if err != nil {
		// The coupon did not survive validation; roll the selection back.
		h.sessions.Remove(userID)
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, quote) })
}

// removeCoupon clears the session coupon and returns the recomputed totals.
func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	h.sessions.Remove(userID)

	quote, err := h.pricing.Quote(r.Context(), h.sessions.Snapshot(userID))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeQuote(e, quote) })
}
