package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// getWallet returns the user's balance and ledger.
func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	wal, err := h.wallets.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeWallet(e, wal) })
}

// topUpWallet credits externally funded money into the user's wallet.
func (h *Handler) topUpWallet(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var amount float64
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "amount" {
			var err error
			amount, err = d.Float64()
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := h.wallets.TopUp(r.Context(), userID, decimal.NewFromFloat(amount)); err != nil {
		writeDomainError(w, r, err)
		return
	}

	wal, err := h.wallets.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeWallet(e, wal) })
}
