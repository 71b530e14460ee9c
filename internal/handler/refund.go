package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/shelfline/storefront/internal/domain/settlement"
)

// submitRefund opens a return request on a delivered order.
func (h *Handler) submitRefund(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var (
		orderID string
		method  string
		items   []settlement.ReturnItem
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "order_id":
			orderID, err = d.Str()
		case "method":
			method, err = d.Str()
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var item settlement.ReturnItem
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "order_item_id":
						item.OrderItemID, err = d.Str()
					case "quantity":
						item.Quantity, err = d.Int()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				items = append(items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if orderID == "" {
		writeMessage(w, http.StatusBadRequest, "order_id is required")
		return
	}
	refundMethod := settlement.RefundMethod(method)
	if refundMethod != settlement.MethodWallet && refundMethod != settlement.MethodOriginal {
		writeMessage(w, http.StatusBadRequest, "unsupported refund method")
		return
	}

	req, err := h.settlement.SubmitRefundRequest(r.Context(), settlement.SubmitRequest{
		OrderID: orderID,
		UserID:  userID,
		Items:   items,
		Method:  refundMethod,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeRefund(e, req) })
}

// listRefunds returns the user's refund requests.
func (h *Handler) listRefunds(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	refunds, err := h.refunds.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range refunds {
			encodeRefund(e, &refunds[i])
		}
		e.ArrEnd()
	})
}

// transitionRefund moves a refund request through the approval workflow on
// behalf of an admin actor.
func (h *Handler) transitionRefund(w http.ResponseWriter, r *http.Request) {
	admin := currentAdmin(r)
	if admin == "" {
		writeMessage(w, http.StatusUnauthorized, "missing admin identity")
		return
	}

	var (
		status string
		note   string
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "status":
			status, err = d.Str()
		case "note":
			note, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil || status == "" {
		writeMessage(w, http.StatusBadRequest, "status is required")
		return
	}

	req, err := h.settlement.TransitionRefund(r.Context(), r.PathValue("id"),
		settlement.RefundStatus(status), admin, note)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeRefund(e, req) })
}
