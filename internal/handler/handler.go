// Package handler exposes the settlement core over HTTP. It owns request
// decoding, the per-user checkout session store, and the mapping of domain
// errors to status codes; all business logic stays in the domain services.
package handler

import (
	"net/http"
	"sync"

	"github.com/shelfline/storefront/internal/domain/order"
	"github.com/shelfline/storefront/internal/domain/pricing"
	"github.com/shelfline/storefront/internal/domain/settlement"
	"github.com/shelfline/storefront/internal/domain/wallet"
)

// Handler wires HTTP routes to the domain services.
type Handler struct {
	pricing    *pricing.Engine
	orders     *order.Service
	orderRepo  order.Repository
	settlement *settlement.Service
	refunds    settlement.Repository
	wallets    *wallet.Service
	sessions   *SessionStore
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	pricingEngine *pricing.Engine,
	orders *order.Service,
	orderRepo order.Repository,
	settlementSvc *settlement.Service,
	refunds settlement.Repository,
	wallets *wallet.Service,
) *Handler {
	return &Handler{
		pricing:    pricingEngine,
		orders:     orders,
		orderRepo:  orderRepo,
		settlement: settlementSvc,
		refunds:    refunds,
		wallets:    wallets,
		sessions:   NewSessionStore(),
	}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/checkout", h.checkoutTotals)
	mux.HandleFunc("POST /api/checkout/coupon", h.applyCoupon)
	mux.HandleFunc("DELETE /api/checkout/coupon", h.removeCoupon)
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /api/orders/{id}/payment", h.confirmPayment)
	mux.HandleFunc("POST /api/refunds", h.submitRefund)
	mux.HandleFunc("GET /api/refunds", h.listRefunds)
	mux.HandleFunc("POST /api/refunds/{id}/status", h.transitionRefund)
	mux.HandleFunc("GET /api/wallet", h.getWallet)
	mux.HandleFunc("POST /api/wallet/topup", h.topUpWallet)
}

// Auth is an excluded collaborator: upstream middleware authenticates and
// forwards the opaque actor identity in these headers.
const (
	userHeader  = "X-User-ID"
	adminHeader = "X-Admin-ID"
)

func currentUser(r *http.Request) string {
	return r.Header.Get(userHeader)
}

func currentAdmin(r *http.Request) string {
	return r.Header.Get(adminHeader)
}

// SessionStore holds per-user checkout sessions. A browser may run several
// tabs, so apply/remove serialize through the store's lock.
type SessionStore struct {
	mu     sync.Mutex
	byUser map[string]*pricing.Session
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{byUser: make(map[string]*pricing.Session)}
}

// Apply records a coupon selection for the user's session.
func (s *SessionStore) Apply(userID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(userID).ApplyCoupon(code)
}

// Remove clears the user's coupon selection.
func (s *SessionStore) Remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session(userID).RemoveCoupon()
}

// Snapshot returns a copy of the user's session for a single computation.
func (s *SessionStore) Snapshot(userID string) *pricing.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := *s.session(userID)
	return &snap
}

func (s *SessionStore) session(userID string) *pricing.Session {
	sess, ok := s.byUser[userID]
	if !ok {
		sess = pricing.NewSession(userID)
		s.byUser[userID] = sess
	}
	return sess
}
