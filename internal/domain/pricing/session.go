package pricing

import "github.com/go-faster/errors"

// ErrCouponAlreadyApplied is returned when a second coupon is applied while
// one is active; the first must be removed explicitly, never replaced.
var ErrCouponAlreadyApplied = errors.New("Coupon already applied")

// Session is the explicit checkout session state for one user: the applied
// coupon selection. It replaces ambient HTTP-session state; callers create
// it, thread it through quoting and placement, and clear it on success.
type Session struct {
	UserID     string
	CouponCode string
}

// NewSession creates an empty checkout session for a user.
func NewSession(userID string) *Session {
	return &Session{UserID: userID}
}

// ApplyCoupon records a coupon selection. Applying while another coupon is
// active is rejected rather than silently replacing the selection.
func (s *Session) ApplyCoupon(code string) error {
	if s.CouponCode != "" {
		return ErrCouponAlreadyApplied
	}
	s.CouponCode = code
	return nil
}

// RemoveCoupon clears the coupon selection; totals are recomputed without it
// on the next quote.
func (s *Session) RemoveCoupon() {
	s.CouponCode = ""
}
