// Package cart exposes the per-user cart read model consumed by pricing and
// order placement. Cart management itself (add/update/remove) is an external
// collaborator; the core reads lines and clears the cart on placement.
package cart

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrEmpty is returned when an operation requires a non-empty cart.
var ErrEmpty = errors.New("cart is empty")

// Line is one product/variant selection in a cart.
type Line struct {
	ProductID string
	VariantID string
	Quantity  int
}

// Cart is the ordered collection of a user's selected lines.
type Cart struct {
	UserID string
	Lines  []Line
}

// Repository provides read access to carts. Clearing happens inside the
// order placement transaction, not here.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
}
