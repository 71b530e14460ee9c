// Package catalog holds the read model of the product catalog as seen by the
// pricing and settlement core: products, categories, purchasable variants,
// and the atomic stock primitives. Catalog management itself (CRUD, images)
// lives elsewhere; this core only consumes it.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates product availability states set by catalog management.
type Status string

const (
	// StatusActive marks a product available for purchase.
	StatusActive Status = "active"
	// StatusBlocked marks a product withheld from sale by an admin.
	StatusBlocked Status = "blocked"
)

var (
	// ErrProductNotFound is returned when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotFound is returned when a requested variant does not exist.
	ErrVariantNotFound = errors.New("variant not found")
	// ErrCategoryNotFound is returned when a requested category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
)

// Product is a catalog item. Variants carry the sellable price and stock.
type Product struct {
	ID         string
	Name       string
	CategoryID string
	Status     Status
	Deleted    bool
}

// Category groups products. A product is sellable only while its category
// stays active and not deleted.
type Category struct {
	ID      string
	Name    string
	Active  bool
	Deleted bool
}

// Variant is a purchasable SKU of a product and the unit of stock accounting.
type Variant struct {
	ID        string
	ProductID string
	Color     string
	Price     decimal.Decimal
	// SalePrice, when positive, overrides Price as the effective base price.
	SalePrice decimal.Decimal
	Stock     int
	Listed    bool
}

// BasePrice returns the effective unit price: SalePrice when set, else Price.
func (v Variant) BasePrice() decimal.Decimal {
	if v.SalePrice.IsPositive() {
		return v.SalePrice
	}
	return v.Price
}

// Purchasable reports whether a product may currently be sold. It is the
// single availability predicate used at cart view, checkout, and placement:
// both the product and its category must be active and not soft-deleted.
func Purchasable(p Product, c Category) bool {
	if p.Deleted || p.Status != StatusActive {
		return false
	}
	return c.Active && !c.Deleted
}

// UnavailableError indicates a cart line references a product that is
// blocked, soft-deleted, unlisted, or in an inactive category.
type UnavailableError struct {
	ProductName string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is currently unavailable", e.ProductName)
}

// InsufficientStockError indicates an order line asked for more units than
// the variant currently holds.
type InsufficientStockError struct {
	ProductName string
	VariantID   string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, only %d available",
		e.ProductName, e.Requested, e.Available)
}

// Repository defines the read operations the core needs from the catalog.
type Repository interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetVariant(ctx context.Context, id string) (*Variant, error)
	GetCategory(ctx context.Context, id string) (*Category, error)
}
