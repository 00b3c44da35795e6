// Package ports declares the interfaces through which the checkout and order
// core talks to the rest of the platform. Catalog browsing, the address book,
// delivery-fee calculation and the cart service are opaque collaborators: the
// core depends on these abstractions, not on their transports, so they can be
// in-memory fakes in tests and remote services in production.
package ports

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by collaborator adapters when the backing
// service cannot be reached (timeout, open circuit breaker). The calling
// operation surfaces it as a retryable failure rather than swallowing it.
var ErrUnavailable = errors.New("collaborator unavailable")

// Product is the catalog's view of a sellable item.
type Product struct {
	ID        string
	Name      string
	Image     string
	BasePrice float64
	Available bool
}

// AddOn is an optional extra attached to a product (extra shot, oat milk...).
type AddOn struct {
	ID        string
	Name      string
	Price     float64
	Available bool
}

// OptionSelection identifies one chosen option within a customization type,
// e.g. ("size", "large") or ("milk", "oat").
type OptionSelection struct {
	CustomizationType string `json:"customization_type"`
	OptionID          string `json:"option_id"`
}

// Catalog resolves products, customization options and add-ons.
type Catalog interface {
	Product(ctx context.Context, productID string) (Product, error)

	// OptionModifier resolves a selection to its price modifier.
	// ok is false when the customization type or option is unknown.
	OptionModifier(ctx context.Context, sel OptionSelection) (modifier float64, ok bool, err error)

	AddOn(ctx context.Context, addOnID string) (AddOn, error)
}

// Address is the delivery info resolved from an address reference.
type Address struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Street    string  `json:"street"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AddressBook resolves a user's saved delivery addresses.
type AddressBook interface {
	Address(ctx context.Context, addressID string) (Address, error)
}

// FeeCalculator computes the delivery fee for an address.
type FeeCalculator interface {
	ComputeFee(ctx context.Context, addressID string) (float64, error)
}

// CartItem is a line in a user's active cart, read (never written) by the
// checkout core. UnitPrice is the price captured when the item was added.
type CartItem struct {
	ID         string
	ProductID  string
	Quantity   int
	UnitPrice  float64
	Selections []OptionSelection
	AddOnIDs   []string
	Notes      string
}

// Cart is a user's active cart. One active cart per user is enforced by the
// cart service itself.
type Cart struct {
	ID        string
	UserID    string
	StoreID   string
	AddressID string
	Items     []CartItem
	CreatedAt time.Time
}

// CartStore reads and invalidates carts. AddItems exists for the reorder
// flow, which copies a past order's items back into the active cart.
type CartStore interface {
	// ActiveCart returns the user's active cart, or nil when there is none.
	ActiveCart(ctx context.Context, userID string) (*Cart, error)

	// Deactivate marks the cart consumed after a successful order confirmation.
	Deactivate(ctx context.Context, cartID string) error

	// AddItems appends items to the user's active cart, creating one if needed.
	AddItems(ctx context.Context, userID string, items []CartItem) error
}
