// Package cart validates a user's active cart before a checkout session is
// created from it.
//
// Validation aggregates: every error and warning is collected so the caller
// can present a complete remediation list, instead of failing on the first
// problem and making the user fix one thing per round trip.
package cart

import (
	"context"
	"fmt"

	"github.com/quickbite/orderflow/internal/core/ports"
)

// Result is the outcome of validating a cart snapshot.
// Valid is true iff Errors is empty; Warnings never block checkout.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validator checks availability, address and non-empty invariants on the
// active cart, and flags price drift since items were added.
type Validator struct {
	carts   ports.CartStore
	catalog ports.Catalog
}

func NewValidator(carts ports.CartStore, catalog ports.Catalog) *Validator {
	return &Validator{carts: carts, catalog: catalog}
}

// Validate reads the user's active cart and checks it. The returned cart is
// nil when the user has none. The error return is reserved for collaborator
// failures; business problems land in Result.Errors.
func (v *Validator) Validate(ctx context.Context, userID string) (*ports.Cart, Result, error) {
	res := Result{Errors: []string{}, Warnings: []string{}}

	c, err := v.carts.ActiveCart(ctx, userID)
	if err != nil {
		return nil, res, fmt.Errorf("read active cart for user %s: %w", userID, err)
	}
	if c == nil {
		res.Errors = append(res.Errors, "no active cart")
		return nil, res, nil
	}

	if len(c.Items) == 0 {
		res.Errors = append(res.Errors, "cart is empty")
	}
	if c.AddressID == "" {
		res.Errors = append(res.Errors, "delivery address required")
	}

	for _, item := range c.Items {
		p, err := v.catalog.Product(ctx, item.ProductID)
		if err != nil {
			return nil, res, fmt.Errorf("look up product %s: %w", item.ProductID, err)
		}
		if !p.Available {
			res.Errors = append(res.Errors, fmt.Sprintf("%s no longer available", p.Name))
			continue
		}
		// Price drift is informational: checkout may proceed, but the caller
		// is told prices have moved since the item was added.
		if p.BasePrice != item.UnitPrice {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"price of %s changed from %.2f to %.2f", p.Name, item.UnitPrice, p.BasePrice))
		}
	}

	res.Valid = len(res.Errors) == 0
	return c, res, nil
}
