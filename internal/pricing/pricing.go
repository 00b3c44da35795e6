// Package pricing computes a line item's unit price. It is a pure function
// over already-resolved catalog data: no I/O, no clock, fully deterministic.
package pricing

import "github.com/quickbite/orderflow/internal/core/ports"

// UnitPrice returns basePrice plus the modifier of every resolved selection
// plus the price of every available add-on.
//
// Selections whose customization type or option is absent from modifiers
// contribute 0, and unavailable add-ons contribute 0. This is deliberate
// leniency toward catalog drift between cart-add time and recompute time;
// validating selections is the cart service's job, not this package's.
func UnitPrice(
	basePrice float64,
	selections []ports.OptionSelection,
	modifiers map[ports.OptionSelection]float64,
	addOns []ports.AddOn,
) float64 {
	price := basePrice
	for _, sel := range selections {
		price += modifiers[sel]
	}
	for _, a := range addOns {
		if a.Available {
			price += a.Price
		}
	}
	return price
}
