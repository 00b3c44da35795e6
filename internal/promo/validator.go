package promo

import "time"

// Eligible reports whether the code is redeemable at the given moment:
// it must be active and now must fall inside [ValidFrom, ValidUntil].
//
// The usage budget is deliberately not checked here. Applying a coupon to a
// checkout session is a trial: usage is consumed only when an order is
// actually confirmed, so apply/remove during session editing never mutates
// counters. A code that passes here can still fail at confirmation if the
// budget runs out in between.
func (c *Code) Eligible(now time.Time) bool {
	if !c.Active {
		return false
	}
	return !now.Before(c.ValidFrom) && !now.After(c.ValidUntil)
}

// Discount computes the discount amount for the given subtotal.
//
// Fixed discounts are not clamped to the subtotal; only the session's final
// total is clamped at zero. That mirrors the intended product behavior — see
// DESIGN.md before "fixing" it.
func (c *Code) Discount(subtotal float64) float64 {
	switch c.DiscountType {
	case DiscountPercentage:
		return subtotal * c.Value / 100
	case DiscountFixed:
		return c.Value
	default:
		return 0
	}
}
