package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeCode(from, until time.Time) *Code {
	return &Code{
		ID:           "pc-1",
		Code:         "SAVE10",
		DiscountType: DiscountPercentage,
		Value:        10,
		Active:       true,
		ValidFrom:    from,
		ValidUntil:   until,
	}
}

func TestEligible_Window(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	c := activeCode(now.Add(-time.Hour), now.Add(time.Hour))

	assert.True(t, c.Eligible(now))
	assert.True(t, c.Eligible(c.ValidFrom), "window is inclusive at the start")
	assert.True(t, c.Eligible(c.ValidUntil), "window is inclusive at the end")
	assert.False(t, c.Eligible(c.ValidFrom.Add(-time.Second)))
	assert.False(t, c.Eligible(c.ValidUntil.Add(time.Second)))
}

func TestEligible_InactiveCodeNeverEligible(t *testing.T) {
	now := time.Now()
	c := activeCode(now.Add(-time.Hour), now.Add(time.Hour))
	c.Active = false

	assert.False(t, c.Eligible(now))
}

func TestDiscount_Percentage(t *testing.T) {
	c := &Code{DiscountType: DiscountPercentage, Value: 10}
	assert.InDelta(t, 10.00, c.Discount(100.00), 1e-9)
	assert.InDelta(t, 2.50, c.Discount(25.00), 1e-9)
}

func TestDiscount_Fixed(t *testing.T) {
	c := &Code{DiscountType: DiscountFixed, Value: 20}
	assert.InDelta(t, 20.00, c.Discount(100.00), 1e-9)

	// Fixed discounts are intentionally not clamped to the subtotal.
	assert.InDelta(t, 20.00, c.Discount(5.00), 1e-9)
}
