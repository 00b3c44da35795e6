// Package promo holds promotional discount codes: their redeemability rules,
// discount arithmetic, and the consumable usage budget enforced at order
// confirmation.
package promo

import (
	"context"
	"errors"
	"time"
)

// DiscountType selects how a code's value is interpreted.
type DiscountType string

const (
	// DiscountPercentage discounts value% of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed amount regardless of subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Code is a promotional discount code.
type Code struct {
	ID           string
	Code         string
	DiscountType DiscountType
	Value        float64
	Active       bool
	ValidFrom    time.Time
	ValidUntil   time.Time

	// UsageLimit caps total redemptions across all users. 0 means unlimited.
	UsageLimit int
	// UsageCount is how many orders have redeemed this code so far.
	UsageCount int
	// PerUserLimit caps redemptions per user. 0 means unlimited.
	PerUserLimit int
}

// Usage records one (code, order) redemption so limits are enforced without
// double counting.
type Usage struct {
	CodeID  string
	OrderID string
	UserID  string
	UsedAt  time.Time
}

var (
	// ErrCodeNotFound is returned when no code matches the given string.
	ErrCodeNotFound = errors.New("promo code not found")
	// ErrUsageLimitReached is returned when consuming would exceed the
	// code's total usage limit.
	ErrUsageLimitReached = errors.New("promo code usage limit reached")
	// ErrUserLimitReached is returned when the caller has already redeemed
	// the code its per-user maximum number of times.
	ErrUserLimitReached = errors.New("promo code per-user limit reached")
)

// Repository is the port for promo code storage.
//
// Consume must be a single atomic conditional operation: two near-simultaneous
// confirmations with the same near-exhausted code must not both pass the
// limit. Read-then-write is not acceptable here.
type Repository interface {
	// GetByCode looks a code up by its string. ErrCodeNotFound when absent.
	GetByCode(ctx context.Context, code string) (*Code, error)

	// Consume atomically increments the code's usage counter if and only if
	// it stays within the usage limit, records a Usage row for the order,
	// and enforces the per-user limit. Returns ErrUsageLimitReached or
	// ErrUserLimitReached on violation, leaving the counter untouched.
	Consume(ctx context.Context, code, userID, orderID string, now time.Time) error

	// Release undoes a Consume when a later confirmation step fails:
	// decrements the counter and deletes the Usage row. Idempotent.
	Release(ctx context.Context, code, orderID string) error
}
