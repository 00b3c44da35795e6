// Package checkout owns the ephemeral, time-boxed checkout session: the
// immutable priced snapshot of a cart that a user confirms into an order.
//
// A session is created from a validated cart, mutated only by coupon
// apply/remove while unexpired, and consumed exactly once by confirmation.
// Expiry is enforced lazily at read time; nothing sweeps sessions
// proactively, and losing them on restart is acceptable because the cart
// stays the durable source of truth until an order exists.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/quickbite/orderflow/internal/core/ports"
)

// LineItem is a cart item frozen at session-creation time. Product name and
// image are captured, not live-joined, so the priced contents cannot shift
// under the user while they check out.
type LineItem struct {
	ProductID    string                  `json:"product_id"`
	ProductName  string                  `json:"product_name"`
	ProductImage string                  `json:"product_image"`
	Quantity     int                     `json:"quantity"`
	UnitPrice    float64                 `json:"unit_price"`
	Selections   []ports.OptionSelection `json:"selections,omitempty"`
	AddOnIDs     []string                `json:"add_on_ids,omitempty"`
	Notes        string                  `json:"notes,omitempty"`
}

// Session is the mutable state at the center of the checkout core.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	CartID string `json:"cart_id"`

	Items []LineItem `json:"items"`

	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`

	AppliedPromoCode string `json:"applied_promo_code,omitempty"`

	DeliveryAddress ports.Address `json:"delivery_address"`
	StoreID         string        `json:"store_id"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Consumed is set (via compare-and-swap) at the start of confirmation,
	// so of two racing Confirm calls exactly one proceeds.
	Consumed bool `json:"consumed,omitempty"`

	// Version backs the store's compare-and-swap. Two concurrent coupon
	// mutations against the same session cannot both commit.
	Version int64 `json:"version"`
}

// RecomputeTotal re-derives Total from the formula that must hold at every
// point in the session's life: total = subtotal - discount + tax + fee,
// clamped at zero.
func (s *Session) RecomputeTotal() {
	total := s.Subtotal - s.Discount + s.Tax + s.DeliveryFee
	if total < 0 {
		total = 0
	}
	s.Total = total
}

// Expired reports whether the session is past its expiry at the given moment.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

var (
	// ErrSessionNotFound is returned by stores for unknown session ids.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrVersionConflict is returned by CompareAndSwap when the stored
	// version differs from the caller's; the caller re-reads and retries.
	ErrVersionConflict = errors.New("checkout session version conflict")
)

// Store is the port for session persistence. An in-memory implementation
// serves tests and single-process deployments; a Redis implementation makes
// sessions shared across processes. Lookup by id is O(1) in both.
type Store interface {
	// Get returns the session, expired or not; the service layer decides
	// what expiry means to the caller. ErrSessionNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Session, error)

	// Put stores a new session.
	Put(ctx context.Context, s *Session) error

	// CompareAndSwap persists s only if the stored version still equals
	// s.Version, bumping the version on success. ErrVersionConflict
	// otherwise.
	CompareAndSwap(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, id string) error
}
