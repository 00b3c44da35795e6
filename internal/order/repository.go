package order

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories for unknown order ids.
var ErrNotFound = errors.New("order not found")

// Repository is the port for durable order storage.
//
// Mutations that represent a status transition take a HistoryEntry and must
// persist the order and append the history row atomically: every transition
// produces exactly one history row, never zero, never two.
type Repository interface {
	// Create persists the order, its items, and the initial history entry
	// in one atomic write.
	Create(ctx context.Context, o *Order, initial HistoryEntry) error

	// Get returns the order with its items. ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Order, error)

	// List returns orders matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Order, error)

	// Update persists the order's mutable fields. When history is non-nil
	// the row is appended in the same transaction (status transitions);
	// nil is for non-transition mutations like rating or notes.
	Update(ctx context.Context, o *Order, history *HistoryEntry) error

	// History returns the order's status trail in chronological order.
	History(ctx context.Context, orderID string) ([]HistoryEntry, error)
}
