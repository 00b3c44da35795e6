package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/order"
	"github.com/quickbite/orderflow/internal/promo"
)

// --- consumePromoStep ---

// consumePromoStep spends one unit of the code's usage budget for the order.
// It runs first because it is the step most likely to fail (limit hit by a
// concurrent confirmation), so nothing needs rolling back in the common
// failure case.
type consumePromoStep struct {
	promos  promo.Repository
	code    string
	userID  string
	orderID string
	now     time.Time
}

func (s *consumePromoStep) Name() string { return "consume_promo_usage" }

func (s *consumePromoStep) Execute(ctx context.Context) error {
	return s.promos.Consume(ctx, s.code, s.userID, s.orderID, s.now)
}

func (s *consumePromoStep) Compensate(ctx context.Context) error {
	return s.promos.Release(ctx, s.code, s.orderID)
}

// --- createOrderStep ---

// createOrderStep persists the order, its item snapshot and the initial
// history row in one repository transaction. Compensation does not delete —
// orders are never hard-deleted — it marks the order cancelled with a system
// reason.
type createOrderStep struct {
	orders  order.Repository
	order   *order.Order
	initial order.HistoryEntry
}

func (s *createOrderStep) Name() string { return "create_order" }

func (s *createOrderStep) Execute(ctx context.Context) error {
	if err := s.orders.Create(ctx, s.order, s.initial); err != nil {
		return fmt.Errorf("persist order %s: %w", s.order.ID, err)
	}
	return nil
}

func (s *createOrderStep) Compensate(ctx context.Context) error {
	now := s.initial.At
	o := s.order
	o.Status = order.StatusCancelled
	o.CancellationReason = "checkout confirmation failed"
	o.CancelledBy = order.ActorSystem
	o.CancelledAt = &now
	o.UpdatedAt = now
	return s.orders.Update(ctx, o, &order.HistoryEntry{
		OrderID: o.ID,
		Status:  order.StatusCancelled,
		Actor:   order.ActorSystem,
		TraceID: s.initial.TraceID,
		SpanID:  s.initial.SpanID,
		At:      now,
	})
}

// --- deactivateCartStep ---

// deactivateCartStep marks the source cart consumed. It runs last; its
// compensation is a no-op because the cart service treats deactivation of an
// already-gone cart as idempotent and nothing after it can fail.
type deactivateCartStep struct {
	carts  ports.CartStore
	cartID string
}

func (s *deactivateCartStep) Name() string { return "deactivate_cart" }

func (s *deactivateCartStep) Execute(ctx context.Context) error {
	if err := s.carts.Deactivate(ctx, s.cartID); err != nil {
		return fmt.Errorf("deactivate cart %s: %w", s.cartID, err)
	}
	return nil
}

func (s *deactivateCartStep) Compensate(context.Context) error { return nil }
