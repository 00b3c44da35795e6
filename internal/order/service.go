package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/pkg/apperr"
	"github.com/quickbite/orderflow/internal/pkg/telemetry"
)

// CancellationWindow is how long after placement a customer may self-cancel.
// Measured from order creation, not from the last status change.
const CancellationWindow = 5 * time.Minute

// Actor labels recorded in the status history and cancellation metadata.
const (
	ActorCustomer = "customer"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
)

// Service enforces the lifecycle rules over a Repository.
type Service struct {
	repo  Repository
	carts ports.CartStore

	// now is swappable so tests can sit a clock right on the
	// cancellation-window boundary.
	now func() time.Time
}

func NewService(repo Repository, carts ports.CartStore) *Service {
	return &Service{
		repo:  repo,
		carts: carts,
		now:   time.Now,
	}
}

// Get returns an order. When userID is non-empty the caller must own the
// order; admin paths pass an empty userID to bypass the ownership check.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("order not found")
		}
		return nil, err
	}
	if userID != "" && o.UserID != userID {
		return nil, apperr.Unauthorized("order does not belong to this user")
	}
	return o, nil
}

// List returns orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f)
}

// Tracking returns the order's current status plus its full history.
// Read-only; not gated by the state machine.
func (s *Service) Tracking(ctx context.Context, userID, orderID string) (*Tracking, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Tracking{
		OrderID:         o.ID,
		Number:          o.Number,
		Status:          o.Status,
		ActualReadyTime: o.ActualReadyTime,
		History:         history,
	}, nil
}

// Invoice returns the receipt projection for a completed or in-flight order.
func (s *Service) Invoice(ctx context.Context, userID, orderID string) (*Invoice, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		OrderNumber: o.Number,
		IssuedAt:    o.CreatedAt,
		UserID:      o.UserID,
		Address:     o.DeliveryAddress,
		Items:       o.Items,
		Subtotal:    o.Subtotal,
		Tax:         o.Tax,
		DeliveryFee: o.DeliveryFee,
		Discount:    o.Discount,
		Total:       o.Total,
		PromoCode:   o.PromoCode,
	}, nil
}

// UpdateStatus moves the order to newStatus if the transition table allows
// it, appending exactly one history row. Reaching "ready" stamps the actual
// ready time.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, newStatus Status, actor string) (*Order, error) {
	if !newStatus.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown status %q", newStatus)
	}

	o, err := s.Get(ctx, "", orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, newStatus) {
		return nil, apperr.StateConflict("invalid status transition")
	}

	now := s.now().UTC()
	o.Status = newStatus
	o.UpdatedAt = now
	if newStatus == StatusReady {
		o.ActualReadyTime = &now
	}

	entry := s.historyEntry(ctx, orderID, newStatus, actor, now)
	if err := s.repo.Update(ctx, o, &entry); err != nil {
		return nil, fmt.Errorf("update order %s status: %w", orderID, err)
	}

	slog.InfoContext(ctx, "order status updated",
		"order_id", orderID, "status", newStatus, "actor", actor)
	return o, nil
}

// Cancel is the customer self-cancellation path, only allowed within the
// cancellation window.
func (s *Service) Cancel(ctx context.Context, orderID, userID, reason string) (*Order, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.New(apperr.KindValidation, "cancellation reason required")
	}

	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case o.Status == StatusCancelled:
		return nil, apperr.StateConflict("order is already cancelled")
	case o.Status == StatusCompleted:
		return nil, apperr.StateConflict("cannot cancel a completed order")
	}

	now := s.now().UTC()
	if now.Sub(o.CreatedAt) > CancellationWindow {
		return nil, apperr.BusinessRule("Order can only be cancelled within 5 minutes of placement")
	}

	o.Status = StatusCancelled
	o.CancellationReason = reason
	o.CancelledBy = ActorCustomer
	o.CancelledAt = &now
	o.UpdatedAt = now

	entry := s.historyEntry(ctx, orderID, StatusCancelled, ActorCustomer, now)
	if err := s.repo.Update(ctx, o, &entry); err != nil {
		return nil, fmt.Errorf("cancel order %s: %w", orderID, err)
	}

	slog.InfoContext(ctx, "order cancelled", "order_id", orderID, "reason", reason)
	return o, nil
}

// Rate records a 1-5 rating and optional review on a completed order.
func (s *Service) Rate(ctx context.Context, orderID, userID string, rating int, review string) (*Order, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.New(apperr.KindValidation, "Rating must be between 1 and 5")
	}

	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusCompleted {
		return nil, apperr.StateConflict("Only completed orders can be rated")
	}

	o.Rating = rating
	o.Review = review
	note := fmt.Sprintf("Rating: %d", rating)
	if review != "" {
		note += " - " + review
	}
	o.InternalNotes = appendNote(o.InternalNotes, note)
	o.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, o, nil); err != nil {
		return nil, fmt.Errorf("rate order %s: %w", orderID, err)
	}
	return o, nil
}

// AssignDriver sets the delivering driver. Terminal orders can no longer be
// assigned.
func (s *Service) AssignDriver(ctx context.Context, orderID, driverID string) (*Order, error) {
	if driverID == "" {
		return nil, apperr.New(apperr.KindValidation, "driver id required")
	}

	o, err := s.Get(ctx, "", orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.IsTerminal() {
		return nil, apperr.StateConflict("cannot assign driver to order")
	}

	o.AssignedDriverID = driverID
	o.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, o, nil); err != nil {
		return nil, fmt.Errorf("assign driver to order %s: %w", orderID, err)
	}
	return o, nil
}

// AddInternalNotes appends an operator note. Append-only; not gated by the
// state machine.
func (s *Service) AddInternalNotes(ctx context.Context, orderID, note string) (*Order, error) {
	if strings.TrimSpace(note) == "" {
		return nil, apperr.New(apperr.KindValidation, "note required")
	}

	o, err := s.Get(ctx, "", orderID)
	if err != nil {
		return nil, err
	}
	o.InternalNotes = appendNote(o.InternalNotes, note)
	o.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, o, nil); err != nil {
		return nil, fmt.Errorf("add notes to order %s: %w", orderID, err)
	}
	return o, nil
}

// Reorder copies the order's items back into the user's active cart via the
// cart collaborator. Items are re-priced by the cart service at current
// catalog prices; the historical order itself is untouched.
func (s *Service) Reorder(ctx context.Context, userID, orderID string) error {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return err
	}

	items := make([]ports.CartItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ports.CartItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			Selections: it.Selections,
			AddOnIDs:   it.AddOnIDs,
			Notes:      it.Notes,
		})
	}
	if err := s.carts.AddItems(ctx, userID, items); err != nil {
		return fmt.Errorf("copy order %s items to cart: %w", orderID, err)
	}
	return nil
}

func (s *Service) historyEntry(ctx context.Context, orderID string, status Status, actor string, at time.Time) HistoryEntry {
	ti := telemetry.ExtractTraceInfo(ctx)
	return HistoryEntry{
		OrderID: orderID,
		Status:  status,
		Actor:   actor,
		TraceID: ti.TraceID,
		SpanID:  ti.SpanID,
		At:      at,
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
