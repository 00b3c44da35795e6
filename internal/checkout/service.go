package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/order"
	"github.com/quickbite/orderflow/internal/pkg/apperr"
	"github.com/quickbite/orderflow/internal/pkg/telemetry"
	"github.com/quickbite/orderflow/internal/promo"
	"github.com/quickbite/orderflow/internal/saga"
)

// casRetries bounds the re-read-and-retry loop around optimistic session
// writes. Conflicts are rare (a user racing their own double-click), so a
// small bound is plenty.
const casRetries = 3

// Config carries the tunables main() reads from the environment.
type Config struct {
	// SessionTTL is the checkout time box; expired sessions reject every
	// operation.
	SessionTTL time.Duration
	// TaxRate is the flat tax applied to the subtotal.
	TaxRate float64
	// PaymentMethods is the list offered at confirmation.
	PaymentMethods []string
}

// DefaultConfig matches the values used in local development.
func DefaultConfig() Config {
	return Config{
		SessionTTL:     15 * time.Minute,
		TaxRate:        0.09,
		PaymentMethods: []string{"card", "cash", "wallet"},
	}
}

// Service is the checkout session manager: it turns a validated cart into a
// time-boxed priced session, owns coupon apply/remove, and confirms the
// session into an order exactly once.
type Service struct {
	sessions  Store
	validator *cart.Validator
	carts     ports.CartStore
	catalog   ports.Catalog
	addresses ports.AddressBook
	fees      ports.FeeCalculator
	promos    promo.Repository
	orders    order.Repository
	cfg       Config

	now func() time.Time
}

func NewService(
	sessions Store,
	validator *cart.Validator,
	carts ports.CartStore,
	catalog ports.Catalog,
	addresses ports.AddressBook,
	fees ports.FeeCalculator,
	promos promo.Repository,
	orders order.Repository,
	cfg Config,
) *Service {
	return &Service{
		sessions:  sessions,
		validator: validator,
		carts:     carts,
		catalog:   catalog,
		addresses: addresses,
		fees:      fees,
		promos:    promos,
		orders:    orders,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create validates the user's cart and, on success, freezes it into a new
// session. Warnings (price drift) accompany a successful result; they never
// block.
func (s *Service) Create(ctx context.Context, userID string) (*Session, []string, error) {
	c, res, err := s.validator.Validate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid {
		return nil, nil, apperr.Validation("Checkout validation failed", res.Errors...)
	}

	addr, err := s.addresses.Address(ctx, c.AddressID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve address %s: %w", c.AddressID, err)
	}
	fee, err := s.fees.ComputeFee(ctx, c.AddressID)
	if err != nil {
		return nil, nil, fmt.Errorf("compute delivery fee: %w", err)
	}

	items := make([]LineItem, 0, len(c.Items))
	var subtotal float64
	for _, it := range c.Items {
		p, err := s.catalog.Product(ctx, it.ProductID)
		if err != nil {
			return nil, nil, fmt.Errorf("look up product %s: %w", it.ProductID, err)
		}
		items = append(items, LineItem{
			ProductID:    it.ProductID,
			ProductName:  p.Name,
			ProductImage: p.Image,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			Selections:   it.Selections,
			AddOnIDs:     it.AddOnIDs,
			Notes:        it.Notes,
		})
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	subtotal = round2(subtotal)

	now := s.now().UTC()
	sess := &Session{
		ID:              uuid.NewString(),
		UserID:          userID,
		CartID:          c.ID,
		Items:           items,
		Subtotal:        subtotal,
		Tax:             round2(subtotal * s.cfg.TaxRate),
		DeliveryFee:     fee,
		Discount:        0,
		DeliveryAddress: addr,
		StoreID:         c.StoreID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.SessionTTL),
	}
	sess.RecomputeTotal()

	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("store session: %w", err)
	}

	slog.InfoContext(ctx, "checkout session created",
		"session_id", sess.ID, "user_id", userID, "total", sess.Total)
	return sess, res.Warnings, nil
}

// Get returns the session unchanged. This is a read with time-based
// validity: every access re-checks expiry.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.resolve(ctx, userID, sessionID)
}

// ApplyCoupon sets the session's discount from the given promo code and
// recomputes the total.
func (s *Service) ApplyCoupon(ctx context.Context, userID, sessionID, code string) (*Session, error) {
	pc, err := s.promos.GetByCode(ctx, code)
	if errors.Is(err, promo.ErrCodeNotFound) {
		return nil, apperr.NotFound("invalid promo code")
	}
	if err != nil {
		return nil, fmt.Errorf("look up promo code: %w", err)
	}
	if !pc.Eligible(s.now()) {
		return nil, apperr.BusinessRule("promo code is not valid at this time")
	}

	return s.mutate(ctx, userID, sessionID, func(sess *Session) error {
		sess.Discount = round2(pc.Discount(sess.Subtotal))
		sess.AppliedPromoCode = pc.Code
		sess.RecomputeTotal()
		return nil
	})
}

// RemoveCoupon clears any applied discount. Removing when nothing is applied
// is a no-op that still succeeds: the result equals a session that never saw
// a coupon.
func (s *Service) RemoveCoupon(ctx context.Context, userID, sessionID string) (*Session, error) {
	return s.mutate(ctx, userID, sessionID, func(sess *Session) error {
		sess.Discount = 0
		sess.AppliedPromoCode = ""
		sess.RecomputeTotal()
		return nil
	})
}

// Confirm consumes the session exactly once and produces the order. The
// world changes in compensating steps: consume the promo budget, persist
// order + items + initial history, deactivate the cart. A failed step rolls
// the earlier ones back, and the session is released for a retry.
func (s *Service) Confirm(ctx context.Context, userID, sessionID, paymentMethod string) (*order.Order, error) {
	if !s.validPaymentMethod(paymentMethod) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown payment method %q", paymentMethod)
	}

	// Claim the session via CAS: of two racing confirmations exactly one
	// sees a swap succeed on the unconsumed version.
	sess, err := s.mutate(ctx, userID, sessionID, func(sess *Session) error {
		sess.Consumed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o := s.buildOrder(sess, paymentMethod, now)

	steps := []saga.Step{}
	if sess.AppliedPromoCode != "" {
		steps = append(steps, &consumePromoStep{
			promos: s.promos, code: sess.AppliedPromoCode,
			userID: userID, orderID: o.ID, now: now,
		})
	}
	steps = append(steps,
		&createOrderStep{
			orders: s.orders, order: o,
			initial: order.HistoryEntry{
				OrderID: o.ID,
				Status:  o.Status,
				Actor:   order.ActorCustomer,
				TraceID: telemetry.ExtractTraceInfo(ctx).TraceID,
				SpanID:  telemetry.ExtractTraceInfo(ctx).SpanID,
				At:      now,
			},
		},
		&deactivateCartStep{carts: s.carts, cartID: sess.CartID},
	)

	if err := saga.NewOrchestrator(steps).Run(ctx); err != nil {
		s.releaseSession(ctx, sess)
		switch {
		case errors.Is(err, promo.ErrUsageLimitReached), errors.Is(err, promo.ErrUserLimitReached):
			return nil, apperr.Wrap(apperr.KindBusinessRule, "promo code usage limit exceeded", err)
		default:
			return nil, fmt.Errorf("confirm session %s: %w", sessionID, err)
		}
	}

	// The session is spent; remove it so it cannot be confirmed twice.
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		// The Consumed flag already blocks reuse; deletion is cleanup.
		slog.WarnContext(ctx, "failed to delete confirmed session",
			"session_id", sessionID, "error", err)
	}

	slog.InfoContext(ctx, "order confirmed",
		"order_id", o.ID, "order_number", o.Number, "user_id", userID, "total", o.Total)
	return o, nil
}

// PaymentMethods lists the methods accepted at confirmation.
func (s *Service) PaymentMethods() []string {
	return append([]string(nil), s.cfg.PaymentMethods...)
}

// DeliveryQuote previews the delivery fee for an address without creating a
// session.
func (s *Service) DeliveryQuote(ctx context.Context, addressID string) (float64, error) {
	if addressID == "" {
		return 0, apperr.New(apperr.KindValidation, "address id required")
	}
	fee, err := s.fees.ComputeFee(ctx, addressID)
	if err != nil {
		return 0, fmt.Errorf("compute delivery fee: %w", err)
	}
	return fee, nil
}

// resolve loads the session and applies the three access gates in order:
// existence, ownership, expiry.
func (s *Service) resolve(ctx context.Context, userID, sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, apperr.NotFound("checkout session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.UserID != userID {
		return nil, apperr.Unauthorized("checkout session does not belong to this user")
	}
	if sess.Consumed {
		return nil, apperr.StateConflict("checkout session already confirmed")
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, apperr.StateConflict("checkout session expired")
	}
	return sess, nil
}

// mutate applies fn under optimistic concurrency: read, mutate, CAS, retry
// on version conflict. This is what serializes concurrent coupon operations
// against the same session.
func (s *Service) mutate(ctx context.Context, userID, sessionID string, fn func(*Session) error) (*Session, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		sess, err := s.resolve(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		err = s.sessions.CompareAndSwap(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("store session %s: %w", sessionID, err)
		}
	}
	return nil, apperr.StateConflict("checkout session is being modified concurrently")
}

// releaseSession clears the Consumed claim after a failed confirmation so
// the user can retry. Best effort; a lost release only costs the user a new
// session.
func (s *Service) releaseSession(ctx context.Context, sess *Session) {
	sess.Consumed = false
	if err := s.sessions.CompareAndSwap(ctx, sess); err != nil {
		slog.WarnContext(ctx, "failed to release session after confirm failure",
			"session_id", sess.ID, "error", err)
	}
}

func (s *Service) buildOrder(sess *Session, paymentMethod string, now time.Time) *order.Order {
	orderID := uuid.NewString()
	items := make([]order.Item, 0, len(sess.Items))
	for _, li := range sess.Items {
		items = append(items, order.Item{
			ID:           uuid.NewString(),
			OrderID:      orderID,
			ProductID:    li.ProductID,
			ProductName:  li.ProductName,
			ProductImage: li.ProductImage,
			Quantity:     li.Quantity,
			UnitPrice:    li.UnitPrice,
			LineTotal:    round2(li.UnitPrice * float64(li.Quantity)),
			Selections:   li.Selections,
			AddOnIDs:     li.AddOnIDs,
			Notes:        li.Notes,
		})
	}

	return &order.Order{
		ID:              orderID,
		Number:          orderNumber(now),
		UserID:          sess.UserID,
		StoreID:         sess.StoreID,
		Status:          order.StatusPendingPayment,
		PaymentStatus:   "pending",
		PaymentMethod:   paymentMethod,
		Subtotal:        sess.Subtotal,
		Tax:             sess.Tax,
		DeliveryFee:     sess.DeliveryFee,
		Discount:        sess.Discount,
		Total:           sess.Total,
		PromoCode:       sess.AppliedPromoCode,
		DeliveryAddress: sess.DeliveryAddress,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *Service) validPaymentMethod(method string) bool {
	for _, m := range s.cfg.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// orderNumber builds the human-readable unique order number,
// e.g. ORD-20260831-1A2B3C4D.
func orderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
