// Package order drives a confirmed checkout through its lifecycle: the
// status state machine, cancellation-window enforcement, rating, driver
// assignment, and the append-only status history that audits every
// transition.
package order

import (
	"time"

	"github.com/quickbite/orderflow/internal/core/ports"
)

// Order is the durable record created once from a confirmed checkout
// session. Its line items are an immutable snapshot; prices are never
// recalculated after creation, and orders are never hard-deleted.
type Order struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	UserID string `json:"user_id"`
	// StoreID is the fulfilling store, empty for single-store deployments.
	StoreID string `json:"store_id,omitempty"`

	Status        Status `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentMethod string `json:"payment_method"`

	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Discount    float64 `json:"discount"`
	Total       float64 `json:"total"`
	PromoCode   string  `json:"promo_code,omitempty"`

	// DeliveryAddress is a snapshot, not a reference: editing the address
	// book later must not rewrite where an order was sent.
	DeliveryAddress ports.Address `json:"delivery_address"`

	PickupTime      *time.Time `json:"pickup_time,omitempty"`
	ActualReadyTime *time.Time `json:"actual_ready_time,omitempty"`

	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`

	InternalNotes    string `json:"internal_notes,omitempty"`
	AssignedDriverID string `json:"assigned_driver_id,omitempty"`

	Rating int    `json:"rating,omitempty"`
	Review string `json:"review,omitempty"`

	Items []Item `json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a denormalized snapshot of a cart item at order-creation time.
// Name and image are captured so catalog changes never alter what an order
// says it contained.
type Item struct {
	ID           string                  `json:"id"`
	OrderID      string                  `json:"order_id"`
	ProductID    string                  `json:"product_id"`
	ProductName  string                  `json:"product_name"`
	ProductImage string                  `json:"product_image"`
	Quantity     int                     `json:"quantity"`
	UnitPrice    float64                 `json:"unit_price"`
	LineTotal    float64                 `json:"line_total"`
	Selections   []ports.OptionSelection `json:"selections,omitempty"`
	AddOnIDs     []string                `json:"add_on_ids,omitempty"`
	Notes        string                  `json:"notes,omitempty"`
}

// HistoryEntry is one row of the append-only status audit trail. TraceID and
// SpanID carry the W3C identifiers of the request that caused the
// transition, so a row can be joined directly with its distributed trace.
type HistoryEntry struct {
	OrderID string    `json:"order_id"`
	Status  Status    `json:"status"`
	Actor   string    `json:"actor"`
	TraceID string    `json:"trace_id,omitempty"`
	SpanID  string    `json:"span_id,omitempty"`
	At      time.Time `json:"at"`
}

// Filter narrows a List query. Zero values mean "no constraint"; the fields
// are deliberately typed and closed rather than an open-ended criteria bag.
type Filter struct {
	UserID  string
	StoreID string
	Status  Status
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// Tracking is the read-only projection served to order-tracking callers.
type Tracking struct {
	OrderID         string         `json:"order_id"`
	Number          string         `json:"number"`
	Status          Status         `json:"status"`
	ActualReadyTime *time.Time     `json:"actual_ready_time,omitempty"`
	History         []HistoryEntry `json:"history"`
}

// Invoice is the receipt projection: the order's monetary breakdown plus its
// immutable line items.
type Invoice struct {
	OrderNumber string        `json:"order_number"`
	IssuedAt    time.Time     `json:"issued_at"`
	UserID      string        `json:"user_id"`
	Address     ports.Address `json:"address"`
	Items       []Item        `json:"items"`
	Subtotal    float64       `json:"subtotal"`
	Tax         float64       `json:"tax"`
	DeliveryFee float64       `json:"delivery_fee"`
	Discount    float64       `json:"discount"`
	Total       float64       `json:"total"`
	PromoCode   string        `json:"promo_code,omitempty"`
}
