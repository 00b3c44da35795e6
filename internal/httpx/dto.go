package httpx

import (
	"github.com/quickbite/orderflow/internal/checkout"
	"github.com/quickbite/orderflow/internal/order"
)

type ApplyCouponRequest struct {
	Code string `json:"code"`
}

type ConfirmRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type RateOrderRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

type AddNotesRequest struct {
	Note string `json:"note"`
}

// SessionResponse pairs the session with the non-blocking warnings collected
// during cart validation (price drift and the like).
type SessionResponse struct {
	Session  *checkout.Session `json:"session"`
	Warnings []string          `json:"warnings,omitempty"`
}

type OrderListResponse struct {
	Orders []*order.Order `json:"orders"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type PaymentMethodsResponse struct {
	PaymentMethods []string `json:"payment_methods"`
}

type DeliveryFeeResponse struct {
	AddressID   string  `json:"address_id"`
	DeliveryFee float64 `json:"delivery_fee"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}
