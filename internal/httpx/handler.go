package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quickbite/orderflow/internal/checkout"
	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/httpx/middlewares"
	"github.com/quickbite/orderflow/internal/order"
	"github.com/quickbite/orderflow/internal/pkg/apperr"
)

// Handler handles incoming HTTP requests for the checkout and order domains.
type Handler struct {
	checkout *checkout.Service
	orders   *order.Service
}

func NewHandler(cs *checkout.Service, os *order.Service) *Handler {
	return &Handler{checkout: cs, orders: os}
}

// CreateSession validates the caller's active cart and freezes it into a new
// checkout session. Validation warnings ride along with the success response.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	sess, warnings, err := h.checkout.Create(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Session: sess, Warnings: warnings})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	sess, err := h.checkout.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess})
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req ApplyCouponRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code is required", nil)
		return
	}

	sess, err := h.checkout.ApplyCoupon(r.Context(), userID, chi.URLParam(r, "id"), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess})
}

func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	sess, err := h.checkout.RemoveCoupon(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Session: sess})
}

// ConfirmSession consumes the session and creates the order.
func (h *Handler) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req ConfirmRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.checkout.Confirm(r.Context(), userID, chi.URLParam(r, "id"), req.PaymentMethod)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PaymentMethodsResponse{PaymentMethods: h.checkout.PaymentMethods()})
}

// DeliveryFee previews the delivery charge for an address without creating a
// session.
func (h *Handler) DeliveryFee(w http.ResponseWriter, r *http.Request) {
	addressID := r.URL.Query().Get("address_id")
	fee, err := h.checkout.DeliveryQuote(r.Context(), addressID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeliveryFeeResponse{AddressID: addressID, DeliveryFee: fee})
}

// ListOrders returns the caller's orders, filterable and paginated.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	f.UserID = userID

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Limit: f.Limit, Offset: f.Offset})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	t, err := h.orders.Tracking(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	inv, err := h.orders.Invoice(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// CancelOrder is the customer self-cancellation path.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req CancelOrderRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), userID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req RateOrderRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orders.Rate(r.Context(), chi.URLParam(r, "id"), userID, req.Rating, req.Review)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Reorder copies the order's items back into the caller's active cart.
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.orders.Reorder(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "items added to cart"})
}

// AdminListOrders lists orders without user scoping; an explicit user_id
// query narrows it.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}
	f.UserID = r.URL.Query().Get("user_id")

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Limit: f.Limit, Offset: f.Offset})
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), order.Status(req.Status), order.ActorAdmin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) AdminAssignDriver(w http.ResponseWriter, r *http.Request) {
	var req AssignDriverRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orders.AssignDriver(r.Context(), chi.URLParam(r, "id"), req.DriverID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) AdminAddNotes(w http.ResponseWriter, r *http.Request) {
	var req AddNotesRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.orders.AddInternalNotes(r.Context(), chi.URLParam(r, "id"), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middlewares.UserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_identity",
			middlewares.HeaderXUserID+" header is required", nil)
		return "", false
	}
	return userID, true
}

// filterFromQuery builds an order list filter from the common query
// parameters shared by the customer and admin listings.
func filterFromQuery(r *http.Request) (order.Filter, error) {
	q := r.URL.Query()
	f := order.Filter{
		StoreID: q.Get("store_id"),
		Status:  order.Status(q.Get("status")),
	}

	var err error
	if f.From, err = parseTimeParam(q.Get("from")); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(q.Get("to")); err != nil {
		return f, err
	}
	if f.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		return f, err
	}
	if f.Offset, err = parseIntParam(q.Get("offset")); err != nil {
		return f, err
	}
	return f, nil
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseIntParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return false
	}
	return true
}

// writeDomainError maps the core error taxonomy to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		writeError(w, statusFor(e.Kind), codeFor(e.Kind), e.Message, e.Details)
		return
	}
	if errors.Is(err, ports.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "collaborator_unavailable",
			"a dependent service is unavailable, retry later", nil)
		return
	}
	slog.Error("unhandled error in http layer", "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(k apperr.Kind) string {
	switch k {
	case apperr.KindValidation:
		return "validation_error"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindUnauthorized:
		return "unauthorized"
	case apperr.KindStateConflict:
		return "state_conflict"
	case apperr.KindBusinessRule:
		return "business_rule_violation"
	default:
		return "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details []string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
		Details: details,
	})
}
