package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/adapters/memory"
	"github.com/quickbite/orderflow/internal/cart"
	"github.com/quickbite/orderflow/internal/checkout"
	"github.com/quickbite/orderflow/internal/checkout/session"
	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/order"
	"github.com/quickbite/orderflow/internal/promo"
)

type stubPromos struct {
	code *promo.Code
}

func (s *stubPromos) GetByCode(_ context.Context, code string) (*promo.Code, error) {
	if s.code == nil || s.code.Code != code {
		return nil, promo.ErrCodeNotFound
	}
	cp := *s.code
	return &cp, nil
}

func (s *stubPromos) Consume(context.Context, string, string, string, time.Time) error {
	return nil
}

func (s *stubPromos) Release(context.Context, string, string) error { return nil }

type stubOrders struct {
	orders  map[string]*order.Order
	history map[string][]order.HistoryEntry
}

func newStubOrders() *stubOrders {
	return &stubOrders{
		orders:  make(map[string]*order.Order),
		history: make(map[string][]order.HistoryEntry),
	}
}

func (s *stubOrders) Create(_ context.Context, o *order.Order, initial order.HistoryEntry) error {
	cp := *o
	s.orders[o.ID] = &cp
	s.history[o.ID] = append(s.history[o.ID], initial)
	return nil
}

func (s *stubOrders) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrders) List(_ context.Context, f order.Filter) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubOrders) Update(_ context.Context, o *order.Order, h *order.HistoryEntry) error {
	cp := *o
	s.orders[o.ID] = &cp
	if h != nil {
		s.history[o.ID] = append(s.history[o.ID], *h)
	}
	return nil
}

func (s *stubOrders) History(_ context.Context, orderID string) ([]order.HistoryEntry, error) {
	return s.history[orderID], nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	catalog := memory.NewCatalog()
	catalog.PutProduct(ports.Product{ID: "p1", Name: "Margherita", BasePrice: 12.50, Available: true})

	addresses := memory.NewAddressBook()
	addresses.Put(ports.Address{ID: "a1", Label: "Home", Street: "1 Elm St", City: "Springfield"})

	carts := memory.NewCartStore(catalog)
	carts.SetActiveCart(&ports.Cart{
		ID: "c1", UserID: "u1", AddressID: "a1",
		Items: []ports.CartItem{{ID: "i1", ProductID: "p1", Quantity: 2, UnitPrice: 12.50}},
	})

	now := time.Now().UTC()
	promos := &stubPromos{code: &promo.Code{
		ID: "pc1", Code: "SAVE10", DiscountType: promo.DiscountPercentage, Value: 10,
		Active: true, ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
	}}
	orders := newStubOrders()

	checkoutSvc := checkout.NewService(
		session.NewMemoryStore(),
		cart.NewValidator(carts, catalog),
		carts, catalog, addresses, memory.NewFeeCalculator(3.50),
		promos, orders,
		checkout.DefaultConfig(),
	)
	orderSvc := order.NewService(orders, carts)

	srv := httptest.NewServer(NewRouter(NewHandler(checkoutSvc, orderSvc)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, userID string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/checkout/sessions", "u1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))
	sessionID := created.Session.ID
	assert.InDelta(t, 25.00, created.Session.Subtotal, 1e-9)

	resp, body = do(t, http.MethodPost, srv.URL+"/checkout/sessions/"+sessionID+"/coupon",
		"u1", ApplyCouponRequest{Code: "SAVE10"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var withCoupon SessionResponse
	require.NoError(t, json.Unmarshal(body, &withCoupon))
	assert.InDelta(t, 2.50, withCoupon.Session.Discount, 1e-9)

	resp, body = do(t, http.MethodPost, srv.URL+"/checkout/sessions/"+sessionID+"/confirm",
		"u1", ConfirmRequest{PaymentMethod: "card"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var placed order.Order
	require.NoError(t, json.Unmarshal(body, &placed))
	assert.Equal(t, order.StatusPendingPayment, placed.Status)

	// The session is spent.
	resp, _ = do(t, http.MethodPost, srv.URL+"/checkout/sessions/"+sessionID+"/confirm",
		"u1", ConfirmRequest{PaymentMethod: "card"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The order is visible through the order surface.
	resp, body = do(t, http.MethodGet, srv.URL+"/orders/"+placed.ID, "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/orders/"+placed.ID+"/tracking", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tracking order.Tracking
	require.NoError(t, json.Unmarshal(body, &tracking))
	assert.Len(t, tracking.History, 1)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t)

	t.Run("missing identity header", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, srv.URL+"/checkout/sessions", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown session", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, srv.URL+"/checkout/sessions/ghost", "u1", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var e ErrorResponse
		require.NoError(t, json.Unmarshal(body, &e))
		assert.Equal(t, "not_found", e.Error)
	})

	t.Run("foreign session is forbidden", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, srv.URL+"/checkout/sessions", "u1", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
		var created SessionResponse
		require.NoError(t, json.Unmarshal(body, &created))

		resp, _ = do(t, http.MethodGet, srv.URL+"/checkout/sessions/"+created.Session.ID, "u2", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("validation failure carries details", func(t *testing.T) {
		// u2 has no active cart.
		resp, body := do(t, http.MethodPost, srv.URL+"/checkout/sessions", "u2", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var e ErrorResponse
		require.NoError(t, json.Unmarshal(body, &e))
		assert.Equal(t, "Checkout validation failed", e.Message)
		assert.Contains(t, e.Details, "no active cart")
	})

	t.Run("unknown order on the admin surface", func(t *testing.T) {
		resp, _ := do(t, http.MethodPatch, srv.URL+"/admin/orders/ghost/status",
			"", UpdateStatusRequest{Status: "ready"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminSurface(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/checkout/sessions", "u1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created SessionResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = do(t, http.MethodPost, srv.URL+"/checkout/sessions/"+created.Session.ID+"/confirm",
		"u1", ConfirmRequest{PaymentMethod: "cash"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var placed order.Order
	require.NoError(t, json.Unmarshal(body, &placed))

	resp, body = do(t, http.MethodPatch, srv.URL+"/admin/orders/"+placed.ID+"/status",
		"", UpdateStatusRequest{Status: "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated order.Order
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, order.StatusConfirmed, updated.Status)

	resp, _ = do(t, http.MethodPatch, srv.URL+"/admin/orders/"+placed.ID+"/driver",
		"", AssignDriverRequest{DriverID: "d1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/admin/orders/"+placed.ID+"/notes",
		"", AddNotesRequest{Note: "ring twice"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// ready on a confirmed order skips preparing and must fail.
	resp, body = do(t, http.MethodPatch, srv.URL+"/admin/orders/"+placed.ID+"/status",
		"", UpdateStatusRequest{Status: "ready"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "invalid status transition", e.Message)
}
