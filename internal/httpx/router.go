// Package httpx is the HTTP surface over the checkout and order services.
package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quickbite/orderflow/internal/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachIdentity)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/payment-methods", handler.PaymentMethods)
		r.Get("/delivery-fee", handler.DeliveryFee)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", handler.CreateSession)
			r.Get("/{id}", handler.GetSession)
			r.Post("/{id}/coupon", handler.ApplyCoupon)
			r.Delete("/{id}/coupon", handler.RemoveCoupon)
			r.Post("/{id}/confirm", handler.ConfirmSession)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", handler.ListOrders)
		r.Get("/{id}", handler.GetOrder)
		r.Get("/{id}/tracking", handler.GetTracking)
		r.Get("/{id}/invoice", handler.GetInvoice)
		r.Post("/{id}/cancel", handler.CancelOrder)
		r.Post("/{id}/rating", handler.RateOrder)
		r.Post("/{id}/reorder", handler.Reorder)
	})

	r.Route("/admin/orders", func(r chi.Router) {
		r.Get("/", handler.AdminListOrders)
		r.Patch("/{id}/status", handler.AdminUpdateStatus)
		r.Patch("/{id}/driver", handler.AdminAssignDriver)
		r.Post("/{id}/notes", handler.AdminAddNotes)
	})

	return r
}
