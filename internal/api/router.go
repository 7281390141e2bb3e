package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the HTTP surface. Checkout and the Stripe callback are
// public; everything touching tables and guests sits behind the OIDC
// middleware.
func NewRouter(h *Handler, authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// --- Public Routes ---
	r.Post("/api/checkout", h.PostCheckout)
	r.Post("/api/webhooks/stripe", h.PostStripeWebhook)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Route("/api", func(r chi.Router) {
			r.Route("/tables/{tableID}", func(r chi.Router) {
				r.Get("/", h.GetTableSummary)
				r.Get("/guests", h.GetTableGuests)
				r.Post("/guests", h.PostTableGuest)
			})

			r.Route("/guests/{guestID}", func(r chi.Router) {
				r.Patch("/", h.PatchGuest)
				r.Delete("/", h.DeleteGuest)
				r.Post("/transfer", h.PostGuestTransfer)
				r.Get("/qr", h.GetGuestQR)
			})

			r.Post("/checkin/{referenceCode}", h.PostCheckIn)
			r.Get("/orders/{orderID}", h.GetOrder)
			r.Get("/events/{eventID}/activity", h.GetEventActivity)
			r.Get("/admin/webhook-events", h.GetUnprocessedWebhookEvents)
		})
	})

	return r
}
