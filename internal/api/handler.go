package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/auth"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/checkout"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/guests"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/logger"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/models"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/permission"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/seats"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/store"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/webhook"
)

// maxWebhookBody bounds webhook payload reads, per Stripe's guidance.
const maxWebhookBody = 65536

type Handler struct {
	DB       *store.DB
	Checkout *checkout.Service
	Guests   *guests.Service
	Webhook  *webhook.Service
	Seats    *seats.Calculator
	Resolver *permission.Resolver
	Logger   *logger.Logger
}

func NewHandler(db *store.DB, checkoutSvc *checkout.Service, guestSvc *guests.Service,
	webhookSvc *webhook.Service, resolver *permission.Resolver, log *logger.Logger) *Handler {
	return &Handler{
		DB:       db,
		Checkout: checkoutSvc,
		Guests:   guestSvc,
		Webhook:  webhookSvc,
		Seats:    seats.NewCalculator(db),
		Resolver: resolver,
		Logger:   log,
	}
}

// PostCheckout serves both authenticated and guest checkout. A bearer token,
// when present, pins the buyer; otherwise buyer_email in the body is used.
func (h *Handler) PostCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", errs.Wrap(errs.ValidationFailed, "request body is not valid JSON", err))
		return
	}

	if token, err := auth.ExtractTokenFromRequest(r); err == nil {
		if sub, err := auth.ExtractUserIDFromJWT(token); err == nil {
			req.UserID = sub
		}
	}

	h.Logger.Info("API", fmt.Sprintf("Checkout: product=%s quantity=%d table=%s", req.ProductID, req.Quantity, req.TableID))
	resp, err := h.Checkout.Checkout(r.Context(), req)
	if err != nil {
		h.writeError(w, "Checkout failed", err)
		return
	}
	h.writeData(w, http.StatusCreated, resp)
}

// PostStripeWebhook is the provider callback. Anything past signature
// verification is acknowledged with 200; failures live on the event ledger.
func (h *Handler) PostStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, "Failed to read webhook payload", err)
		return
	}

	if err := h.Webhook.VerifyAndHandle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeError(w, "Webhook rejected", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetOrder returns an order to its buyer or an admin.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := urlParam(r, "orderID")
	actorID := auth.UserID(r.Context())

	order, err := h.DB.GetOrderByID(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "Order not found", err)
		return
	}
	if order.UserID != actorID {
		isAdmin, err := h.Resolver.Admins.IsAdmin(r.Context(), order.OrganizationID, actorID)
		if err != nil {
			h.writeError(w, "Failed to resolve permissions", err)
			return
		}
		if !isAdmin {
			h.writeError(w, "Access denied", errs.New(errs.Forbidden, "only the buyer or an admin may view this order"))
			return
		}
	}
	h.writeData(w, http.StatusOK, order)
}

// requireSuperAdmin gates the cross-organization operator endpoints.
func (h *Handler) requireSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, err := h.DB.GetUserByID(r.Context(), auth.UserID(r.Context()))
	if err != nil || !user.IsSuperAdmin {
		h.writeError(w, "Access denied", errs.New(errs.Forbidden, "super admin access required"))
		return false
	}
	return true
}

// GetUnprocessedWebhookEvents lists ledger rows awaiting operator attention.
func (h *Handler) GetUnprocessedWebhookEvents(w http.ResponseWriter, r *http.Request) {
	if !h.requireSuperAdmin(w, r) {
		return
	}
	entries, err := h.DB.ListUnprocessedEvents(r.Context(), 100)
	if err != nil {
		h.writeError(w, "Failed to list webhook events", err)
		return
	}
	h.writeData(w, http.StatusOK, entries)
}
