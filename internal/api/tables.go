package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/auth"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/guests"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/permission"
	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/refcode"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// GetTableSummary returns the seat picture (capacity, purchased, assigned,
// placeholders) for anyone allowed to view the table.
func (h *Handler) GetTableSummary(w http.ResponseWriter, r *http.Request) {
	tableID := urlParam(r, "tableID")
	actorID := auth.UserID(r.Context())

	decision, err := h.Resolver.ResolveTable(r.Context(), actorID, tableID, permission.ActionView)
	if err != nil {
		h.writeError(w, "Failed to resolve permissions", err)
		return
	}
	if !decision.Allowed {
		h.writeError(w, "Access denied", errs.New(errs.Forbidden, decision.Reason))
		return
	}

	summary, err := h.Seats.TableSummary(r.Context(), tableID)
	if err != nil {
		h.writeError(w, "Failed to compute table summary", err)
		return
	}
	h.writeData(w, http.StatusOK, summary)
}

func (h *Handler) GetTableGuests(w http.ResponseWriter, r *http.Request) {
	tableID := urlParam(r, "tableID")
	roster, err := h.Guests.ListTableGuests(r.Context(), auth.UserID(r.Context()), tableID)
	if err != nil {
		h.writeError(w, "Failed to list guests", err)
		return
	}
	h.writeData(w, http.StatusOK, roster)
}

func (h *Handler) PostTableGuest(w http.ResponseWriter, r *http.Request) {
	tableID := urlParam(r, "tableID")

	var req guests.AddGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", errs.Wrap(errs.ValidationFailed, "request body is not valid JSON", err))
		return
	}

	guest, err := h.Guests.AddGuest(r.Context(), auth.UserID(r.Context()), tableID, req)
	if err != nil {
		h.writeError(w, "Failed to add guest", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Guest %s added to table %s", guest.ID, tableID))
	h.writeData(w, http.StatusCreated, guest)
}

func (h *Handler) DeleteGuest(w http.ResponseWriter, r *http.Request) {
	guestID := urlParam(r, "guestID")
	if err := h.Guests.RemoveGuest(r.Context(), auth.UserID(r.Context()), guestID); err != nil {
		h.writeError(w, "Failed to remove guest", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PatchGuest(w http.ResponseWriter, r *http.Request) {
	guestID := urlParam(r, "guestID")

	var req guests.EditGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", errs.Wrap(errs.ValidationFailed, "request body is not valid JSON", err))
		return
	}

	guest, err := h.Guests.EditGuest(r.Context(), auth.UserID(r.Context()), guestID, req)
	if err != nil {
		h.writeError(w, "Failed to edit guest", err)
		return
	}
	h.writeData(w, http.StatusOK, guest)
}

func (h *Handler) PostGuestTransfer(w http.ResponseWriter, r *http.Request) {
	guestID := urlParam(r, "guestID")

	var req guests.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", errs.Wrap(errs.ValidationFailed, "request body is not valid JSON", err))
		return
	}

	guest, err := h.Guests.TransferTicket(r.Context(), auth.UserID(r.Context()), guestID, req)
	if err != nil {
		h.writeError(w, "Failed to transfer ticket", err)
		return
	}
	h.writeData(w, http.StatusOK, guest)
}

// PostCheckIn scans a guest reference code at the door.
func (h *Handler) PostCheckIn(w http.ResponseWriter, r *http.Request) {
	code := urlParam(r, "referenceCode")
	guest, err := h.Guests.CheckIn(r.Context(), auth.UserID(r.Context()), code)
	if err != nil {
		h.writeError(w, "Check-in failed", err)
		return
	}
	h.writeData(w, http.StatusOK, guest)
}

// GetGuestQR serves the check-in QR code as a PNG.
func (h *Handler) GetGuestQR(w http.ResponseWriter, r *http.Request) {
	guestID := urlParam(r, "guestID")

	guest, err := h.DB.GetGuestAssignmentByID(r.Context(), guestID)
	if err != nil {
		h.writeError(w, "Guest not found", err)
		return
	}
	decision, err := h.Resolver.CheckEditGuest(r.Context(), auth.UserID(r.Context()), guest)
	if err != nil {
		h.writeError(w, "Failed to resolve permissions", err)
		return
	}
	if !decision.Allowed {
		h.writeError(w, "Access denied", errs.New(errs.Forbidden, decision.Reason))
		return
	}

	png, err := refcode.CheckInQR(guest.ReferenceCode)
	if err != nil {
		h.writeError(w, "Failed to render QR code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to write QR response: %v", err))
	}
}

// GetEventActivity returns the audit trail for an event, admin only.
func (h *Handler) GetEventActivity(w http.ResponseWriter, r *http.Request) {
	eventID := urlParam(r, "eventID")
	actorID := auth.UserID(r.Context())

	event, err := h.DB.GetEventByID(r.Context(), eventID)
	if err != nil {
		h.writeError(w, "Event not found", err)
		return
	}
	isAdmin, err := h.Resolver.Admins.IsAdmin(r.Context(), event.OrganizationID, actorID)
	if err != nil {
		h.writeError(w, "Failed to resolve permissions", err)
		return
	}
	if !isAdmin {
		h.writeError(w, "Access denied", errs.New(errs.Forbidden, "admin access required for the activity log"))
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	entries, err := h.DB.ListActivityByEvent(r.Context(), eventID, limit)
	if err != nil {
		h.writeError(w, "Failed to list activity", err)
		return
	}
	h.writeData(w, http.StatusOK, entries)
}
