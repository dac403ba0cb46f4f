package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

// RentalHandler serves card rentals for the caller.
type RentalHandler struct {
	rentals *service.RentalService
}

func NewRentalHandler(rentals *service.RentalService) *RentalHandler {
	return &RentalHandler{rentals: rentals}
}

type createRentalRequest struct {
	Currency     string    `json:"currency"`
	Amount       Shillings `json:"amount"`
	DurationDays int32     `json:"duration_days"`
}

// Create handles POST /v1/rentals. The principal is taken from the
// available balance.
func (h *RentalHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req createRentalRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Currency == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-currency", "currency is required")
		return
	}

	rental, err := h.rentals.Create(r.Context(), service.CreateRentalRequest{
		UserID:       actorID,
		Currency:     req.Currency,
		Amount:       req.Amount.Cents,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		writeServiceError(w, r, err, "create rental")
		return
	}
	RespondJSON(w, http.StatusCreated, rental)
}

// List handles GET /v1/rentals.
func (h *RentalHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	rentals, err := h.rentals.List(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "list rentals")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items": rentals,
		"count": len(rentals),
	})
}

// Get handles GET /v1/rentals/{id}.
func (h *RentalHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, isAdmin, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	rentalID, ok := pathUUID(w, r, "id", "rental")
	if !ok {
		return
	}
	rental, err := h.rentals.Get(r.Context(), actorID, isAdmin, rentalID)
	if err != nil {
		writeServiceError(w, r, err, "get rental")
		return
	}
	RespondJSON(w, http.StatusOK, rental)
}

// PendingReturns handles GET /v1/rentals/pending-returns.
func (h *RentalHandler) PendingReturns(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	pending, err := h.rentals.PendingReturns(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "pending returns")
		return
	}
	RespondJSON(w, http.StatusOK, pending)
}
