package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

// ProfileHandler serves the caller's own account and wallet.
type ProfileHandler struct {
	users *service.UserService
}

func NewProfileHandler(users *service.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Get handles GET /v1/profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "get profile")
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}

type updateProfileRequest struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
}

// Update handles PATCH /v1/profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	profile, err := h.users.UpdateProfile(r.Context(), actorID, service.UpdateProfileRequest{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeServiceError(w, r, err, "update profile")
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}

// Delete handles DELETE /v1/profile. Accounts that still hold money are
// refused.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	if err := h.users.DeleteAccount(r.Context(), actorID); err != nil {
		writeServiceError(w, r, err, "delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Wallet handles GET /v1/wallet.
func (h *ProfileHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	summary, err := h.users.Wallet(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "get wallet")
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}

// WalletEntries handles GET /v1/wallet/entries.
func (h *ProfileHandler) WalletEntries(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.users.WalletEntries(r.Context(), actorID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list wallet entries")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}
