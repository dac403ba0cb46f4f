package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

type ReferralHandler struct {
	referrals *service.ReferralService
}

func NewReferralHandler(referrals *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// Overview handles GET /v1/referrals.
func (h *ReferralHandler) Overview(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	overview, err := h.referrals.Overview(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "referral overview")
		return
	}
	RespondJSON(w, http.StatusOK, overview)
}

// Code handles GET /v1/referrals/code.
func (h *ReferralHandler) Code(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	code, err := h.referrals.Code(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "referral code")
		return
	}
	RespondJSON(w, http.StatusOK, code)
}
