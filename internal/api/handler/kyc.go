package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

type KycHandler struct {
	kyc *service.KycService
}

func NewKycHandler(kyc *service.KycService) *KycHandler {
	return &KycHandler{kyc: kyc}
}

// Get handles GET /v1/kyc.
func (h *KycHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	profile, err := h.kyc.Get(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "get kyc")
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}

type updateKycRequest struct {
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
	NationalID  *string `json:"national_id"`
	DateOfBirth *string `json:"date_of_birth"`
	Address     *string `json:"address"`
}

// Update handles PUT /v1/kyc. Changing identity fields clears verification.
func (h *KycHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req updateKycRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	profile, err := h.kyc.Update(r.Context(), actorID, service.UpdateKycRequest{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		NationalID:  req.NationalID,
		DateOfBirth: req.DateOfBirth,
		Address:     req.Address,
	})
	if err != nil {
		writeServiceError(w, r, err, "update kyc")
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}
