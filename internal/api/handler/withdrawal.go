package handler

import (
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
)

// WithdrawalHandler serves withdrawal requests for the caller.
type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

type requestWithdrawalRequest struct {
	Amount       Shillings `json:"amount"`
	MobileNumber string    `json:"mobile_number"`
}

// Request handles POST /v1/withdrawals. The amount is held immediately and
// the request waits for an admin.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req requestWithdrawalRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if !req.Amount.Set {
		RespondError(w, r, http.StatusBadRequest, "request/missing-amount", "amount is required")
		return
	}

	withdrawal, err := h.withdrawals.Request(r.Context(), service.RequestWithdrawalRequest{
		UserID:       actorID,
		Amount:       req.Amount.Cents,
		MobileNumber: req.MobileNumber,
	})
	if err != nil {
		writeServiceError(w, r, err, "request withdrawal")
		return
	}
	RespondJSON(w, http.StatusCreated, withdrawal)
}

// History handles GET /v1/withdrawals.
func (h *WithdrawalHandler) History(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	items, err := h.withdrawals.History(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "withdrawal history")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}
