package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/liquifund/liquidity/internal/service"
	"go.uber.org/zap"
)

// PaymentHandler serves rental payments and the M-Pesa result callback.
type PaymentHandler struct {
	payments *service.PaymentService
}

func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type initiatePaymentRequest struct {
	Currency    string    `json:"currency"`
	Amount      Shillings `json:"amount"`
	PhoneNumber string    `json:"phone_number"`
}

// Initiate handles POST /v1/payments/mpesa. With a phone number an STK push
// is sent and 202 is returned; without one the rental is paid from the
// wallet and 201 is returned.
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	var req initiatePaymentRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Currency == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-currency", "currency is required")
		return
	}

	result, err := h.payments.Initiate(r.Context(), service.InitiatePaymentRequest{
		UserID:   actorID,
		Currency: req.Currency,
		Amount:   req.Amount.Cents,
		Phone:    req.PhoneNumber,
	})
	if err != nil {
		writeServiceError(w, r, err, "initiate payment")
		return
	}

	status := http.StatusCreated
	if result.Pending() {
		status = http.StatusAccepted
	}
	RespondJSON(w, status, result)
}

// History handles GET /v1/payments.
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.payments.History(r.Context(), actorID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list payments")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

// Earnings handles GET /v1/payments/earnings.
func (h *PaymentHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	earnings, err := h.payments.Earnings(r.Context(), actorID)
	if err != nil {
		writeServiceError(w, r, err, "payment earnings")
		return
	}
	RespondJSON(w, http.StatusOK, earnings)
}

type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// Callback handles POST /v1/payments/mpesa/callback. Daraja authenticates
// with the token query parameter set on the registered callback URL. Any
// settled outcome, including replays and unknown checkouts, is acknowledged
// so Daraja stops retrying; storage failures return 500 so it retries.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Callback-Token")
	}
	if err := h.payments.VerifyCallbackToken(token); err != nil {
		zap.L().Warn("mpesa callback rejected", zap.String("remote_addr", r.RemoteAddr))
		RespondError(w, r, http.StatusForbidden, "payment/callback-rejected", "invalid callback token")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}
	var envelope service.CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Body.StkCallback.CheckoutRequestID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid callback payload")
		return
	}

	outcome, err := h.payments.HandleCallback(r.Context(), envelope.Body.StkCallback)
	if err != nil {
		zap.L().Error("process mpesa callback failed",
			zap.Error(err),
			zap.String("checkout_request_id", envelope.Body.StkCallback.CheckoutRequestID))
		RespondError(w, r, http.StatusInternalServerError, "payment/callback-failed", "failed to process callback")
		return
	}

	zap.L().Info("mpesa callback processed",
		zap.String("checkout_request_id", envelope.Body.StkCallback.CheckoutRequestID),
		zap.String("outcome", outcome))
	RespondJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}
