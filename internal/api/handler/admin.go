package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/liquifund/liquidity/internal/service"
	"go.uber.org/zap"
)

// AdminHandler serves the back-office endpoints. Every route is mounted
// behind RequireRole("admin").
type AdminHandler struct {
	users       *service.UserService
	rentals     *service.RentalService
	referrals   *service.ReferralService
	payments    *service.PaymentService
	withdrawals *service.WithdrawalService
	kyc         *service.KycService
	support     *service.SupportService
	reconcile   *service.ReconciliationService
}

func NewAdminHandler(
	users *service.UserService,
	rentals *service.RentalService,
	referrals *service.ReferralService,
	payments *service.PaymentService,
	withdrawals *service.WithdrawalService,
	kyc *service.KycService,
	support *service.SupportService,
	reconcile *service.ReconciliationService,
) *AdminHandler {
	return &AdminHandler{
		users:       users,
		rentals:     rentals,
		referrals:   referrals,
		payments:    payments,
		withdrawals: withdrawals,
		kyc:         kyc,
		support:     support,
		reconcile:   reconcile,
	}
}

// ListUsers handles GET /v1/admin/users?search=.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.users.ListUsers(r.Context(), r.URL.Query().Get("search"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list users")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

// BlockUser handles POST /v1/admin/users/{id}/block.
func (h *AdminHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// UnblockUser handles POST /v1/admin/users/{id}/unblock.
func (h *AdminHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "id", "user")
	if !ok {
		return
	}
	if err := h.users.SetActive(r.Context(), actorID, userID, active); err != nil {
		writeServiceError(w, r, err, "set user active")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"is_active": active,
	})
}

type awardRequest struct {
	Amount Shillings `json:"amount"`
	Note   string    `json:"note"`
}

// AwardUser handles POST /v1/admin/users/{id}/award. The amount is credited
// to the available balance and the user's KYC is marked verified.
func (h *AdminHandler) AwardUser(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "id", "user")
	if !ok {
		return
	}
	var req awardRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if !req.Amount.Set {
		RespondError(w, r, http.StatusBadRequest, "request/missing-amount", "amount is required")
		return
	}

	wallet, err := h.users.Award(r.Context(), actorID, userID, req.Amount.Cents, req.Note)
	if err != nil {
		writeServiceError(w, r, err, "award user")
		return
	}
	RespondJSON(w, http.StatusOK, wallet)
}

// ActiveRentals handles GET /v1/admin/rentals/active.
func (h *AdminHandler) ActiveRentals(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	out, err := h.rentals.ActiveRentals(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list active rentals")
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// CompleteRental handles POST /v1/admin/rentals/{id}/complete.
func (h *AdminHandler) CompleteRental(w http.ResponseWriter, r *http.Request) {
	h.rentalAction(w, r, "complete rental", h.rentals.ForceComplete)
}

// FailRental handles POST /v1/admin/rentals/{id}/fail. The principal is
// refunded without yield.
func (h *AdminHandler) FailRental(w http.ResponseWriter, r *http.Request) {
	h.rentalAction(w, r, "fail rental", h.rentals.Fail)
}

func (h *AdminHandler) rentalAction(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, rentalID uuid.UUID) (*models.RentalView, error)) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	rentalID, ok := pathUUID(w, r, "id", "rental")
	if !ok {
		return
	}
	rental, err := fn(r.Context(), actorID, rentalID)
	if err != nil {
		writeServiceError(w, r, err, op)
		return
	}
	RespondJSON(w, http.StatusOK, rental)
}

// Referrals handles GET /v1/admin/referrals.
func (h *AdminHandler) Referrals(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	out, err := h.referrals.AdminOverview(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "referral overview")
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// Payments handles GET /v1/admin/payments?user_id=.
func (h *AdminHandler) Payments(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	var userID *uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user_id")
			return
		}
		userID = &id
	}
	out, err := h.payments.AdminOverview(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "payment overview")
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// Withdrawals handles GET /v1/admin/withdrawals?status=.
func (h *AdminHandler) Withdrawals(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.withdrawals.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list withdrawals")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.withdrawalAction(w, r, "approve withdrawal", h.withdrawals.Approve)
}

func (h *AdminHandler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.withdrawalAction(w, r, "process withdrawal", h.withdrawals.Process)
}

func (h *AdminHandler) MarkWithdrawalPaid(w http.ResponseWriter, r *http.Request) {
	h.withdrawalAction(w, r, "mark withdrawal paid", h.withdrawals.MarkPaid)
}

// RejectWithdrawal refunds the held amount to the user's available balance.
func (h *AdminHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.withdrawalAction(w, r, "reject withdrawal", h.withdrawals.Reject)
}

func (h *AdminHandler) withdrawalAction(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, id uuid.UUID) (*repository.Withdrawal, error)) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id", "withdrawal")
	if !ok {
		return
	}
	withdrawal, err := fn(r.Context(), actorID, id)
	if err != nil {
		writeServiceError(w, r, err, op)
		return
	}
	RespondJSON(w, http.StatusOK, withdrawal)
}

// ListKyc handles GET /v1/admin/kyc?status=verified|unverified.
func (h *AdminHandler) ListKyc(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	page, err := h.kyc.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list kyc")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

// VerifyKyc handles POST /v1/admin/kyc/{id}/verify.
func (h *AdminHandler) VerifyKyc(w http.ResponseWriter, r *http.Request) {
	actorID, _, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}
	kycID, ok := pathUUID(w, r, "id", "kyc")
	if !ok {
		return
	}
	profile, err := h.kyc.Verify(r.Context(), actorID, kycID)
	if err != nil {
		writeServiceError(w, r, err, "verify kyc")
		return
	}
	RespondJSON(w, http.StatusOK, profile)
}

// SupportMessages handles GET /v1/admin/support/messages?unread=true.
func (h *AdminHandler) SupportMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageParams(w, r)
	if !ok {
		return
	}
	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-unread", "unread must be a boolean")
			return
		}
		unreadOnly = parsed
	}
	page, err := h.support.List(r.Context(), unreadOnly, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "list support messages")
		return
	}
	RespondJSON(w, http.StatusOK, page)
}

// UpdateSupportMessage handles PATCH /v1/admin/support/messages/{id}.
func (h *AdminHandler) UpdateSupportMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "message")
	if !ok {
		return
	}
	var req service.UpdateSupportMessageRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	msg, err := h.support.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err, "update support message")
		return
	}
	RespondJSON(w, http.StatusOK, msg)
}

// Reconcile handles POST /v1/admin/reconcile. Drift is reported, never
// repaired.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcile.Run(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "reconcile")
		return
	}
	if !report.Balanced {
		zap.L().Warn("reconciliation found drift", zap.Int("wallets", len(report.Drifts)))
	}
	RespondJSON(w, http.StatusOK, report)
}
