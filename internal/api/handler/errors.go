package handler

import (
	"errors"
	"net/http"

	"github.com/liquifund/liquidity/internal/api/problem"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/service"
	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
	slug   string
}

// serviceErrors maps domain sentinels to problem responses. Order matters
// only where sentinels wrap each other.
var serviceErrors = []errorMapping{
	{models.ErrInsufficientFunds, http.StatusUnprocessableEntity, "wallet/insufficient-funds"},
	{service.ErrWalletNotFound, http.StatusNotFound, "wallet/not-found"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "request/invalid-amount"},
	{domain.ErrInvalidPhone, http.StatusBadRequest, "request/invalid-phone"},

	{service.ErrUserNotFound, http.StatusNotFound, "user/not-found"},
	{service.ErrEmailTaken, http.StatusConflict, "user/email-taken"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "auth/invalid-credentials"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "auth/invalid-token"},
	{service.ErrUserBlocked, http.StatusForbidden, "auth/account-disabled"},
	{service.ErrCannotBlockAdmin, http.StatusForbidden, "user/admin-protected"},
	{service.ErrAccountHasObligations, http.StatusConflict, "user/has-obligations"},

	{service.ErrRentalNotFound, http.StatusNotFound, "rental/not-found"},
	{service.ErrRentalNotActive, http.StatusConflict, "rental/not-active"},
	{service.ErrUnknownCurrency, http.StatusBadRequest, "rental/unknown-currency"},

	{service.ErrPaymentNotFound, http.StatusNotFound, "payment/not-found"},
	{service.ErrGatewayRejected, http.StatusBadGateway, "payment/gateway-rejected"},
	{service.ErrCallbackRejected, http.StatusForbidden, "payment/callback-rejected"},

	{service.ErrWithdrawalNotFound, http.StatusNotFound, "withdrawal/not-found"},
	{service.ErrWithdrawalPending, http.StatusConflict, "withdrawal/already-pending"},
	{service.ErrWithdrawalBelowMin, http.StatusBadRequest, "withdrawal/below-minimum"},
	{service.ErrInvalidTransition, http.StatusConflict, "withdrawal/invalid-transition"},

	{service.ErrKycNotFound, http.StatusNotFound, "kyc/not-found"},
	{service.ErrSupportMessageAbsent, http.StatusNotFound, "support/not-found"},
}

// writeServiceError turns a service error into a problem response. Unmapped
// errors are logged and reported as 500 with a generic detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		problem.WriteField(w, r, http.StatusBadRequest, problem.Type("request/validation"), verr.Field, verr.Message)
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			RespondError(w, r, m.status, m.slug, err.Error())
			return
		}
	}
	if status, slug, msg, ok := mapDBError(err); ok {
		RespondError(w, r, status, slug, msg)
		return
	}
	zap.L().Error(op+" failed", zap.Error(err), zap.String("path", r.URL.Path))
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
}
