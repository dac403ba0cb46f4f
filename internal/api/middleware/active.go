package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/api/problem"
	"go.uber.org/zap"
)

// ActiveUserChecker reports whether an account may still use its tokens.
type ActiveUserChecker interface {
	IsActive(ctx context.Context, userID uuid.UUID) (bool, error)
}

// RequireActiveUser rejects requests from blocked or deleted accounts whose
// access tokens have not expired yet. It must run after AuthMiddleware.
func RequireActiveUser(checker ActiveUserChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := uuid.Parse(UserIDFromContext(r.Context()))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-claims"), http.StatusText(http.StatusUnauthorized), "Invalid token claims")
				return
			}
			active, err := checker.IsActive(r.Context(), userID)
			if err != nil {
				zap.L().Error("active user check failed", zap.Error(err), zap.String("user_id", userID.String()))
				problem.Write(w, r, http.StatusServiceUnavailable, problem.Type("auth/unavailable"), http.StatusText(http.StatusServiceUnavailable), "unable to verify account status")
				return
			}
			if !active {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/account-disabled"), http.StatusText(http.StatusForbidden), "account is disabled")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
