package middleware

import (
	"context"
	"net/http"

	"github.com/liquifund/liquidity/internal/api/problem"
)

// MaintenanceChecker reports whether the platform is in maintenance mode.
type MaintenanceChecker interface {
	MaintenanceEnabled(ctx context.Context) bool
}

// MaintenanceMiddleware answers 503 to non-admin callers while maintenance
// mode is on. It must run after AuthMiddleware.
func MaintenanceMiddleware(checker MaintenanceChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil || IsAdmin(r.Context()) || !checker.MaintenanceEnabled(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "300")
			problem.Write(w, r, http.StatusServiceUnavailable, problem.Type("maintenance"), "Under maintenance",
				"The platform is under maintenance. Please try again later.")
		})
	}
}
