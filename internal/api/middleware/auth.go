package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/liquifund/liquidity/internal/api/problem"
)

type contextKey string

const (
	userContextKey    contextKey = "user_id"
	roleContextKey    contextKey = "user_role"
	traceContextKey   contextKey = "trace_id"
	requestContextKey contextKey = "request_info"
)

const (
	roleAdmin       = "admin"
	tokenTypeAccess = "access"
)

var (
	jwtSecret   []byte
	jwtIssuer   string
	jwtAudience string
)

// accessClaims mirrors the access token payload. Typ is empty for tokens
// minted outside the API (tests, tooling) and "access" for issued ones.
type accessClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Typ    string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// authError is a rejected credential, carried to a single 401 writer.
type authError struct {
	slug   string
	detail string
}

func (e *authError) Error() string { return e.detail }

var (
	errHeaderMissing = &authError{"auth/authorization-header-required", "Authorization header required"}
	errBadFormat     = &authError{"auth/invalid-token-format", "Invalid token format"}
	errBadToken      = &authError{"auth/invalid-token", "Invalid token"}
	errWrongType     = &authError{"auth/wrong-token-type", "Access token required"}
	errBadClaims     = &authError{"auth/invalid-token-claims", "Invalid token claims"}
)

func SetJWTSecret(secret string) {
	if secret == "" {
		return
	}
	jwtSecret = []byte(secret)
}

func SetJWTValidation(issuer, audience string) {
	jwtIssuer = strings.TrimSpace(issuer)
	jwtAudience = strings.TrimSpace(audience)
}

func JWTSecret() []byte {
	clone := make([]byte, len(jwtSecret))
	copy(clone, jwtSecret)
	return clone
}

func JWTIssuer() string {
	return jwtIssuer
}

func JWTAudience() string {
	return jwtAudience
}

// AuthMiddleware validates the bearer access token and puts the user id and
// role into the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(jwtSecret) == 0 {
			problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/misconfigured"), http.StatusText(http.StatusInternalServerError), "auth is not configured")
			return
		}

		claims, err := parseAccessToken(r.Header.Get("Authorization"))
		if err != nil {
			var ae *authError
			if !errors.As(err, &ae) {
				ae = errBadToken
			}
			problem.Write(w, r, http.StatusUnauthorized, problem.Type(ae.slug), http.StatusText(http.StatusUnauthorized), ae.detail)
			return
		}

		if info := requestInfoFromContext(r.Context()); info != nil {
			info.userID = claims.UserID
		}
		ctx := context.WithValue(r.Context(), userContextKey, claims.UserID)
		ctx = context.WithValue(ctx, roleContextKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func parseAccessToken(header string) (*accessClaims, error) {
	if header == "" {
		return nil, errHeaderMissing
	}
	scheme, raw, found := strings.Cut(header, " ")
	raw = strings.TrimSpace(raw)
	if !found || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return nil, errBadFormat
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if jwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(jwtIssuer))
	}
	if jwtAudience != "" {
		opts = append(opts, jwt.WithAudience(jwtAudience))
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return jwtSecret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errBadToken
	}

	switch {
	case claims.Typ != "" && claims.Typ != tokenTypeAccess:
		return nil, errWrongType
	case claims.UserID == "":
		return nil, errBadClaims
	case claims.Subject != "" && claims.Subject != claims.UserID:
		return nil, errBadClaims
	}
	return claims, nil
}

// RequireRole ensures the authenticated user has the required role.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UserRoleFromContext(r.Context()) != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), http.StatusText(http.StatusForbidden), "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsAdmin reports whether the authenticated caller holds the admin role.
func IsAdmin(ctx context.Context) bool {
	return UserRoleFromContext(ctx) == roleAdmin
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// UserIDFromContext returns the authenticated user ID.
func UserIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userContextKey)
}

// UserRoleFromContext returns the role of the authenticated user.
func UserRoleFromContext(ctx context.Context) string {
	return stringFromContext(ctx, roleContextKey)
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, traceContextKey)
}

// requestInfo is shared between the outer logging middleware and handlers
// deeper in the chain, which only see derived contexts.
type requestInfo struct {
	userID string
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestContextKey).(*requestInfo)
	return info
}
