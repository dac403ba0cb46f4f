package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testSecret   = "middleware-test-secret-0123456789"
	testIssuer   = "liquidity-test"
	testAudience = "liquidity-api-test"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	now := time.Now()
	base := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"iat": now.Unix(),
		"nbf": now.Add(-30 * time.Second).Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, base).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func withJWTConfig(t *testing.T) {
	t.Helper()
	prevSecret, prevIssuer, prevAudience := jwtSecret, jwtIssuer, jwtAudience
	SetJWTSecret(testSecret)
	SetJWTValidation(testIssuer, testAudience)
	t.Cleanup(func() {
		jwtSecret, jwtIssuer, jwtAudience = prevSecret, prevIssuer, prevAudience
	})
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(UserIDFromContext(r.Context()) + "|" + UserRoleFromContext(r.Context())))
}

func TestAuthMiddleware(t *testing.T) {
	withJWTConfig(t)
	userID := uuid.NewString()

	cases := []struct {
		name   string
		header string
		want   int
		slug   string
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized, slug: "auth/authorization-header-required"},
		{name: "wrong scheme", header: "Basic abc", want: http.StatusUnauthorized, slug: "auth/invalid-token-format"},
		{name: "garbage token", header: "Bearer not.a.jwt", want: http.StatusUnauthorized, slug: "auth/invalid-token"},
		{
			name:   "refresh token",
			header: "Bearer " + signToken(t, jwt.MapClaims{"user_id": userID, "sub": userID, "role": "user", "typ": "refresh"}),
			want:   http.StatusUnauthorized,
			slug:   "auth/wrong-token-type",
		},
		{
			name:   "wrong audience",
			header: "Bearer " + signToken(t, jwt.MapClaims{"user_id": userID, "aud": "someone-else"}),
			want:   http.StatusUnauthorized,
			slug:   "auth/invalid-token",
		},
		{
			name:   "subject mismatch",
			header: "Bearer " + signToken(t, jwt.MapClaims{"user_id": userID, "sub": uuid.NewString()}),
			want:   http.StatusUnauthorized,
			slug:   "auth/invalid-token-claims",
		},
		{
			name:   "lowercase bearer access token",
			header: "bearer " + signToken(t, jwt.MapClaims{"user_id": userID, "sub": userID, "role": "user", "typ": "access"}),
			want:   http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/profile", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			AuthMiddleware(http.HandlerFunc(okHandler)).ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			if tc.slug != "" {
				assert.Contains(t, w.Body.String(), tc.slug)
			} else {
				assert.Equal(t, userID+"|user", w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	withJWTConfig(t)
	h := AuthMiddleware(RequireRole("admin")(http.HandlerFunc(okHandler)))
	userID := uuid.NewString()

	for role, want := range map[string]int{"admin": http.StatusOK, "user": http.StatusForbidden, "": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"user_id": userID, "role": role}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "role %q", role)
	}
}

type fakeMaintenance bool

func (f fakeMaintenance) MaintenanceEnabled(context.Context) bool { return bool(f) }

func TestMaintenanceMiddleware(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		role    string
		want    int
	}{
		{name: "off", enabled: false, role: "user", want: http.StatusOK},
		{name: "on for users", enabled: true, role: "user", want: http.StatusServiceUnavailable},
		{name: "on for admins", enabled: true, role: "admin", want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
			ctx := context.WithValue(req.Context(), roleContextKey, tc.role)
			w := httptest.NewRecorder()
			MaintenanceMiddleware(fakeMaintenance(tc.enabled))(http.HandlerFunc(okHandler)).ServeHTTP(w, req.WithContext(ctx))

			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusServiceUnavailable {
				assert.Equal(t, "300", w.Header().Get("Retry-After"))
			}
		})
	}
}

type fakeActive struct {
	active bool
	err    error
}

func (f fakeActive) IsActive(context.Context, uuid.UUID) (bool, error) { return f.active, f.err }

func TestRequireActiveUser(t *testing.T) {
	userID := uuid.NewString()
	cases := []struct {
		name    string
		checker fakeActive
		userID  string
		want    int
	}{
		{name: "active", checker: fakeActive{active: true}, userID: userID, want: http.StatusOK},
		{name: "blocked", checker: fakeActive{active: false}, userID: userID, want: http.StatusForbidden},
		{name: "lookup failure", checker: fakeActive{err: errors.New("db down")}, userID: userID, want: http.StatusServiceUnavailable},
		{name: "malformed id", checker: fakeActive{active: true}, userID: "nope", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
			ctx := context.WithValue(req.Context(), userContextKey, tc.userID)
			w := httptest.NewRecorder()
			RequireActiveUser(tc.checker)(http.HandlerFunc(okHandler)).ServeHTTP(w, req.WithContext(ctx))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	var seen string
	h := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get("X-Trace-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", strings.Repeat("x", maxTraceIDLength+1))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace-ID", "bad id\nwith newline")
	req.Header.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Traceparent", "00-00000000000000000000000000000000-00f067aa0ba902b7-01")
	h.ServeHTTP(httptest.NewRecorder(), req)
	_, err = uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	abort := RecoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestHashRequestDependsOnPathAndBody(t *testing.T) {
	a := hashRequest(http.MethodPost, "/v1/rentals", []byte(`{"currency":"USD"}`))
	assert.Equal(t, a, hashRequest(http.MethodPost, "/v1/rentals", []byte(`{"currency":"USD"}`)))
	assert.NotEqual(t, a, hashRequest(http.MethodPost, "/v1/rentals", []byte(`{"currency":"EUR"}`)))
	assert.NotEqual(t, a, hashRequest(http.MethodPost, "/v1/withdrawals", []byte(`{"currency":"USD"}`)))
}

func TestLoggingMiddlewareRecordsAuthenticatedUser(t *testing.T) {
	withJWTConfig(t)
	core, logs := observer.New(zapcore.InfoLevel)
	userID := uuid.NewString()

	h := TraceMiddleware(LoggingMiddleware(zap.New(core))(AuthMiddleware(http.HandlerFunc(okHandler))))
	req := httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"user_id": userID, "role": "user"}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, userID, first["user_id"])
	assert.NotEmpty(t, first["trace_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "", entries[1].ContextMap()["user_id"])
}
