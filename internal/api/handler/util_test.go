package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problemBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestShillingsUnmarshal(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		set   bool
		err   bool
	}{
		{in: `1500`, cents: 150000, set: true},
		{in: `"99.50"`, cents: 9950, set: true},
		{in: `null`},
		{in: `""`},
		{in: `"abc"`, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			var s Shillings
			err := json.Unmarshal([]byte(tc.in), &s)
			if tc.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Shillings{Cents: tc.cents, Set: tc.set}, s)
		})
	}
}

func TestPageParams(t *testing.T) {
	cases := []struct {
		query  string
		ok     bool
		limit  int32
		offset int32
	}{
		{query: "", ok: true},
		{query: "limit=10&offset=20", ok: true, limit: 10, offset: 20},
		{query: "limit=0"},
		{query: "limit=99999999999"},
		{query: "offset=-1"},
		{query: "offset=x"},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			limit, offset, ok := pageParams(w, httptest.NewRequest(http.MethodGet, "/v1/payments?"+tc.query, nil))
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.limit, limit)
				assert.Equal(t, tc.offset, offset)
			} else {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.False(t, decodeJSON(w, r, &dst, false))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.True(t, decodeJSON(w, r, &dst, true))

	w = httptest.NewRecorder()
	big := `{"name":"` + strings.Repeat("a", 2<<20) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	assert.False(t, decodeJSON(w, r, &dst, false))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestWriteServiceError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{name: "insufficient funds", err: fmt.Errorf("rent: %w", models.ErrInsufficientFunds), status: http.StatusUnprocessableEntity, typ: "wallet/insufficient-funds"},
		{name: "not found", err: service.ErrRentalNotFound, status: http.StatusNotFound, typ: "rental/not-found"},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, status: http.StatusConflict},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, typ: "internal-server-error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, httptest.NewRequest(http.MethodPost, "/v1/rentals", nil), tc.err, "test")
			assert.Equal(t, tc.status, w.Code)
			if tc.typ != "" {
				assert.Equal(t, "https://errors.liquidity.app/"+tc.typ, problemBody(t, w)["type"])
			}
		})
	}
}

func TestWriteServiceErrorValidationNamesField(t *testing.T) {
	w := httptest.NewRecorder()
	writeServiceError(w, httptest.NewRequest(http.MethodPost, "/v1/withdrawals", nil), &service.ValidationError{Field: "mobile_number", Message: "required"}, "test")

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := problemBody(t, w)
	assert.Equal(t, "mobile_number", body["field"])
	assert.Equal(t, "required", body["detail"])
}

func TestReadyReportsFirstFailingDependency(t *testing.T) {
	h := &HealthHandler{deps: []dependency{
		{name: "database", check: func(context.Context) error { return nil }},
		{name: "redis", check: func(context.Context) error { return errors.New("refused") }},
	}}
	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "https://errors.liquidity.app/health/redis-unavailable", problemBody(t, w)["type"])

	h.deps = h.deps[:1]
	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	checks := problemBody(t, w)["checks"].(map[string]any)
	assert.Contains(t, checks, "database")
	assert.NotContains(t, checks, "redis")
}
