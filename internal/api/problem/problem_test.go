package problem

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType(t *testing.T) {
	assert.Equal(t, "https://errors.liquidity.app/wallet/not-found", Type("wallet/not-found"))
	assert.Equal(t, "about:blank", Type(""))
	assert.Equal(t, "https://example.com/x", Type("https://example.com/x"))
}

func TestWrite(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
	req.Header.Set("X-Trace-ID", "trace-1")
	rec := httptest.NewRecorder()

	Write(rec, req, http.StatusNotFound, Type("wallet/not-found"), "", "no wallet")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var d Details
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, "Not Found", d.Title)
	assert.Equal(t, "/v1/wallet", d.Instance)
	assert.Equal(t, "trace-1", d.RequestID)
	assert.Empty(t, d.Field)
}

func TestWriteFieldFallsBackToResponseTrace(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Trace-ID", "trace-2")

	WriteField(rec, nil, http.StatusBadRequest, Type("request/validation"), "amount", "must be positive")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "amount", raw["field"])
	assert.Equal(t, "trace-2", raw["request_id"])
	assert.Equal(t, "Bad Request", raw["title"])
}
