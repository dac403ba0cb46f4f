package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDarajaServer(t *testing.T, tokenCalls *int32, stkStatus int, stkBody any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "CustomerBuyGoodsOnline", payload["TransactionType"])
		assert.Equal(t, "174379", payload["BusinessShortCode"])
		assert.Equal(t, "600000", payload["PartyB"])
		assert.Equal(t, float64(1200), payload["Amount"])
		assert.Equal(t, Password("174379", "pass", payload["Timestamp"].(string)), payload["Password"])

		w.WriteHeader(stkStatus)
		_ = json.NewEncoder(w).Encode(stkBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *MpesaClient {
	return NewMpesaClient(MpesaOptions{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "pass",
		TillNumber:     "600000",
		CallbackURL:    "https://example.com/cb",
		Timeout:        2 * time.Second,
	})
}

func TestMpesaClient_STKPush(t *testing.T) {
	var tokenCalls int32
	srv := newDarajaServer(t, &tokenCalls, http.StatusOK, STKPushResponse{
		MerchantRequestID: "m-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
	})
	client := newTestClient(srv.URL)

	req := STKPushRequest{Phone: "254712345678", AmountCents: 120_000, AccountReference: "USD"}
	resp, err := client.STKPush(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)

	_, err = client.STKPush(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls), "token should be cached")
}

func TestMpesaClient_Rejected(t *testing.T) {
	var tokenCalls int32
	srv := newDarajaServer(t, &tokenCalls, http.StatusBadRequest, map[string]string{
		"errorCode":    "400.002.02",
		"errorMessage": "Bad Request - Invalid PhoneNumber",
	})
	client := newTestClient(srv.URL)

	_, err := client.STKPush(context.Background(), STKPushRequest{Phone: "254712345678", AmountCents: 120_000})
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid PhoneNumber")
}

func TestMpesaClient_FractionalAmount(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	_, err := client.STKPush(context.Background(), STKPushRequest{Phone: "254712345678", AmountCents: 150})
	require.ErrorIs(t, err, ErrFractionalAmount)
}

func TestBaseURLFor(t *testing.T) {
	assert.Equal(t, ProductionBaseURL, BaseURLFor("production"))
	assert.Equal(t, SandboxBaseURL, BaseURLFor("sandbox"))
	assert.Equal(t, SandboxBaseURL, BaseURLFor(""))
}

func TestMockMpesa(t *testing.T) {
	m := NewMockMpesa()
	resp, err := m.STKPush(context.Background(), STKPushRequest{Phone: "254712345678", AmountCents: 10_000})
	require.NoError(t, err)
	assert.Equal(t, "0", resp.ResponseCode)
	assert.NotEmpty(t, resp.CheckoutRequestID)
	assert.Len(t, m.Calls(), 1)
}
