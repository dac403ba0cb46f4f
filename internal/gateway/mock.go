package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockMpesa stands in for Daraja when MPESA_ENV=mock. It accepts every
// request and returns synthetic checkout ids; completion arrives only when
// something posts a callback for that id.
type MockMpesa struct {
	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls []STKPushRequest
}

func NewMockMpesa() *MockMpesa {
	return &MockMpesa{}
}

func (m *MockMpesa) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("mpesa call canceled: %w", err)
	}
	if req.AmountCents <= 0 || req.AmountCents%100 != 0 {
		return nil, ErrFractionalAmount
	}

	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	// Format: ws_CO_DDMMYYYYHHMMSS_XXXXXXXX, matching Daraja's shape
	stamp := time.Now().Format("02012006150405")
	return &STKPushResponse{
		MerchantRequestID:   fmt.Sprintf("MOCK-%05d", rand.Intn(100000)),
		CheckoutRequestID:   fmt.Sprintf("ws_CO_%s_%08d", stamp, rand.Intn(100000000)),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

// Calls returns the requests received so far.
func (m *MockMpesa) Calls() []STKPushRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]STKPushRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
