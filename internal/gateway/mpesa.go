package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	timestampLayout = "20060102150405"
	tokenSafety     = 60 * time.Second
)

var (
	// ErrRejected is returned when Daraja refuses an STK push.
	ErrRejected = errors.New("mpesa rejected request")
	// ErrFractionalAmount is returned for amounts that are not whole shillings.
	ErrFractionalAmount = errors.New("mpesa amounts must be whole shillings")
)

// Mpesa initiates customer payments.
type Mpesa interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
}

type STKPushRequest struct {
	Phone            string
	AmountCents      int64
	AccountReference string
	Description      string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// MpesaOptions configures the Daraja client.
type MpesaOptions struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	TillNumber     string
	CallbackURL    string
	Timeout        time.Duration
}

// BaseURLFor maps MPESA_ENV onto the Daraja host.
func BaseURLFor(env string) string {
	if strings.EqualFold(env, "production") {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// MpesaClient talks to the Daraja STK push API. OAuth tokens are cached
// until shortly before they expire.
type MpesaClient struct {
	opts   MpesaOptions
	client *http.Client
	now    func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewMpesaClient(opts MpesaOptions) *MpesaClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &MpesaClient{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		now:    time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (c *MpesaClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.opts.ConsumerKey, c.opts.ConsumerSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request mpesa token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("mpesa token request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode mpesa token: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("mpesa token response missing access_token")
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(strings.TrimSpace(tr.ExpiresIn)); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > tokenSafety {
		ttl -= tokenSafety
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

// Password returns the STK password for timestamp.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// STKPush prompts the customer's phone to pay into the till.
func (c *MpesaClient) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	if in.AmountCents <= 0 || in.AmountCents%100 != 0 {
		return nil, ErrFractionalAmount
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	payload := map[string]any{
		"BusinessShortCode": c.opts.ShortCode,
		"Password":          Password(c.opts.ShortCode, c.opts.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerBuyGoodsOnline",
		"Amount":            in.AmountCents / 100,
		"PartyA":            in.Phone,
		"PartyB":            c.opts.TillNumber,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       c.opts.CallbackURL,
		"AccountReference":  in.AccountReference,
		"TransactionDesc":   in.Description,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode stk push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stk push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send stk push: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read stk push response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode != http.StatusOK {
		var de darajaError
		if json.Unmarshal(raw, &de) == nil && de.ErrorMessage != "" {
			return nil, fmt.Errorf("%w: %s %s", ErrRejected, de.ErrorCode, de.ErrorMessage)
		}
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var out STKPushResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode stk push response: %w", err)
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: %s", ErrRejected, out.ResponseDescription)
	}

	zap.L().Info("mpesa stk push accepted",
		zap.String("checkout_request_id", out.CheckoutRequestID),
		zap.String("merchant_request_id", out.MerchantRequestID),
	)
	return &out, nil
}

func (c *MpesaClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
