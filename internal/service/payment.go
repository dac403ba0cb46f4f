package service

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/gateway"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/observability"
	"github.com/liquifund/liquidity/internal/repository"
	"go.uber.org/zap"
)

// Callback outcomes, also used as metric labels.
const (
	CallbackUnknown   = "unknown"
	CallbackDuplicate = "duplicate"
	CallbackFailed    = "failed"
	CallbackCompleted = "completed"

	// CallbackLateSuccess is a successful charge reported for a payment that
	// already failed or expired. The customer paid but holds no rental.
	CallbackLateSuccess = "late_success"
)

type PaymentConfig struct {
	CallbackToken string
	Expiry        time.Duration
}

// PaymentService takes money in through M-Pesa or the wallet.
type PaymentService struct {
	store   QueryStore
	ledger  *Ledger
	rentals *RentalService
	mpesa   gateway.Mpesa
	audit   *AuditService
	cfg     PaymentConfig
	now     func() time.Time
}

func NewPaymentService(store QueryStore, ledger *Ledger, rentals *RentalService, mpesa gateway.Mpesa, cfg PaymentConfig) *PaymentService {
	return &PaymentService{
		store:   store,
		ledger:  ledger,
		rentals: rentals,
		mpesa:   mpesa,
		audit:   NewAuditService(),
		cfg:     cfg,
		now:     time.Now,
	}
}

type InitiatePaymentRequest struct {
	UserID   uuid.UUID
	Currency string
	Amount   int64
	Phone    string
}

type InitiatePaymentResult struct {
	Payment         repository.Payment    `json:"payment"`
	Rental          *models.RentalView    `json:"rental,omitempty"`
	Wallet          *models.WalletSummary `json:"wallet,omitempty"`
	CustomerMessage string                `json:"customer_message,omitempty"`
}

// Pending reports whether the payment still awaits an M-Pesa callback.
func (r *InitiatePaymentResult) Pending() bool {
	return r.Payment.Status == domain.PaymentStatusPending
}

// Initiate starts an STK push for the card price when a phone number is
// given, otherwise it pays for the rental from the wallet immediately.
func (s *PaymentService) Initiate(ctx context.Context, req InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	if strings.TrimSpace(req.Phone) == "" {
		currency, amount, err := resolveRentalAmount(req.Currency, req.Amount)
		if err != nil {
			return nil, err
		}
		return s.payFromWallet(ctx, req.UserID, currency, amount)
	}

	currency := domain.NormalizeCurrency(req.Currency)
	if !domain.IsRentalCurrency(currency) {
		return nil, ErrUnknownCurrency
	}
	amount, ok := domain.CardPrice(currency)
	if !ok {
		return nil, invalid("currency", "%s has no card price and cannot be paid by M-Pesa", currency)
	}
	if req.Amount != 0 && req.Amount != amount {
		return nil, invalid("amount", "must equal the %s card price of %s", currency, domain.NewMoney(amount))
	}

	phone, err := domain.NormalizePhone(req.Phone)
	if err != nil {
		return nil, invalid("phone", "%v", err)
	}

	resp, err := s.mpesa.STKPush(ctx, gateway.STKPushRequest{
		Phone:            phone,
		AmountCents:      amount,
		AccountReference: currency,
		Description:      "Rental via " + currency,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, err)
		}
		return nil, fmt.Errorf("stk push: %w", err)
	}

	checkoutID := resp.CheckoutRequestID
	merchantID := resp.MerchantRequestID
	payment, err := s.store.Queries().InsertPayment(ctx, repository.InsertPaymentParams{
		ID:                uuid.New(),
		UserID:            req.UserID,
		Method:            domain.PaymentMethodMpesa,
		Currency:          currency,
		Amount:            amount,
		PhoneNumber:       phone,
		Status:            domain.PaymentStatusPending,
		CheckoutRequestID: &checkoutID,
		MerchantRequestID: &merchantID,
	})
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	zap.L().Info("mpesa payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("checkout_request_id", checkoutID),
		zap.Int64("amount_cents", amount),
	)
	return &InitiatePaymentResult{Payment: payment, CustomerMessage: resp.CustomerMessage}, nil
}

func (s *PaymentService) payFromWallet(ctx context.Context, userID uuid.UUID, currency string, amount int64) (*InitiatePaymentResult, error) {
	var result InitiatePaymentResult
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		paymentID := uuid.New()
		rental, err := s.rentals.open(ctx, qtx, userID, currency, amount, 0, &paymentID)
		if err != nil {
			return err
		}
		payment, err := qtx.InsertPayment(ctx, repository.InsertPaymentParams{
			ID:       paymentID,
			UserID:   userID,
			Method:   domain.PaymentMethodWallet,
			Currency: currency,
			Amount:   amount,
			Status:   domain.PaymentStatusCompleted,
			RentalID: &rental.ID,
		})
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		wallet, err := qtx.GetWallet(ctx, userID)
		if err != nil {
			return fmt.Errorf("reload wallet: %w", err)
		}

		view := s.rentals.view(rental)
		summary := walletSummary(wallet)
		result = InitiatePaymentResult{Payment: payment, Rental: &view, Wallet: &summary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CallbackEnvelope is the body Daraja posts to the callback URL.
type CallbackEnvelope struct {
	Body struct {
		StkCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int32             `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Value returns the named metadata item as text. Numbers keep their exact
// digits so phone numbers are not rendered in exponent form.
func (cb STKCallback) Value(name string) string {
	if cb.CallbackMetadata == nil {
		return ""
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != name || len(item.Value) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(item.Value, &s) == nil {
			return s
		}
		return strings.TrimSpace(string(item.Value))
	}
	return ""
}

// VerifyCallbackToken compares the token carried on the callback URL with
// the configured secret. An empty secret disables the check.
func (s *PaymentService) VerifyCallbackToken(token string) error {
	if s.cfg.CallbackToken == "" {
		return nil
	}
	if !hmac.Equal([]byte(token), []byte(s.cfg.CallbackToken)) {
		return ErrCallbackRejected
	}
	return nil
}

// HandleCallback settles a pending M-Pesa payment. A successful payment is
// deposited and locked into a new rental in the same transaction. Replays of
// an already settled payment change nothing.
func (s *PaymentService) HandleCallback(ctx context.Context, cb STKCallback) (string, error) {
	outcome := CallbackUnknown
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		payment, err := qtx.GetPaymentByCheckoutIDForUpdate(ctx, cb.CheckoutRequestID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				outcome = CallbackUnknown
				return nil
			}
			return fmt.Errorf("load payment: %w", err)
		}
		if paymentTransitions.isTerminal(payment.Status) {
			outcome = CallbackDuplicate
			if cb.ResultCode == 0 && payment.Status != domain.PaymentStatusCompleted {
				outcome = CallbackLateSuccess
			}
			return nil
		}

		if cb.ResultCode != 0 {
			rows, err := qtx.FailPayment(ctx, repository.FailPaymentParams{
				ID:         payment.ID,
				ResultCode: cb.ResultCode,
				ResultDesc: cb.ResultDesc,
			})
			if err != nil {
				return fmt.Errorf("fail payment: %w", err)
			}
			if err := requireExactlyOne(rows, "fail payment"); err != nil {
				return err
			}
			outcome = CallbackFailed
			return s.audit.Write(ctx, qtx, "payment", payment.ID, nil, "failed", payment.Status, domain.PaymentStatusFailed, map[string]any{
				"result_code": cb.ResultCode,
				"result_desc": cb.ResultDesc,
			})
		}

		if paid := cb.Value("Amount"); paid != "" {
			if units, err := strconv.ParseFloat(paid, 64); err == nil && int64(units*domain.CentsPerUnit) != payment.Amount {
				zap.L().Warn("mpesa callback amount differs from payment",
					zap.String("payment_id", payment.ID.String()),
					zap.String("callback_amount", paid),
					zap.Int64("amount_cents", payment.Amount),
				)
			}
		}

		if _, err := s.ledger.Deposit(ctx, qtx, payment.UserID, payment.Amount, payment.ID); err != nil {
			return fmt.Errorf("deposit payment: %w", err)
		}
		rental, err := s.rentals.open(ctx, qtx, payment.UserID, payment.Currency, payment.Amount, 0, &payment.ID)
		if err != nil {
			return fmt.Errorf("open rental: %w", err)
		}

		var receipt *string
		if r := cb.Value("MpesaReceiptNumber"); r != "" {
			receipt = &r
		}
		rows, err := qtx.CompletePayment(ctx, repository.CompletePaymentParams{
			ID:           payment.ID,
			MpesaReceipt: receipt,
			ResultCode:   cb.ResultCode,
			ResultDesc:   cb.ResultDesc,
			RentalID:     rental.ID,
		})
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if err := requireExactlyOne(rows, "complete payment"); err != nil {
			return err
		}
		outcome = CallbackCompleted
		return s.audit.Write(ctx, qtx, "payment", payment.ID, nil, "completed", payment.Status, domain.PaymentStatusCompleted, map[string]any{
			"rental_id": rental.ID,
			"receipt":   cb.Value("MpesaReceiptNumber"),
		})
	})
	if err != nil {
		observability.IncrementMpesaCallback("error")
		return "", err
	}

	observability.IncrementMpesaCallback(outcome)
	logger := zap.L().With(zap.String("checkout_request_id", cb.CheckoutRequestID), zap.String("outcome", outcome))
	switch outcome {
	case CallbackUnknown:
		logger.Warn("mpesa callback for unknown checkout request")
	case CallbackLateSuccess:
		logger.Error("mpesa charge succeeded after payment was closed",
			zap.String("receipt", cb.Value("MpesaReceiptNumber")),
			zap.String("amount", cb.Value("Amount")),
		)
	default:
		logger.Info("mpesa callback processed", zap.Int32("result_code", cb.ResultCode))
	}
	return outcome, nil
}

// ExpireStale fails pending payments older than the configured expiry.
func (s *PaymentService) ExpireStale(ctx context.Context, limit int32) (int, error) {
	ids, err := s.store.Queries().ExpirePendingPayments(ctx, s.now().UTC().Add(-s.cfg.Expiry), limit)
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}
	if len(ids) > 0 {
		zap.L().Info("expired pending payments", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}

func (s *PaymentService) History(ctx context.Context, userID uuid.UUID, limit, offset int32) (*models.Page[repository.Payment], error) {
	limit, offset = clampPage(limit, offset)
	payments, err := s.store.Queries().ListPayments(ctx, repository.ListPaymentsParams{UserID: &userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if payments == nil {
		payments = []repository.Payment{}
	}
	return &models.Page[repository.Payment]{Items: payments, Limit: limit, Offset: offset, Count: len(payments)}, nil
}

type MonthlyEarnings struct {
	Month           string `json:"month"`
	Currency        string `json:"currency"`
	RentalYield     int64  `json:"rental_yield_cents"`
	ReferralRewards int64  `json:"referral_rewards_cents"`
	Total           int64  `json:"total_cents"`
}

// Earnings sums rental yield and referral rewards credited this month (UTC).
func (s *PaymentService) Earnings(ctx context.Context, userID uuid.UUID) (*MonthlyEarnings, error) {
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	queries := s.store.Queries()

	yield, err := queries.SumWalletEntriesSince(ctx, repository.SumWalletEntriesSinceParams{
		UserID: userID,
		Kinds:  []string{domain.EntryRentalYield},
		Since:  since,
	})
	if err != nil {
		return nil, fmt.Errorf("sum rental yield: %w", err)
	}
	rewards, err := queries.SumWalletEntriesSince(ctx, repository.SumWalletEntriesSinceParams{
		UserID: userID,
		Kinds:  []string{domain.EntryReferralReward},
		Since:  since,
	})
	if err != nil {
		return nil, fmt.Errorf("sum referral rewards: %w", err)
	}
	return &MonthlyEarnings{
		Month:           since.Format("2006-01"),
		Currency:        domain.BaseCurrency,
		RentalYield:     yield,
		ReferralRewards: rewards,
		Total:           yield + rewards,
	}, nil
}

type AdminPaymentOverview struct {
	Totals   []repository.PaymentTotalRow `json:"totals"`
	Payments []repository.Payment         `json:"payments"`
}

// AdminOverview lists payments, optionally for one user, with totals by status.
func (s *PaymentService) AdminOverview(ctx context.Context, userID *uuid.UUID, limit, offset int32) (*AdminPaymentOverview, error) {
	limit, offset = clampPage(limit, offset)
	queries := s.store.Queries()
	totals, err := queries.PaymentTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("payment totals: %w", err)
	}
	payments, err := queries.ListPayments(ctx, repository.ListPaymentsParams{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if totals == nil {
		totals = []repository.PaymentTotalRow{}
	}
	if payments == nil {
		payments = []repository.Payment{}
	}
	return &AdminPaymentOverview{Totals: totals, Payments: payments}, nil
}
