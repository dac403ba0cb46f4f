package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/gateway"
	"github.com/liquifund/liquidity/internal/notify"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/liquifund/liquidity/internal/testutil/pgtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "service-test-secret-0123456789abcdef"

type recordingNotifier struct {
	mu          sync.Mutex
	resets      []string
	withdrawals []notify.WithdrawalNotice
}

func (n *recordingNotifier) PasswordReset(_ context.Context, _ string, _ string, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, link)
	return nil
}

func (n *recordingNotifier) WithdrawalStatusChanged(_ context.Context, _ string, w notify.WithdrawalNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.withdrawals = append(n.withdrawals, w)
	return nil
}

func (n *recordingNotifier) lastReset() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		return ""
	}
	return n.resets[len(n.resets)-1]
}

type testEnv struct {
	pool        *pgxpool.Pool
	store       *repository.Store
	ledger      *Ledger
	tokens      *TokenManager
	auth        *AuthService
	users       *UserService
	referrals   *ReferralService
	rentals     *RentalService
	payments    *PaymentService
	withdrawals *WithdrawalService
	kyc         *KycService
	reconcile   *ReconciliationService
	mpesa       *gateway.MockMpesa
	notifier    *recordingNotifier
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pool := pgtest.Setup(t)
	store := repository.NewStore(pool)
	ledger := NewLedger()
	notifier := &recordingNotifier{}
	tokens := NewTokenManager(TokenConfig{
		Secret:     []byte(testSecret),
		Issuer:     "liquidity-test",
		Audience:   "liquidity-clients",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		ResetTTL:   15 * time.Minute,
	})
	referrals := NewReferralService(store, ledger, decimal.RequireFromString("0.5"), "https://app.example.com")
	rentals := NewRentalService(store, ledger, referrals, RentalConfig{DurationDays: 20, Multiplier: decimal.NewFromInt(2)})
	mpesa := gateway.NewMockMpesa()

	return &testEnv{
		pool:      pool,
		store:     store,
		ledger:    ledger,
		tokens:    tokens,
		auth:      NewAuthService(store, tokens, notifier, "https://app.example.com").WithPasswordCost(bcrypt.MinCost),
		users:     NewUserService(store, ledger),
		referrals: referrals,
		rentals:   rentals,
		payments:  NewPaymentService(store, ledger, rentals, mpesa, PaymentConfig{CallbackToken: "cb-token", Expiry: 24 * time.Hour}),
		withdrawals: NewWithdrawalService(store, ledger, notifier, WithdrawalConfig{
			MinAmount:     domain.FromShillings(100).Cents,
			EscalateAfter: 48 * time.Hour,
		}),
		kyc:       NewKycService(store),
		reconcile: NewReconciliationService(store),
		mpesa:     mpesa,
		notifier:  notifier,
	}
}

// createUser inserts a user with an empty wallet.
func (e *testEnv) createUser(t *testing.T, email string, referredBy *uuid.UUID) repository.User {
	t.Helper()
	ctx := context.Background()
	var user repository.User
	err := e.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		user, err = qtx.CreateUser(ctx, repository.CreateUserParams{
			ID:           uuid.New(),
			Email:        email,
			FullName:     "Test " + email,
			PasswordHash: "x",
			Role:         domain.RoleUser,
			ReferralCode: NewReferralCode(),
			ReferredBy:   referredBy,
		})
		if err != nil {
			return err
		}
		if _, err := qtx.CreateWallet(ctx, user.ID); err != nil {
			return err
		}
		if referredBy != nil {
			_, err = qtx.UpsertReferral(ctx, repository.UpsertReferralParams{
				ID:            uuid.New(),
				ReferrerID:    *referredBy,
				ReferredID:    &user.ID,
				ReferredEmail: email,
				ReferredName:  user.FullName,
				Status:        domain.ReferralStatusCompleted,
			})
		}
		return err
	})
	require.NoError(t, err)
	return user
}

// fund deposits amount cents into the user's available balance.
func (e *testEnv) fund(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		_, err := e.ledger.Deposit(ctx, qtx, userID, amount, uuid.New())
		return err
	}))
}

func (e *testEnv) wallet(t *testing.T, userID uuid.UUID) repository.Wallet {
	t.Helper()
	w, err := e.store.Queries().GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w
}

// requireBalanced asserts that every wallet matches its journal and rentals.
func (e *testEnv) requireBalanced(t *testing.T) {
	t.Helper()
	report, err := e.reconcile.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Balanced, "ledger drift: %+v", report.Drifts)
}

func shillings(n int64) int64 {
	return domain.FromShillings(n).Cents
}
