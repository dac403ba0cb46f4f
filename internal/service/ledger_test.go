package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegAllowed(t *testing.T) {
	tests := []struct {
		name string
		leg  leg
		want bool
	}{
		{"deposit credit", leg{domain.BucketAvailable, domain.EntryDeposit, 100}, true},
		{"deposit debit", leg{domain.BucketAvailable, domain.EntryDeposit, -100}, false},
		{"deposit into rental bucket", leg{domain.BucketRental, domain.EntryDeposit, 100}, false},
		{"lock debits available", leg{domain.BucketAvailable, domain.EntryRentalLock, -100}, true},
		{"lock credits rental", leg{domain.BucketRental, domain.EntryRentalLock, 100}, true},
		{"release debits rental", leg{domain.BucketRental, domain.EntryRentalRelease, -100}, true},
		{"hold credit rejected", leg{domain.BucketAvailable, domain.EntryWithdrawalHold, 100}, false},
		{"zero amount", leg{domain.BucketAvailable, domain.EntryAdminAward, 0}, false},
		{"unknown kind", leg{domain.BucketAvailable, "gift", 100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, legAllowed(tt.leg))
		})
	}
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()
	id := uuid.New()

	_, err := l.Deposit(ctx, nil, id, 0, id)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = l.LockRental(ctx, nil, id, -500, id)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = l.ReleaseRental(ctx, nil, id, 500, -1, id)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = l.Credit(ctx, nil, id, 500, domain.EntryDeposit, domain.RefUser, id)
	assert.Error(t, err)
}

func TestLedgerMovementsStayBalanced(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ledger@example.com", nil)

	env.fund(t, user.ID, shillings(1000))
	rentalID := uuid.New()
	withdrawalID := uuid.New()
	err := env.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		if _, err := env.ledger.LockRental(ctx, qtx, user.ID, shillings(400), rentalID); err != nil {
			return err
		}
		if _, err := env.ledger.HoldWithdrawal(ctx, qtx, user.ID, shillings(100), withdrawalID); err != nil {
			return err
		}
		_, err := env.ledger.RefundWithdrawal(ctx, qtx, user.ID, shillings(100), withdrawalID)
		return err
	})
	require.NoError(t, err)

	w := env.wallet(t, user.ID)
	assert.Equal(t, shillings(600), w.Balance)
	assert.Equal(t, shillings(400), w.RentalBalance)

	err = env.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		_, err := env.ledger.ReleaseRental(ctx, qtx, user.ID, shillings(400), shillings(400), rentalID)
		return err
	})
	require.NoError(t, err)

	w = env.wallet(t, user.ID)
	assert.Equal(t, shillings(1400), w.Balance)
	assert.Equal(t, int64(0), w.RentalBalance)

	entries, err := env.store.Queries().ListWalletEntries(ctx, repository.ListWalletEntriesParams{UserID: user.ID, Limit: 50})
	require.NoError(t, err)
	var sum int64
	for _, e := range entries {
		if e.Bucket == domain.BucketAvailable {
			sum += e.Amount
		}
	}
	assert.Equal(t, w.Balance, sum)
}

func TestLedgerInsufficientFundsWritesNothing(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "poor@example.com", nil)
	env.fund(t, user.ID, shillings(50))

	err := env.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		_, err := env.ledger.HoldWithdrawal(ctx, qtx, user.ID, shillings(51), uuid.New())
		return err
	})
	require.ErrorIs(t, err, models.ErrInsufficientFunds)

	entries, err := env.store.Queries().ListWalletEntries(ctx, repository.ListWalletEntriesParams{UserID: user.ID, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, shillings(50), env.wallet(t, user.ID).Balance)
}

func TestLedgerMissingWallet(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	err := env.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		_, err := env.ledger.Deposit(ctx, qtx, uuid.New(), 100, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, ErrWalletNotFound)
}
