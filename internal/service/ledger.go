package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/repository"
)

var ErrWalletNotFound = errors.New("wallet not found")

// Ledger is the only writer of wallet balances. Every movement adjusts the
// wallet with a single guarded UPDATE and journals one entry per bucket leg,
// so the wallet always equals the sum of its entries.
//
// Ledger methods run on the caller's transaction and never commit.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

type leg struct {
	bucket string
	kind   string
	amount int64
}

// creditKinds are the external sources allowed to feed the available bucket.
var creditKinds = map[string]struct{}{
	domain.EntryReferralReward: {},
	domain.EntryAdminAward:     {},
}

// Deposit credits money received from outside the platform.
func (l *Ledger) Deposit(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, amount int64, paymentID uuid.UUID) (uuid.UUID, error) {
	return l.apply(ctx, qtx, userID, domain.RefPayment, paymentID,
		leg{domain.BucketAvailable, domain.EntryDeposit, amount},
	)
}

// LockRental moves principal from the available bucket into the rental bucket.
func (l *Ledger) LockRental(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, amount int64, rentalID uuid.UUID) (uuid.UUID, error) {
	return l.apply(ctx, qtx, userID, domain.RefRental, rentalID,
		leg{domain.BucketAvailable, domain.EntryRentalLock, -amount},
		leg{domain.BucketRental, domain.EntryRentalLock, amount},
	)
}

// ReleaseRental returns a matured rental's principal and credits its yield.
func (l *Ledger) ReleaseRental(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, principal, yield int64, rentalID uuid.UUID) (uuid.UUID, error) {
	if yield < 0 {
		return uuid.Nil, domain.ErrInvalidAmount
	}
	legs := []leg{
		{domain.BucketRental, domain.EntryRentalRelease, -principal},
		{domain.BucketAvailable, domain.EntryRentalRelease, principal},
	}
	if yield > 0 {
		legs = append(legs, leg{domain.BucketAvailable, domain.EntryRentalYield, yield})
	}
	return l.apply(ctx, qtx, userID, domain.RefRental, rentalID, legs...)
}

// RefundRental returns the principal of a failed rental without yield.
func (l *Ledger) RefundRental(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, principal int64, rentalID uuid.UUID) (uuid.UUID, error) {
	return l.apply(ctx, qtx, userID, domain.RefRental, rentalID,
		leg{domain.BucketRental, domain.EntryRentalRefund, -principal},
		leg{domain.BucketAvailable, domain.EntryRentalRefund, principal},
	)
}

// Credit pays a referral reward or an admin award into the available bucket.
func (l *Ledger) Credit(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, amount int64, kind, refType string, refID uuid.UUID) (uuid.UUID, error) {
	if _, ok := creditKinds[kind]; !ok {
		return uuid.Nil, fmt.Errorf("unsupported credit kind %q", kind)
	}
	return l.apply(ctx, qtx, userID, refType, refID,
		leg{domain.BucketAvailable, kind, amount},
	)
}

// HoldWithdrawal removes requested funds from the available bucket.
func (l *Ledger) HoldWithdrawal(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, amount int64, withdrawalID uuid.UUID) (uuid.UUID, error) {
	return l.apply(ctx, qtx, userID, domain.RefWithdrawal, withdrawalID,
		leg{domain.BucketAvailable, domain.EntryWithdrawalHold, -amount},
	)
}

// RefundWithdrawal returns the held amount of a rejected withdrawal.
func (l *Ledger) RefundWithdrawal(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, amount int64, withdrawalID uuid.UUID) (uuid.UUID, error) {
	return l.apply(ctx, qtx, userID, domain.RefWithdrawal, withdrawalID,
		leg{domain.BucketAvailable, domain.EntryWithdrawalRefund, amount},
	)
}

func (l *Ledger) apply(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, refType string, refID uuid.UUID, legs ...leg) (uuid.UUID, error) {
	var balanceDelta, rentalDelta int64
	for _, lg := range legs {
		if !legAllowed(lg) {
			return uuid.Nil, domain.ErrInvalidAmount
		}
		switch lg.bucket {
		case domain.BucketAvailable:
			balanceDelta += lg.amount
		case domain.BucketRental:
			rentalDelta += lg.amount
		}
	}

	rows, err := qtx.AdjustWallet(ctx, repository.AdjustWalletParams{
		UserID:       userID,
		BalanceDelta: balanceDelta,
		RentalDelta:  rentalDelta,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("adjust wallet: %w", err)
	}
	if rows == 0 {
		if _, err := qtx.GetWallet(ctx, userID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return uuid.Nil, ErrWalletNotFound
			}
			return uuid.Nil, fmt.Errorf("load wallet: %w", err)
		}
		return uuid.Nil, models.ErrInsufficientFunds
	}
	if err := requireExactlyOne(rows, "adjust wallet"); err != nil {
		return uuid.Nil, err
	}

	movementID := uuid.New()
	for _, lg := range legs {
		if _, err := qtx.InsertWalletEntry(ctx, repository.InsertWalletEntryParams{
			UserID:        userID,
			MovementID:    movementID,
			Bucket:        lg.bucket,
			Kind:          lg.kind,
			Amount:        lg.amount,
			ReferenceType: refType,
			ReferenceID:   refID,
		}); err != nil {
			return uuid.Nil, fmt.Errorf("insert wallet entry: %w", err)
		}
	}
	return movementID, nil
}

// legSigns is the direction each entry kind may move each bucket. A caller
// passing a non-positive amount would flip every leg, so it is rejected here.
var legSigns = map[string]map[string]int{
	domain.EntryDeposit:          {domain.BucketAvailable: 1},
	domain.EntryRentalLock:       {domain.BucketAvailable: -1, domain.BucketRental: 1},
	domain.EntryRentalRelease:    {domain.BucketAvailable: 1, domain.BucketRental: -1},
	domain.EntryRentalYield:      {domain.BucketAvailable: 1},
	domain.EntryRentalRefund:     {domain.BucketAvailable: 1, domain.BucketRental: -1},
	domain.EntryReferralReward:   {domain.BucketAvailable: 1},
	domain.EntryAdminAward:       {domain.BucketAvailable: 1},
	domain.EntryWithdrawalHold:   {domain.BucketAvailable: -1},
	domain.EntryWithdrawalRefund: {domain.BucketAvailable: 1},
}

func legAllowed(lg leg) bool {
	sign, ok := legSigns[lg.kind][lg.bucket]
	if !ok {
		return false
	}
	if sign > 0 {
		return lg.amount > 0
	}
	return lg.amount < 0
}
