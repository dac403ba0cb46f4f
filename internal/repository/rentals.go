package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const rentalColumns = `id, user_id, currency, amount, expected_return, status, duration_days, end_date, completed_at,
    referrer_id, referral_reward_given, payment_id, created_at, updated_at`

func scanRental(row pgx.Row) (Rental, error) {
	var r Rental
	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Currency,
		&r.Amount,
		&r.ExpectedReturn,
		&r.Status,
		&r.DurationDays,
		&r.EndDate,
		&r.CompletedAt,
		&r.ReferrerID,
		&r.ReferralRewardGiven,
		&r.PaymentID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

const insertRental = `
INSERT INTO rentals (id, user_id, currency, amount, expected_return, status, duration_days, end_date, referrer_id, payment_id, created_at)
VALUES ($1, $2, $3, $4, $5, 'active', $6, $7, $8, $9, $10)
RETURNING ` + rentalColumns

type InsertRentalParams struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Currency       string
	Amount         int64
	ExpectedReturn int64
	DurationDays   int32
	EndDate        time.Time
	ReferrerID     *uuid.UUID
	PaymentID      *uuid.UUID
	CreatedAt      time.Time
}

func (q *Queries) InsertRental(ctx context.Context, arg InsertRentalParams) (Rental, error) {
	row := q.db.QueryRow(ctx, insertRental,
		arg.ID,
		arg.UserID,
		arg.Currency,
		arg.Amount,
		arg.ExpectedReturn,
		arg.DurationDays,
		arg.EndDate,
		arg.ReferrerID,
		arg.PaymentID,
		arg.CreatedAt,
	)
	return scanRental(row)
}

const getRental = `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`

func (q *Queries) GetRental(ctx context.Context, id uuid.UUID) (Rental, error) {
	return scanRental(q.db.QueryRow(ctx, getRental, id))
}

const getRentalForUpdate = `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 FOR UPDATE`

func (q *Queries) GetRentalForUpdate(ctx context.Context, id uuid.UUID) (Rental, error) {
	return scanRental(q.db.QueryRow(ctx, getRentalForUpdate, id))
}

const listUserRentals = `SELECT ` + rentalColumns + ` FROM rentals WHERE user_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListUserRentals(ctx context.Context, userID uuid.UUID) ([]Rental, error) {
	rows, err := q.db.Query(ctx, listUserRentals, userID)
	return collect(rows, err, scanRental)
}

// MaturedCursor marks the last rental seen by a maturity scan.
type MaturedCursor struct {
	EndDate time.Time
	ID      uuid.UUID
}

const listMaturedRentals = `
SELECT id, end_date
FROM rentals
WHERE status = 'active' AND end_date <= $1
  AND ($2::timestamptz IS NULL OR (end_date, id) > ($2, $3))
ORDER BY end_date, id
LIMIT $4`

// ListMaturedRentals pages through matured active rentals in (end_date, id)
// order, starting after the cursor when one is given. Rows are not locked.
func (q *Queries) ListMaturedRentals(ctx context.Context, now time.Time, after *MaturedCursor, limit int32) ([]MaturedCursor, error) {
	var afterEnd *time.Time
	afterID := uuid.Nil
	if after != nil {
		afterEnd, afterID = &after.EndDate, after.ID
	}
	rows, err := q.db.Query(ctx, listMaturedRentals, now, afterEnd, afterID, limit)
	return collect(rows, err, func(row pgx.Row) (MaturedCursor, error) {
		var c MaturedCursor
		err := row.Scan(&c.ID, &c.EndDate)
		return c, err
	})
}

const claimActiveRental = `
SELECT ` + rentalColumns + `
FROM rentals
WHERE id = $1 AND status = 'active'
FOR UPDATE SKIP LOCKED`

// ClaimActiveRental locks one active rental. It returns pgx.ErrNoRows when
// the rental is no longer active or another transaction holds it.
func (q *Queries) ClaimActiveRental(ctx context.Context, id uuid.UUID) (Rental, error) {
	return scanRental(q.db.QueryRow(ctx, claimActiveRental, id))
}

const closeRental = `
UPDATE rentals
SET status = $2, completed_at = $3, updated_at = NOW()
WHERE id = $1 AND status = 'active'`

type CloseRentalParams struct {
	ID          uuid.UUID
	Status      string
	CompletedAt time.Time
}

func (q *Queries) CloseRental(ctx context.Context, arg CloseRentalParams) (int64, error) {
	tag, err := q.db.Exec(ctx, closeRental, arg.ID, arg.Status, arg.CompletedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const markRentalReferralRewarded = `
UPDATE rentals SET referral_reward_given = TRUE, updated_at = NOW()
WHERE id = $1 AND referral_reward_given = FALSE`

func (q *Queries) MarkRentalReferralRewarded(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, markRentalReferralRewarded, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const sumPendingReturns = `
SELECT COALESCE(SUM(expected_return), 0)::bigint, COUNT(*)
FROM rentals
WHERE user_id = $1 AND status = 'active'`

func (q *Queries) SumPendingReturns(ctx context.Context, userID uuid.UUID) (int64, int64, error) {
	var total, count int64
	err := q.db.QueryRow(ctx, sumPendingReturns, userID).Scan(&total, &count)
	return total, count, err
}

const listActiveRentals = `
SELECT ` + rentalColumns + `
FROM rentals
WHERE status = 'active'
ORDER BY end_date
LIMIT $1 OFFSET $2`

func (q *Queries) ListActiveRentals(ctx context.Context, limit, offset int32) ([]Rental, error) {
	rows, err := q.db.Query(ctx, listActiveRentals, limit, offset)
	return collect(rows, err, scanRental)
}

const activeRentalSummary = `
SELECT COUNT(*),
       COALESCE(SUM(amount), 0)::bigint,
       COALESCE(SUM(expected_return), 0)::bigint,
       COUNT(*) FILTER (WHERE end_date <= $1)
FROM rentals
WHERE status = 'active'`

type ActiveRentalSummary struct {
	TotalActive     int64 `json:"total_active"`
	LockedAmount    int64 `json:"locked_amount_cents"`
	ExpectedReturns int64 `json:"expected_returns_cents"`
	MatureCount     int64 `json:"mature_count"`
}

func (q *Queries) GetActiveRentalSummary(ctx context.Context, now time.Time) (ActiveRentalSummary, error) {
	var s ActiveRentalSummary
	err := q.db.QueryRow(ctx, activeRentalSummary, now).Scan(&s.TotalActive, &s.LockedAmount, &s.ExpectedReturns, &s.MatureCount)
	return s, err
}
