package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, user_id, mobile_number, amount, status, processed_by, processed_at, created_at, updated_at`

func scanWithdrawal(row pgx.Row) (Withdrawal, error) {
	var w Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.MobileNumber,
		&w.Amount,
		&w.Status,
		&w.ProcessedBy,
		&w.ProcessedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	return w, err
}

const insertWithdrawal = `
INSERT INTO withdrawals (id, user_id, mobile_number, amount, status)
VALUES ($1, $2, $3, $4, 'pending')
RETURNING ` + withdrawalColumns

type InsertWithdrawalParams struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	MobileNumber string
	Amount       int64
}

func (q *Queries) InsertWithdrawal(ctx context.Context, arg InsertWithdrawalParams) (Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, insertWithdrawal, arg.ID, arg.UserID, arg.MobileNumber, arg.Amount))
}

const getWithdrawal = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

func (q *Queries) GetWithdrawal(ctx context.Context, id uuid.UUID) (Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, getWithdrawal, id))
}

const getWithdrawalForUpdate = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`

func (q *Queries) GetWithdrawalForUpdate(ctx context.Context, id uuid.UUID) (Withdrawal, error) {
	return scanWithdrawal(q.db.QueryRow(ctx, getWithdrawalForUpdate, id))
}

const countPendingWithdrawalsForUser = `SELECT COUNT(*) FROM withdrawals WHERE user_id = $1 AND status = 'pending'`

func (q *Queries) CountPendingWithdrawalsForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return scanInt64(q.db.QueryRow(ctx, countPendingWithdrawalsForUser, userID))
}

const updateWithdrawalStatus = `
UPDATE withdrawals
SET status = $2, processed_by = $3, processed_at = $4, updated_at = NOW()
WHERE id = $1 AND status = $5`

type UpdateWithdrawalStatusParams struct {
	ID          uuid.UUID
	Status      string
	ProcessedBy *uuid.UUID
	ProcessedAt *time.Time
	PrevStatus  string
}

// UpdateWithdrawalStatus is a compare-and-set on the previous status.
func (q *Queries) UpdateWithdrawalStatus(ctx context.Context, arg UpdateWithdrawalStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, updateWithdrawalStatus, arg.ID, arg.Status, arg.ProcessedBy, arg.ProcessedAt, arg.PrevStatus)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listUserWithdrawals = `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListUserWithdrawals(ctx context.Context, userID uuid.UUID) ([]Withdrawal, error) {
	rows, err := q.db.Query(ctx, listUserWithdrawals, userID)
	return collect(rows, err, scanWithdrawal)
}

const listWithdrawals = `
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE ($1::text = '' OR status = $1)
ORDER BY created_at
LIMIT $2 OFFSET $3`

type ListWithdrawalsParams struct {
	Status string
	Limit  int32
	Offset int32
}

func (q *Queries) ListWithdrawals(ctx context.Context, arg ListWithdrawalsParams) ([]Withdrawal, error) {
	rows, err := q.db.Query(ctx, listWithdrawals, arg.Status, arg.Limit, arg.Offset)
	return collect(rows, err, scanWithdrawal)
}

const countWithdrawalsByStatus = `SELECT COUNT(*) FROM withdrawals WHERE ($1::text = '' OR status = $1)`

func (q *Queries) CountWithdrawalsByStatus(ctx context.Context, status string) (int64, error) {
	return scanInt64(q.db.QueryRow(ctx, countWithdrawalsByStatus, status))
}

const claimStalePendingWithdrawals = `
SELECT ` + withdrawalColumns + `
FROM withdrawals
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at
LIMIT $2
FOR UPDATE SKIP LOCKED`

func (q *Queries) ClaimStalePendingWithdrawals(ctx context.Context, before time.Time, limit int32) ([]Withdrawal, error) {
	rows, err := q.db.Query(ctx, claimStalePendingWithdrawals, before, limit)
	return collect(rows, err, scanWithdrawal)
}
