package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `user_id, balance, rental_balance, created_at, updated_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	err := row.Scan(&w.UserID, &w.Balance, &w.RentalBalance, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

const createWallet = `INSERT INTO wallets (user_id) VALUES ($1) RETURNING ` + walletColumns

func (q *Queries) CreateWallet(ctx context.Context, userID uuid.UUID) (Wallet, error) {
	return scanWallet(q.db.QueryRow(ctx, createWallet, userID))
}

const getWallet = `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`

func (q *Queries) GetWallet(ctx context.Context, userID uuid.UUID) (Wallet, error) {
	return scanWallet(q.db.QueryRow(ctx, getWallet, userID))
}

const getWalletForUpdate = `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`

func (q *Queries) GetWalletForUpdate(ctx context.Context, userID uuid.UUID) (Wallet, error) {
	return scanWallet(q.db.QueryRow(ctx, getWalletForUpdate, userID))
}

const adjustWallet = `
UPDATE wallets
SET balance = balance + $2,
    rental_balance = rental_balance + $3,
    updated_at = NOW()
WHERE user_id = $1
  AND balance + $2 >= 0
  AND rental_balance + $3 >= 0`

type AdjustWalletParams struct {
	UserID       uuid.UUID
	BalanceDelta int64
	RentalDelta  int64
}

// AdjustWallet applies both deltas atomically. Zero rows means the wallet is
// missing or a bucket would go negative.
func (q *Queries) AdjustWallet(ctx context.Context, arg AdjustWalletParams) (int64, error) {
	tag, err := q.db.Exec(ctx, adjustWallet, arg.UserID, arg.BalanceDelta, arg.RentalDelta)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertWalletEntry = `
INSERT INTO wallet_entries (user_id, movement_id, bucket, kind, amount, reference_type, reference_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, user_id, movement_id, bucket, kind, amount, reference_type, reference_id, created_at`

type InsertWalletEntryParams struct {
	UserID        uuid.UUID
	MovementID    uuid.UUID
	Bucket        string
	Kind          string
	Amount        int64
	ReferenceType string
	ReferenceID   uuid.UUID
}

func scanWalletEntry(row pgx.Row) (WalletEntry, error) {
	var e WalletEntry
	err := row.Scan(&e.ID, &e.UserID, &e.MovementID, &e.Bucket, &e.Kind, &e.Amount, &e.ReferenceType, &e.ReferenceID, &e.CreatedAt)
	return e, err
}

func (q *Queries) InsertWalletEntry(ctx context.Context, arg InsertWalletEntryParams) (WalletEntry, error) {
	row := q.db.QueryRow(ctx, insertWalletEntry,
		arg.UserID,
		arg.MovementID,
		arg.Bucket,
		arg.Kind,
		arg.Amount,
		arg.ReferenceType,
		arg.ReferenceID,
	)
	return scanWalletEntry(row)
}

const listWalletEntries = `
SELECT id, user_id, movement_id, bucket, kind, amount, reference_type, reference_id, created_at
FROM wallet_entries
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3`

type ListWalletEntriesParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListWalletEntries(ctx context.Context, arg ListWalletEntriesParams) ([]WalletEntry, error) {
	rows, err := q.db.Query(ctx, listWalletEntries, arg.UserID, arg.Limit, arg.Offset)
	return collect(rows, err, scanWalletEntry)
}

const sumWalletEntriesSince = `
SELECT COALESCE(SUM(amount), 0)::bigint
FROM wallet_entries
WHERE user_id = $1 AND kind = ANY($2::text[]) AND created_at >= $3`

type SumWalletEntriesSinceParams struct {
	UserID uuid.UUID
	Kinds  []string
	Since  time.Time
}

func (q *Queries) SumWalletEntriesSince(ctx context.Context, arg SumWalletEntriesSinceParams) (int64, error) {
	return scanInt64(q.db.QueryRow(ctx, sumWalletEntriesSince, arg.UserID, arg.Kinds, arg.Since))
}

const listWalletDrift = `
SELECT w.user_id,
       w.balance,
       w.rental_balance,
       COALESCE(e.available, 0)::bigint AS entries_available,
       COALESCE(e.rental, 0)::bigint AS entries_rental,
       COALESCE(r.locked, 0)::bigint AS active_rentals
FROM wallets w
LEFT JOIN (
    SELECT user_id,
           SUM(amount) FILTER (WHERE bucket = 'available') AS available,
           SUM(amount) FILTER (WHERE bucket = 'rental') AS rental
    FROM wallet_entries
    GROUP BY user_id
) e ON e.user_id = w.user_id
LEFT JOIN (
    SELECT user_id, SUM(amount) AS locked
    FROM rentals
    WHERE status = 'active'
    GROUP BY user_id
) r ON r.user_id = w.user_id
WHERE w.balance <> COALESCE(e.available, 0)
   OR w.rental_balance <> COALESCE(e.rental, 0)
   OR w.rental_balance <> COALESCE(r.locked, 0)`

type WalletDriftRow struct {
	UserID           uuid.UUID
	Balance          int64
	RentalBalance    int64
	EntriesAvailable int64
	EntriesRental    int64
	ActiveRentals    int64
}

// ListWalletDrift returns wallets whose balances disagree with the entry
// journal or with the sum of their active rentals.
func (q *Queries) ListWalletDrift(ctx context.Context) ([]WalletDriftRow, error) {
	rows, err := q.db.Query(ctx, listWalletDrift)
	return collect(rows, err, func(row pgx.Row) (WalletDriftRow, error) {
		var d WalletDriftRow
		err := row.Scan(&d.UserID, &d.Balance, &d.RentalBalance, &d.EntriesAvailable, &d.EntriesRental, &d.ActiveRentals)
		return d, err
	})
}

const getWalletTotals = `
SELECT COALESCE(SUM(balance), 0)::bigint, COALESCE(SUM(rental_balance), 0)::bigint, COUNT(*)
FROM wallets`

type WalletTotals struct {
	Balance       int64
	RentalBalance int64
	Wallets       int64
}

func (q *Queries) GetWalletTotals(ctx context.Context) (WalletTotals, error) {
	var t WalletTotals
	err := q.db.QueryRow(ctx, getWalletTotals).Scan(&t.Balance, &t.RentalBalance, &t.Wallets)
	return t, err
}
