package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, user_id, method, currency, amount, phone_number, status, checkout_request_id, merchant_request_id,
    mpesa_receipt, result_code, result_desc, rental_id, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Method,
		&p.Currency,
		&p.Amount,
		&p.PhoneNumber,
		&p.Status,
		&p.CheckoutRequestID,
		&p.MerchantRequestID,
		&p.MpesaReceipt,
		&p.ResultCode,
		&p.ResultDesc,
		&p.RentalID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const insertPayment = `
INSERT INTO payments (id, user_id, method, currency, amount, phone_number, status, checkout_request_id, merchant_request_id, rental_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + paymentColumns

type InsertPaymentParams struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Method            string
	Currency          string
	Amount            int64
	PhoneNumber       string
	Status            string
	CheckoutRequestID *string
	MerchantRequestID *string
	RentalID          *uuid.UUID
}

func (q *Queries) InsertPayment(ctx context.Context, arg InsertPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, insertPayment,
		arg.ID,
		arg.UserID,
		arg.Method,
		arg.Currency,
		arg.Amount,
		arg.PhoneNumber,
		arg.Status,
		arg.CheckoutRequestID,
		arg.MerchantRequestID,
		arg.RentalID,
	)
	return scanPayment(row)
}

const getPayment = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const getPaymentByCheckoutIDForUpdate = `SELECT ` + paymentColumns + ` FROM payments WHERE checkout_request_id = $1 FOR UPDATE`

func (q *Queries) GetPaymentByCheckoutIDForUpdate(ctx context.Context, checkoutRequestID string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByCheckoutIDForUpdate, checkoutRequestID))
}

const completePayment = `
UPDATE payments
SET status = 'completed', mpesa_receipt = $2, result_code = $3, result_desc = $4, rental_id = $5, updated_at = NOW()
WHERE id = $1 AND status = 'pending'`

type CompletePaymentParams struct {
	ID           uuid.UUID
	MpesaReceipt *string
	ResultCode   int32
	ResultDesc   string
	RentalID     uuid.UUID
}

func (q *Queries) CompletePayment(ctx context.Context, arg CompletePaymentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, completePayment, arg.ID, arg.MpesaReceipt, arg.ResultCode, arg.ResultDesc, arg.RentalID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const failPayment = `
UPDATE payments
SET status = 'failed', result_code = $2, result_desc = $3, updated_at = NOW()
WHERE id = $1 AND status = 'pending'`

type FailPaymentParams struct {
	ID         uuid.UUID
	ResultCode int32
	ResultDesc string
}

func (q *Queries) FailPayment(ctx context.Context, arg FailPaymentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, failPayment, arg.ID, arg.ResultCode, arg.ResultDesc)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const expirePendingPayments = `
UPDATE payments
SET status = 'failed', result_desc = 'expired', updated_at = NOW()
WHERE id IN (
    SELECT id FROM payments
    WHERE status = 'pending' AND created_at < $1
    ORDER BY created_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING id`

func (q *Queries) ExpirePendingPayments(ctx context.Context, before time.Time, limit int32) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, expirePendingPayments, before, limit)
	return collect(rows, err, func(row pgx.Row) (uuid.UUID, error) {
		var id uuid.UUID
		err := row.Scan(&id)
		return id, err
	})
}

const listPayments = `
SELECT ` + paymentColumns + `
FROM payments
WHERE ($1::uuid IS NULL OR user_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListPaymentsParams struct {
	UserID *uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListPayments(ctx context.Context, arg ListPaymentsParams) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPayments, arg.UserID, arg.Limit, arg.Offset)
	return collect(rows, err, scanPayment)
}

const paymentTotals = `
SELECT status, COUNT(*), COALESCE(SUM(amount), 0)::bigint
FROM payments
WHERE ($1::uuid IS NULL OR user_id = $1)
GROUP BY status
ORDER BY status`

type PaymentTotalRow struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Amount int64  `json:"amount_cents"`
}

func (q *Queries) PaymentTotals(ctx context.Context, userID *uuid.UUID) ([]PaymentTotalRow, error) {
	rows, err := q.db.Query(ctx, paymentTotals, userID)
	return collect(rows, err, func(row pgx.Row) (PaymentTotalRow, error) {
		var t PaymentTotalRow
		err := row.Scan(&t.Status, &t.Count, &t.Amount)
		return t, err
	})
}
