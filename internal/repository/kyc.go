package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const kycColumns = `id, user_id, full_name, email, phone_number, national_id, date_of_birth, address, is_verified, verified_at, submitted_at, updated_at`

func scanKyc(row pgx.Row) (KycProfile, error) {
	var k KycProfile
	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.FullName,
		&k.Email,
		&k.PhoneNumber,
		&k.NationalID,
		&k.DateOfBirth,
		&k.Address,
		&k.IsVerified,
		&k.VerifiedAt,
		&k.SubmittedAt,
		&k.UpdatedAt,
	)
	return k, err
}

const getKycByUser = `SELECT ` + kycColumns + ` FROM kyc_profiles WHERE user_id = $1`

func (q *Queries) GetKycByUser(ctx context.Context, userID uuid.UUID) (KycProfile, error) {
	return scanKyc(q.db.QueryRow(ctx, getKycByUser, userID))
}

const getKycForUpdate = `SELECT ` + kycColumns + ` FROM kyc_profiles WHERE id = $1 FOR UPDATE`

func (q *Queries) GetKycForUpdate(ctx context.Context, id uuid.UUID) (KycProfile, error) {
	return scanKyc(q.db.QueryRow(ctx, getKycForUpdate, id))
}

const getKycByUserForUpdate = `SELECT ` + kycColumns + ` FROM kyc_profiles WHERE user_id = $1 FOR UPDATE`

func (q *Queries) GetKycByUserForUpdate(ctx context.Context, userID uuid.UUID) (KycProfile, error) {
	return scanKyc(q.db.QueryRow(ctx, getKycByUserForUpdate, userID))
}

const insertKyc = `
INSERT INTO kyc_profiles (id, user_id, full_name, email, phone_number)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO NOTHING`

type InsertKycParams struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	FullName    string
	Email       string
	PhoneNumber string
}

// InsertKyc creates a stub profile unless one already exists.
func (q *Queries) InsertKyc(ctx context.Context, arg InsertKycParams) error {
	_, err := q.db.Exec(ctx, insertKyc, arg.ID, arg.UserID, arg.FullName, arg.Email, arg.PhoneNumber)
	return err
}

const updateKyc = `
UPDATE kyc_profiles
SET full_name = $2, phone_number = $3, national_id = $4, date_of_birth = $5, address = $6,
    is_verified = $7, verified_at = CASE WHEN $7 THEN verified_at ELSE NULL END, updated_at = NOW()
WHERE id = $1
RETURNING ` + kycColumns

type UpdateKycParams struct {
	ID          uuid.UUID
	FullName    string
	PhoneNumber string
	NationalID  string
	DateOfBirth *time.Time
	Address     string
	IsVerified  bool
}

func (q *Queries) UpdateKyc(ctx context.Context, arg UpdateKycParams) (KycProfile, error) {
	row := q.db.QueryRow(ctx, updateKyc,
		arg.ID,
		arg.FullName,
		arg.PhoneNumber,
		arg.NationalID,
		arg.DateOfBirth,
		arg.Address,
		arg.IsVerified,
	)
	return scanKyc(row)
}

const verifyKyc = `
UPDATE kyc_profiles
SET is_verified = TRUE, verified_at = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + kycColumns

func (q *Queries) VerifyKyc(ctx context.Context, id uuid.UUID, at time.Time) (KycProfile, error) {
	return scanKyc(q.db.QueryRow(ctx, verifyKyc, id, at))
}

const listKyc = `
SELECT ` + kycColumns + `
FROM kyc_profiles
WHERE ($1::boolean IS NULL OR is_verified = $1)
ORDER BY submitted_at DESC
LIMIT $2 OFFSET $3`

type ListKycParams struct {
	Verified *bool
	Limit    int32
	Offset   int32
}

func (q *Queries) ListKyc(ctx context.Context, arg ListKycParams) ([]KycProfile, error) {
	rows, err := q.db.Query(ctx, listKyc, arg.Verified, arg.Limit, arg.Offset)
	return collect(rows, err, scanKyc)
}
