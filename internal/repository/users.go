package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, full_name, phone_number, password_hash, role, is_active, referral_code, referred_by, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PhoneNumber,
		&u.PasswordHash,
		&u.Role,
		&u.IsActive,
		&u.ReferralCode,
		&u.ReferredBy,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const createUser = `
INSERT INTO users (id, email, full_name, phone_number, password_hash, role, referral_code, referred_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

type CreateUserParams struct {
	ID           uuid.UUID
	Email        string
	FullName     string
	PhoneNumber  string
	PasswordHash string
	Role         string
	ReferralCode string
	ReferredBy   *uuid.UUID
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.ID,
		arg.Email,
		arg.FullName,
		arg.PhoneNumber,
		arg.PasswordHash,
		arg.Role,
		arg.ReferralCode,
		arg.ReferredBy,
	)
	return scanUser(row)
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUser, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByReferralCode = `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`

func (q *Queries) GetUserByReferralCode(ctx context.Context, code string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByReferralCode, code))
}

const updateUserProfile = `
UPDATE users
SET full_name = $2, phone_number = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserProfileParams struct {
	ID          uuid.UUID
	FullName    string
	PhoneNumber string
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUserProfile, arg.ID, arg.FullName, arg.PhoneNumber))
}

const updateUserPassword = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

func (q *Queries) UpdateUserPassword(ctx context.Context, id uuid.UUID, passwordHash string) (int64, error) {
	tag, err := q.db.Exec(ctx, updateUserPassword, id, passwordHash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setUserActive = `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 AND role <> 'admin'`

// SetUserActive blocks or unblocks a non-admin user.
func (q *Queries) SetUserActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	tag, err := q.db.Exec(ctx, setUserActive, id, active)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const setUserRoleByEmail = `UPDATE users SET role = $2, updated_at = NOW() WHERE email = $1`

func (q *Queries) SetUserRoleByEmail(ctx context.Context, email, role string) (int64, error) {
	tag, err := q.db.Exec(ctx, setUserRoleByEmail, email, role)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteUser = `DELETE FROM users WHERE id = $1`

func (q *Queries) DeleteUser(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteUser, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listUsers = `
SELECT ` + userColumns + `
FROM users
WHERE ($1::text = '' OR email ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%')
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListUsersParams struct {
	Search string
	Limit  int32
	Offset int32
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, arg.Search, arg.Limit, arg.Offset)
	return collect(rows, err, scanUser)
}

const countUsers = `
SELECT COUNT(*) FROM users
WHERE ($1::text = '' OR email ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%')`

func (q *Queries) CountUsers(ctx context.Context, search string) (int64, error) {
	return scanInt64(q.db.QueryRow(ctx, countUsers, search))
}

const getUserObligations = `
SELECT
    COALESCE((SELECT balance + rental_balance FROM wallets WHERE user_id = $1), 0)::bigint,
    (SELECT COUNT(*) FROM rentals WHERE user_id = $1 AND status = 'active'),
    (SELECT COUNT(*) FROM withdrawals WHERE user_id = $1 AND status IN ('pending', 'processing', 'approved'))`

type UserObligations struct {
	WalletTotal     int64
	ActiveRentals   int64
	OpenWithdrawals int64
}

// GetUserObligations reports money the platform still owes or holds for a user.
func (q *Queries) GetUserObligations(ctx context.Context, userID uuid.UUID) (UserObligations, error) {
	var o UserObligations
	err := q.db.QueryRow(ctx, getUserObligations, userID).Scan(&o.WalletTotal, &o.ActiveRentals, &o.OpenWithdrawals)
	return o, err
}

const insertUserSession = `
INSERT INTO user_sessions (id, user_id, user_agent, ip_address, login_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, user_agent, ip_address, login_at, logout_at`

type InsertUserSessionParams struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	UserAgent string
	IPAddress string
	LoginAt   time.Time
}

func (q *Queries) InsertUserSession(ctx context.Context, arg InsertUserSessionParams) (UserSession, error) {
	var s UserSession
	err := q.db.QueryRow(ctx, insertUserSession, arg.ID, arg.UserID, arg.UserAgent, arg.IPAddress, arg.LoginAt).
		Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.LoginAt, &s.LogoutAt)
	return s, err
}

const closeLatestUserSession = `
UPDATE user_sessions SET logout_at = NOW()
WHERE id = (
    SELECT id FROM user_sessions
    WHERE user_id = $1 AND logout_at IS NULL
    ORDER BY login_at DESC
    LIMIT 1
)`

func (q *Queries) CloseLatestUserSession(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, closeLatestUserSession, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
