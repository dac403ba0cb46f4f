package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const referralColumns = `id, referrer_id, referred_id, referred_email, referred_name, status, reward, rental_id, rewarded_at, created_at`

func scanReferral(row pgx.Row) (Referral, error) {
	var r Referral
	err := row.Scan(
		&r.ID,
		&r.ReferrerID,
		&r.ReferredID,
		&r.ReferredEmail,
		&r.ReferredName,
		&r.Status,
		&r.Reward,
		&r.RentalID,
		&r.RewardedAt,
		&r.CreatedAt,
	)
	return r, err
}

const upsertReferral = `
INSERT INTO referrals (id, referrer_id, referred_id, referred_email, referred_name, status)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (referrer_id, referred_email) DO UPDATE
SET referred_id = EXCLUDED.referred_id,
    referred_name = EXCLUDED.referred_name,
    status = EXCLUDED.status
RETURNING ` + referralColumns

type UpsertReferralParams struct {
	ID            uuid.UUID
	ReferrerID    uuid.UUID
	ReferredID    *uuid.UUID
	ReferredEmail string
	ReferredName  string
	Status        string
}

func (q *Queries) UpsertReferral(ctx context.Context, arg UpsertReferralParams) (Referral, error) {
	row := q.db.QueryRow(ctx, upsertReferral,
		arg.ID,
		arg.ReferrerID,
		arg.ReferredID,
		arg.ReferredEmail,
		arg.ReferredName,
		arg.Status,
	)
	return scanReferral(row)
}

const getReferralByReferredForUpdate = `SELECT ` + referralColumns + ` FROM referrals WHERE referred_id = $1 FOR UPDATE`

func (q *Queries) GetReferralByReferredForUpdate(ctx context.Context, referredID uuid.UUID) (Referral, error) {
	return scanReferral(q.db.QueryRow(ctx, getReferralByReferredForUpdate, referredID))
}

const rewardReferral = `
UPDATE referrals
SET reward = $2, rental_id = $3, rewarded_at = NOW(), status = 'completed'
WHERE id = $1 AND rewarded_at IS NULL`

type RewardReferralParams struct {
	ID       uuid.UUID
	Reward   int64
	RentalID uuid.UUID
}

// RewardReferral records the one-time reward; zero rows means it was already paid.
func (q *Queries) RewardReferral(ctx context.Context, arg RewardReferralParams) (int64, error) {
	tag, err := q.db.Exec(ctx, rewardReferral, arg.ID, arg.Reward, arg.RentalID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listReferralsByReferrer = `SELECT ` + referralColumns + ` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`

func (q *Queries) ListReferralsByReferrer(ctx context.Context, referrerID uuid.UUID) ([]Referral, error) {
	rows, err := q.db.Query(ctx, listReferralsByReferrer, referrerID)
	return collect(rows, err, scanReferral)
}

const getReferralStats = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'completed'),
       COUNT(*) FILTER (WHERE rewarded_at IS NOT NULL),
       COALESCE(SUM(reward), 0)::bigint
FROM referrals`

type ReferralStats struct {
	Total       int64 `json:"total_referrals"`
	Completed   int64 `json:"completed_referrals"`
	Rewarded    int64 `json:"rewarded_referrals"`
	RewardTotal int64 `json:"reward_total_cents"`
}

func (q *Queries) GetReferralStats(ctx context.Context) (ReferralStats, error) {
	var s ReferralStats
	err := q.db.QueryRow(ctx, getReferralStats).Scan(&s.Total, &s.Completed, &s.Rewarded, &s.RewardTotal)
	return s, err
}

const listReferralRelationships = `
SELECT r.id, u.email, u.full_name, r.referred_email, r.referred_name, r.status, r.reward, r.created_at
FROM referrals r
JOIN users u ON u.id = r.referrer_id
ORDER BY r.created_at DESC
LIMIT $1 OFFSET $2`

type ReferralRelationship struct {
	ID            uuid.UUID `json:"id"`
	ReferrerEmail string    `json:"referrer_email"`
	ReferrerName  string    `json:"referrer_name"`
	ReferredEmail string    `json:"referred_email"`
	ReferredName  string    `json:"referred_name"`
	Status        string    `json:"status"`
	Reward        int64     `json:"reward_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

func (q *Queries) ListReferralRelationships(ctx context.Context, limit, offset int32) ([]ReferralRelationship, error) {
	rows, err := q.db.Query(ctx, listReferralRelationships, limit, offset)
	return collect(rows, err, func(row pgx.Row) (ReferralRelationship, error) {
		var r ReferralRelationship
		err := row.Scan(&r.ID, &r.ReferrerEmail, &r.ReferrerName, &r.ReferredEmail, &r.ReferredName, &r.Status, &r.Reward, &r.CreatedAt)
		return r, err
	})
}

const listTopReferrers = `
SELECT u.id, u.email, u.full_name, COUNT(r.id) AS referrals, COALESCE(SUM(r.reward), 0)::bigint AS rewards
FROM referrals r
JOIN users u ON u.id = r.referrer_id
GROUP BY u.id, u.email, u.full_name
ORDER BY referrals DESC, rewards DESC
LIMIT $1`

type TopReferrer struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Referrals int64     `json:"referrals"`
	Rewards   int64     `json:"rewards_cents"`
}

func (q *Queries) ListTopReferrers(ctx context.Context, limit int32) ([]TopReferrer, error) {
	rows, err := q.db.Query(ctx, listTopReferrers, limit)
	return collect(rows, err, func(row pgx.Row) (TopReferrer, error) {
		var t TopReferrer
		err := row.Scan(&t.UserID, &t.Email, &t.FullName, &t.Referrals, &t.Rewards)
		return t, err
	})
}
