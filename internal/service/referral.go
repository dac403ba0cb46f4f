package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReferralService pays first-rental rewards and reports referral activity.
type ReferralService struct {
	store       QueryStore
	ledger      *Ledger
	audit       *AuditService
	rate        decimal.Decimal
	frontendURL string
}

func NewReferralService(store QueryStore, ledger *Ledger, rate decimal.Decimal, frontendURL string) *ReferralService {
	return &ReferralService{
		store:       store,
		ledger:      ledger,
		audit:       NewAuditService(),
		rate:        rate,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

type ReferralCode struct {
	Code string `json:"referral_code"`
	Link string `json:"referral_link"`
}

type ReferralOverview struct {
	ReferralCode
	Referrals     []repository.Referral `json:"referrals"`
	TotalReferred int                   `json:"total_referred"`
	RewardTotal   int64                 `json:"reward_total_cents"`
}

type AdminReferralOverview struct {
	Stats         repository.ReferralStats          `json:"stats"`
	Relationships []repository.ReferralRelationship `json:"relationships"`
	TopReferrers  []repository.TopReferrer          `json:"top_referrers"`
}

// RewardFirstRental credits the referrer of rental's owner when rental is
// the owner's first. It must run in the transaction that created rental.
func (s *ReferralService) RewardFirstRental(ctx context.Context, qtx *repository.Queries, rental repository.Rental) error {
	if rental.ReferrerID == nil || rental.ReferralRewardGiven {
		return nil
	}

	referral, err := qtx.GetReferralByReferredForUpdate(ctx, rental.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load referral: %w", err)
	}
	if referral.RewardedAt != nil {
		return nil
	}

	scaled, err := domain.NewMoney(rental.Amount).MulRate(s.rate)
	if err != nil {
		return fmt.Errorf("referral reward: %w", err)
	}
	reward := scaled.Cents
	if reward <= 0 {
		return nil
	}

	rows, err := qtx.RewardReferral(ctx, repository.RewardReferralParams{
		ID:       referral.ID,
		Reward:   reward,
		RentalID: rental.ID,
	})
	if err != nil {
		return fmt.Errorf("record referral reward: %w", err)
	}
	if rows == 0 {
		return nil
	}

	if _, err := s.ledger.Credit(ctx, qtx, referral.ReferrerID, reward, domain.EntryReferralReward, domain.RefReferral, referral.ID); err != nil {
		return fmt.Errorf("credit referral reward: %w", err)
	}
	rows, err = qtx.MarkRentalReferralRewarded(ctx, rental.ID)
	if err != nil {
		return fmt.Errorf("mark rental rewarded: %w", err)
	}
	if err := requireExactlyOne(rows, "mark rental rewarded"); err != nil {
		return err
	}

	zap.L().Info("referral reward paid",
		zap.String("referral_id", referral.ID.String()),
		zap.String("referrer_id", referral.ReferrerID.String()),
		zap.Int64("reward_cents", reward),
	)
	return s.audit.Write(ctx, qtx, "referral", referral.ID, nil, "rewarded", referral.Status, domain.ReferralStatusCompleted, map[string]any{
		"rental_id":    rental.ID,
		"reward_cents": reward,
	})
}

// Code returns the user's referral code and shareable link.
func (s *ReferralService) Code(ctx context.Context, userID uuid.UUID) (*ReferralCode, error) {
	user, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	code := s.codeFor(user)
	return &code, nil
}

func (s *ReferralService) codeFor(user repository.User) ReferralCode {
	return ReferralCode{
		Code: user.ReferralCode,
		Link: s.frontendURL + "/register?ref=" + url.QueryEscape(user.ReferralCode),
	}
}

// Overview lists the people userID referred and the rewards earned.
func (s *ReferralService) Overview(ctx context.Context, userID uuid.UUID) (*ReferralOverview, error) {
	queries := s.store.Queries()
	user, err := queries.GetUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	referrals, err := queries.ListReferralsByReferrer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	if referrals == nil {
		referrals = []repository.Referral{}
	}

	overview := &ReferralOverview{
		ReferralCode:  s.codeFor(user),
		Referrals:     referrals,
		TotalReferred: len(referrals),
	}
	for _, r := range referrals {
		overview.RewardTotal += r.Reward
	}
	return overview, nil
}

// AdminOverview reports program-wide referral numbers.
func (s *ReferralService) AdminOverview(ctx context.Context, limit, offset int32) (*AdminReferralOverview, error) {
	limit, offset = clampPage(limit, offset)
	queries := s.store.Queries()

	stats, err := queries.GetReferralStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("referral stats: %w", err)
	}
	relationships, err := queries.ListReferralRelationships(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list referral relationships: %w", err)
	}
	top, err := queries.ListTopReferrers(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("list top referrers: %w", err)
	}
	if relationships == nil {
		relationships = []repository.ReferralRelationship{}
	}
	if top == nil {
		top = []repository.TopReferrer{}
	}
	return &AdminReferralOverview{Stats: stats, Relationships: relationships, TopReferrers: top}, nil
}
