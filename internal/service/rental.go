package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/observability"
	"github.com/liquifund/liquidity/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxRentalDays bounds a client chosen rental term.
const MaxRentalDays = 3650

// RentalConfig holds the product terms.
type RentalConfig struct {
	DurationDays int32
	Multiplier   decimal.Decimal
}

// RentalService opens, matures and fails rentals.
type RentalService struct {
	store     QueryStore
	ledger    *Ledger
	referrals *ReferralService
	audit     *AuditService
	cfg       RentalConfig
	now       func() time.Time
}

func NewRentalService(store QueryStore, ledger *Ledger, referrals *ReferralService, cfg RentalConfig) *RentalService {
	return &RentalService{
		store:     store,
		ledger:    ledger,
		referrals: referrals,
		audit:     NewAuditService(),
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *RentalService) WithClock(now func() time.Time) *RentalService {
	s.now = now
	return s
}

type CreateRentalRequest struct {
	UserID       uuid.UUID
	Currency     string
	Amount       int64
	DurationDays int32
}

type PendingReturns struct {
	Currency      string `json:"currency"`
	TotalExpected int64  `json:"total_expected_cents"`
	ActiveCount   int64  `json:"active_count"`
}

type AdminActiveRentals struct {
	Summary repository.ActiveRentalSummary `json:"summary"`
	Rentals []models.RentalView            `json:"rentals"`
}

// resolveRentalAmount validates the card and fills in its price when amount is zero.
func resolveRentalAmount(currency string, amount int64) (string, int64, error) {
	currency = domain.NormalizeCurrency(currency)
	if !domain.IsRentalCurrency(currency) {
		return "", 0, ErrUnknownCurrency
	}
	if amount < 0 {
		return "", 0, invalid("amount", "must be greater than zero")
	}
	if amount > domain.MaxAmountCents {
		return "", 0, invalid("amount", "must not exceed %s", domain.NewMoney(domain.MaxAmountCents))
	}
	if amount == 0 {
		price, ok := domain.CardPrice(currency)
		if !ok {
			return "", 0, invalid("amount", "is required for %s", currency)
		}
		amount = price
	}
	return currency, amount, nil
}

// Create opens a rental funded from the user's available balance.
func (s *RentalService) Create(ctx context.Context, req CreateRentalRequest) (*models.RentalView, error) {
	currency, amount, err := resolveRentalAmount(req.Currency, req.Amount)
	if err != nil {
		return nil, err
	}
	if req.DurationDays < 0 || req.DurationDays > MaxRentalDays {
		return nil, invalid("duration_days", "must be between 1 and %d", MaxRentalDays)
	}

	var rental repository.Rental
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		var err error
		rental, err = s.open(ctx, qtx, req.UserID, currency, amount, req.DurationDays, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	view := s.view(rental)
	return &view, nil
}

// open locks amount from the available bucket into a new rental and pays the
// first-rental referral reward. Runs on the caller's transaction.
func (s *RentalService) open(ctx context.Context, qtx *repository.Queries, userID uuid.UUID, currency string, amount int64, durationDays int32, paymentID *uuid.UUID) (repository.Rental, error) {
	user, err := qtx.GetUser(ctx, userID)
	if err != nil {
		return repository.Rental{}, notFound(err, ErrUserNotFound)
	}
	if durationDays == 0 {
		durationDays = s.cfg.DurationDays
	}

	expected, err := domain.NewMoney(amount).MulRate(s.cfg.Multiplier)
	if err != nil {
		return repository.Rental{}, invalid("amount", "%v", err)
	}

	rentalID := uuid.New()
	if _, err := s.ledger.LockRental(ctx, qtx, userID, amount, rentalID); err != nil {
		return repository.Rental{}, err
	}

	now := s.now().UTC()
	rental, err := qtx.InsertRental(ctx, repository.InsertRentalParams{
		ID:             rentalID,
		UserID:         userID,
		Currency:       currency,
		Amount:         amount,
		ExpectedReturn: expected.Cents,
		DurationDays:   durationDays,
		EndDate:        now.AddDate(0, 0, int(durationDays)),
		ReferrerID:     user.ReferredBy,
		PaymentID:      paymentID,
		CreatedAt:      now,
	})
	if err != nil {
		return repository.Rental{}, fmt.Errorf("insert rental: %w", err)
	}

	if err := s.referrals.RewardFirstRental(ctx, qtx, rental); err != nil {
		return repository.Rental{}, err
	}
	if err := s.audit.Write(ctx, qtx, "rental", rental.ID, &userID, "opened", "", domain.RentalStatusActive, map[string]any{
		"amount_cents": amount,
		"currency":     currency,
	}); err != nil {
		return repository.Rental{}, err
	}
	observability.IncrementRentalEvent("opened")
	return rental, nil
}

func (s *RentalService) view(r repository.Rental) models.RentalView {
	now := s.now()
	v := models.RentalView{
		ID:             r.ID,
		Currency:       r.Currency,
		Amount:         r.Amount,
		ExpectedReturn: r.ExpectedReturn,
		Status:         r.Status,
		DurationDays:   r.DurationDays,
		CreatedAt:      r.CreatedAt,
		EndDate:        r.EndDate,
		CompletedAt:    r.CompletedAt,
	}
	if r.Status == domain.RentalStatusActive {
		remaining := r.EndDate.Sub(now)
		v.IsMature = remaining <= 0
		if remaining > 0 {
			v.DaysRemaining = int(math.Ceil(remaining.Hours() / 24))
		}
	}
	return v
}

func (s *RentalService) views(rentals []repository.Rental) []models.RentalView {
	out := make([]models.RentalView, 0, len(rentals))
	for _, r := range rentals {
		out = append(out, s.view(r))
	}
	return out
}

func (s *RentalService) List(ctx context.Context, userID uuid.UUID) ([]models.RentalView, error) {
	rentals, err := s.store.Queries().ListUserRentals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list rentals: %w", err)
	}
	return s.views(rentals), nil
}

// Get returns a rental visible to the owner or an admin.
func (s *RentalService) Get(ctx context.Context, userID uuid.UUID, isAdmin bool, rentalID uuid.UUID) (*models.RentalView, error) {
	rental, err := s.store.Queries().GetRental(ctx, rentalID)
	if err != nil {
		return nil, notFound(err, ErrRentalNotFound)
	}
	if rental.UserID != userID && !isAdmin {
		return nil, ErrRentalNotFound
	}
	view := s.view(rental)
	return &view, nil
}

func (s *RentalService) PendingReturns(ctx context.Context, userID uuid.UUID) (*PendingReturns, error) {
	total, count, err := s.store.Queries().SumPendingReturns(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("sum pending returns: %w", err)
	}
	return &PendingReturns{Currency: domain.BaseCurrency, TotalExpected: total, ActiveCount: count}, nil
}

// CompleteMatured settles up to limit rentals whose end date has passed and
// returns how many were completed. Each rental settles in its own
// transaction; rentals another worker holds are skipped, and rentals that
// cannot settle are stepped over so they do not starve the rest of the queue.
func (s *RentalService) CompleteMatured(ctx context.Context, limit int32) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	now := s.now().UTC()
	completed := 0
	var (
		cursor *repository.MaturedCursor
		errs   []error
	)
	for completed < int(limit) {
		page, err := s.store.Queries().ListMaturedRentals(ctx, now, cursor, limit)
		if err != nil {
			return completed, fmt.Errorf("list matured rentals: %w", err)
		}
		for _, ref := range page {
			if err := ctx.Err(); err != nil {
				return completed, err
			}
			cursor = &ref
			settled, err := s.settleMatured(ctx, ref.ID, now)
			if err != nil {
				zap.L().Error("matured rental settlement failed", zap.String("rental_id", ref.ID.String()), zap.Error(err))
				errs = append(errs, fmt.Errorf("rental %s: %w", ref.ID, err))
				continue
			}
			if settled {
				completed++
				if completed == int(limit) {
					break
				}
			}
		}
		if len(page) < int(limit) {
			break
		}
	}
	return completed, errors.Join(errs...)
}

// settleMatured completes one matured rental. It reports false when the
// rental was already settled, is held elsewhere, or its rental bucket cannot
// cover the principal.
func (s *RentalService) settleMatured(ctx context.Context, rentalID uuid.UUID, now time.Time) (bool, error) {
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		r, err := qtx.ClaimActiveRental(ctx, rentalID)
		if err != nil {
			return err
		}
		if r.EndDate.After(now) {
			return pgx.ErrNoRows
		}
		return s.complete(ctx, qtx, r, nil)
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case errors.Is(err, models.ErrInsufficientFunds):
		zap.L().Error("rental balance cannot cover matured principal; rental left active",
			zap.String("rental_id", rentalID.String()),
		)
		observability.IncrementRentalEvent("maturity_blocked")
		return false, nil
	default:
		return false, err
	}
}

// complete releases principal and yield and closes r. Runs on the caller's transaction.
func (s *RentalService) complete(ctx context.Context, qtx *repository.Queries, r repository.Rental, actorID *uuid.UUID) error {
	if !rentalTransitions.canTransition(r.Status, domain.RentalStatusCompleted) {
		return ErrRentalNotActive
	}
	yield := r.ExpectedReturn - r.Amount
	if _, err := s.ledger.ReleaseRental(ctx, qtx, r.UserID, r.Amount, yield, r.ID); err != nil {
		return err
	}
	rows, err := qtx.CloseRental(ctx, repository.CloseRentalParams{
		ID:          r.ID,
		Status:      domain.RentalStatusCompleted,
		CompletedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("close rental: %w", err)
	}
	if err := requireExactlyOne(rows, "close rental"); err != nil {
		return err
	}
	observability.IncrementRentalEvent("completed")
	return s.audit.Write(ctx, qtx, "rental", r.ID, actorID, "completed", r.Status, domain.RentalStatusCompleted, map[string]any{
		"principal_cents": r.Amount,
		"yield_cents":     yield,
	})
}

// ForceComplete settles an active rental regardless of its end date.
func (s *RentalService) ForceComplete(ctx context.Context, actorID, rentalID uuid.UUID) (*models.RentalView, error) {
	return s.closeByAdmin(ctx, rentalID, func(qtx *repository.Queries, r repository.Rental) error {
		return s.complete(ctx, qtx, r, &actorID)
	})
}

// Fail closes an active rental and refunds its principal without yield.
func (s *RentalService) Fail(ctx context.Context, actorID, rentalID uuid.UUID) (*models.RentalView, error) {
	return s.closeByAdmin(ctx, rentalID, func(qtx *repository.Queries, r repository.Rental) error {
		if !rentalTransitions.canTransition(r.Status, domain.RentalStatusFailed) {
			return ErrRentalNotActive
		}
		if _, err := s.ledger.RefundRental(ctx, qtx, r.UserID, r.Amount, r.ID); err != nil {
			return err
		}
		rows, err := qtx.CloseRental(ctx, repository.CloseRentalParams{
			ID:          r.ID,
			Status:      domain.RentalStatusFailed,
			CompletedAt: s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("close rental: %w", err)
		}
		if err := requireExactlyOne(rows, "close rental"); err != nil {
			return err
		}
		observability.IncrementRentalEvent("failed")
		return s.audit.Write(ctx, qtx, "rental", r.ID, &actorID, "failed", r.Status, domain.RentalStatusFailed, nil)
	})
}

func (s *RentalService) closeByAdmin(ctx context.Context, rentalID uuid.UUID, fn func(qtx *repository.Queries, r repository.Rental) error) (*models.RentalView, error) {
	var closed repository.Rental
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		r, err := qtx.GetRentalForUpdate(ctx, rentalID)
		if err != nil {
			return notFound(err, ErrRentalNotFound)
		}
		if err := fn(qtx, r); err != nil {
			return err
		}
		closed, err = qtx.GetRental(ctx, rentalID)
		if err != nil {
			return fmt.Errorf("reload rental: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	view := s.view(closed)
	return &view, nil
}

// ActiveRentals lists active rentals with aggregate numbers for admins.
func (s *RentalService) ActiveRentals(ctx context.Context, limit, offset int32) (*AdminActiveRentals, error) {
	limit, offset = clampPage(limit, offset)
	queries := s.store.Queries()
	summary, err := queries.GetActiveRentalSummary(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("active rental summary: %w", err)
	}
	rentals, err := queries.ListActiveRentals(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list active rentals: %w", err)
	}
	return &AdminActiveRentals{Summary: summary, Rentals: s.views(rentals)}, nil
}
