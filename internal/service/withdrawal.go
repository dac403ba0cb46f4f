package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/liquifund/liquidity/internal/domain"
	"github.com/liquifund/liquidity/internal/models"
	"github.com/liquifund/liquidity/internal/notify"
	"github.com/liquifund/liquidity/internal/observability"
	"github.com/liquifund/liquidity/internal/repository"
	"go.uber.org/zap"
)

type WithdrawalConfig struct {
	MinAmount     int64
	EscalateAfter time.Duration
}

// WithdrawalService holds requested funds and walks withdrawals through the
// admin approval workflow.
type WithdrawalService struct {
	store    QueryStore
	ledger   *Ledger
	notifier notify.Notifier
	audit    *AuditService
	cfg      WithdrawalConfig
	now      func() time.Time
}

func NewWithdrawalService(store QueryStore, ledger *Ledger, notifier notify.Notifier, cfg WithdrawalConfig) *WithdrawalService {
	return &WithdrawalService{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		audit:    NewAuditService(),
		cfg:      cfg,
		now:      time.Now,
	}
}

type RequestWithdrawalRequest struct {
	UserID       uuid.UUID
	Amount       int64
	MobileNumber string
}

// Request validates and records a withdrawal, removing the amount from the
// available balance immediately.
func (s *WithdrawalService) Request(ctx context.Context, req RequestWithdrawalRequest) (*repository.Withdrawal, error) {
	if req.Amount <= 0 {
		return nil, invalid("amount", "must be greater than zero")
	}
	if req.Amount < s.cfg.MinAmount {
		return nil, fmt.Errorf("%w: minimum is %s", ErrWithdrawalBelowMin, domain.NewMoney(s.cfg.MinAmount))
	}
	mobile, err := domain.NormalizePhone(req.MobileNumber)
	if err != nil {
		return nil, invalid("mobile_number", "%v", err)
	}

	var withdrawal repository.Withdrawal
	err = s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		pending, err := qtx.CountPendingWithdrawalsForUser(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("count pending withdrawals: %w", err)
		}
		if pending > 0 {
			return ErrWithdrawalPending
		}

		id := uuid.New()
		if _, err := s.ledger.HoldWithdrawal(ctx, qtx, req.UserID, req.Amount, id); err != nil {
			return err
		}
		withdrawal, err = qtx.InsertWithdrawal(ctx, repository.InsertWithdrawalParams{
			ID:           id,
			UserID:       req.UserID,
			MobileNumber: mobile,
			Amount:       req.Amount,
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrWithdrawalPending
			}
			return fmt.Errorf("insert withdrawal: %w", err)
		}
		return s.audit.Write(ctx, qtx, "withdrawal", id, &req.UserID, "requested", "", domain.WithdrawalStatusPending, map[string]any{
			"amount_cents": req.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.RefreshQueueGauge(ctx)
	return &withdrawal, nil
}

// Transition moves a withdrawal to next on behalf of an admin. Rejection
// returns the held amount to the available balance.
func (s *WithdrawalService) Transition(ctx context.Context, actorID, withdrawalID uuid.UUID, next string) (*repository.Withdrawal, error) {
	next = normalizeState(next)
	var updated repository.Withdrawal
	var userID uuid.UUID
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		current, err := qtx.GetWithdrawalForUpdate(ctx, withdrawalID)
		if err != nil {
			return notFound(err, ErrWithdrawalNotFound)
		}
		userID = current.UserID
		if !withdrawalTransitions.canTransition(current.Status, next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, next)
		}

		processedAt := s.now().UTC()
		rows, err := qtx.UpdateWithdrawalStatus(ctx, repository.UpdateWithdrawalStatusParams{
			ID:          withdrawalID,
			Status:      next,
			ProcessedBy: &actorID,
			ProcessedAt: &processedAt,
			PrevStatus:  current.Status,
		})
		if err != nil {
			return fmt.Errorf("update withdrawal status: %w", err)
		}
		if err := requireExactlyOne(rows, "update withdrawal status"); err != nil {
			return err
		}

		if next == domain.WithdrawalStatusRejected {
			if _, err := s.ledger.RefundWithdrawal(ctx, qtx, current.UserID, current.Amount, withdrawalID); err != nil {
				return fmt.Errorf("refund withdrawal: %w", err)
			}
		}
		if err := s.audit.Write(ctx, qtx, "withdrawal", withdrawalID, &actorID, next, current.Status, next, nil); err != nil {
			return err
		}

		updated, err = qtx.GetWithdrawal(ctx, withdrawalID)
		if err != nil {
			return fmt.Errorf("reload withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.IncrementWithdrawalTransition(next)
	s.RefreshQueueGauge(ctx)
	s.notifyStatus(ctx, userID, updated)
	return &updated, nil
}

func (s *WithdrawalService) Approve(ctx context.Context, actorID, id uuid.UUID) (*repository.Withdrawal, error) {
	return s.Transition(ctx, actorID, id, domain.WithdrawalStatusApproved)
}

func (s *WithdrawalService) Process(ctx context.Context, actorID, id uuid.UUID) (*repository.Withdrawal, error) {
	return s.Transition(ctx, actorID, id, domain.WithdrawalStatusProcessing)
}

func (s *WithdrawalService) MarkPaid(ctx context.Context, actorID, id uuid.UUID) (*repository.Withdrawal, error) {
	return s.Transition(ctx, actorID, id, domain.WithdrawalStatusPaid)
}

func (s *WithdrawalService) Reject(ctx context.Context, actorID, id uuid.UUID) (*repository.Withdrawal, error) {
	return s.Transition(ctx, actorID, id, domain.WithdrawalStatusRejected)
}

func (s *WithdrawalService) notifyStatus(ctx context.Context, userID uuid.UUID, w repository.Withdrawal) {
	if s.notifier == nil {
		return
	}
	user, err := s.store.Queries().GetUser(ctx, userID)
	if err != nil {
		zap.L().Warn("withdrawal notification skipped", zap.Error(err), zap.String("withdrawal_id", w.ID.String()))
		return
	}
	if err := s.notifier.WithdrawalStatusChanged(ctx, user.Email, notify.WithdrawalNotice{
		ID:     w.ID.String(),
		Amount: domain.NewMoney(w.Amount).String(),
		Status: w.Status,
	}); err != nil {
		zap.L().Error("withdrawal notification failed", zap.Error(err), zap.String("withdrawal_id", w.ID.String()))
	}
}

// Escalate moves pending withdrawals older than the escalation window to
// processing so they surface in the admin queue.
func (s *WithdrawalService) Escalate(ctx context.Context, limit int32) (int, error) {
	escalated := 0
	err := s.store.RunInTx(ctx, func(qtx *repository.Queries) error {
		stale, err := qtx.ClaimStalePendingWithdrawals(ctx, s.now().UTC().Add(-s.cfg.EscalateAfter), limit)
		if err != nil {
			return fmt.Errorf("claim stale withdrawals: %w", err)
		}
		for _, w := range stale {
			rows, err := qtx.UpdateWithdrawalStatus(ctx, repository.UpdateWithdrawalStatusParams{
				ID:         w.ID,
				Status:     domain.WithdrawalStatusProcessing,
				PrevStatus: domain.WithdrawalStatusPending,
			})
			if err != nil {
				return fmt.Errorf("escalate withdrawal %s: %w", w.ID, err)
			}
			if err := requireExactlyOne(rows, "escalate withdrawal"); err != nil {
				return err
			}
			if err := s.audit.Write(ctx, qtx, "withdrawal", w.ID, nil, "escalated", domain.WithdrawalStatusPending, domain.WithdrawalStatusProcessing, nil); err != nil {
				return err
			}
			escalated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if escalated > 0 {
		zap.L().Warn("escalated stale pending withdrawals", zap.Int("count", escalated))
		observability.IncrementWithdrawalTransition("escalated")
	}
	s.RefreshQueueGauge(ctx)
	return escalated, nil
}

// RefreshQueueGauge publishes the number of pending withdrawals.
func (s *WithdrawalService) RefreshQueueGauge(ctx context.Context) {
	count, err := s.store.Queries().CountWithdrawalsByStatus(ctx, domain.WithdrawalStatusPending)
	if err != nil {
		zap.L().Warn("count pending withdrawals", zap.Error(err))
		return
	}
	observability.SetWithdrawalQueueSize(count)
}

func (s *WithdrawalService) History(ctx context.Context, userID uuid.UUID) ([]repository.Withdrawal, error) {
	items, err := s.store.Queries().ListUserWithdrawals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	if items == nil {
		items = []repository.Withdrawal{}
	}
	return items, nil
}

// List pages through withdrawals, oldest first, optionally by status.
func (s *WithdrawalService) List(ctx context.Context, status string, limit, offset int32) (*models.Page[repository.Withdrawal], error) {
	status = normalizeState(status)
	if status == "all" {
		status = ""
	}
	if status != "" {
		if _, ok := withdrawalTransitions[status]; !ok {
			return nil, invalid("status", "unknown withdrawal status %q", status)
		}
	}
	limit, offset = clampPage(limit, offset)
	queries := s.store.Queries()

	items, err := queries.ListWithdrawals(ctx, repository.ListWithdrawalsParams{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	total, err := queries.CountWithdrawalsByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("count withdrawals: %w", err)
	}
	if items == nil {
		items = []repository.Withdrawal{}
	}
	return &models.Page[repository.Withdrawal]{Items: items, Limit: limit, Offset: offset, Count: len(items), Total: total}, nil
}
