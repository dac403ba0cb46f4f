package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liquifund/liquidity/internal/service"
	"go.uber.org/zap"
)

// MaturityCompleter pays out rentals whose term has ended.
type MaturityCompleter interface {
	CompleteMatured(ctx context.Context, limit int32) (int, error)
}

// NewMaturityWorker completes matured rentals in batches until none remain.
func NewMaturityWorker(rentals MaturityCompleter, interval time.Duration, batch int32) *Worker {
	return New("rental_maturity", interval, func(ctx context.Context) error {
		total := 0
		for {
			n, err := rentals.CompleteMatured(ctx, batch)
			total += n
			if err != nil {
				return fmt.Errorf("complete matured rentals: %w", err)
			}
			if n < int(batch) || ctx.Err() != nil {
				break
			}
		}
		if total > 0 {
			zap.L().Info("matured rentals completed", zap.Int("count", total))
		}
		return nil
	})
}

type WithdrawalEscalator interface {
	Escalate(ctx context.Context, limit int32) (int, error)
	RefreshQueueGauge(ctx context.Context)
}

type PaymentExpirer interface {
	ExpireStale(ctx context.Context, limit int32) (int, error)
}

type IdempotencyPurger interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// NewSweepWorker moves stale pending withdrawals to processing, fails STK
// pushes that never received a callback and drops expired idempotency keys.
// Each step runs even when an earlier one fails.
func NewSweepWorker(withdrawals WithdrawalEscalator, payments PaymentExpirer, idem IdempotencyPurger, interval time.Duration, batch int32) *Worker {
	return New("sweep", interval, func(ctx context.Context) error {
		var errs []error

		escalated, err := withdrawals.Escalate(ctx, batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("escalate withdrawals: %w", err))
		}
		withdrawals.RefreshQueueGauge(ctx)

		expired, err := payments.ExpireStale(ctx, batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire payments: %w", err))
		}

		var purged int64
		if idem != nil {
			purged, err = idem.Purge(ctx, time.Now())
			if err != nil {
				errs = append(errs, fmt.Errorf("purge idempotency keys: %w", err))
			}
		}

		if escalated+expired > 0 || purged > 0 {
			zap.L().Info("sweep finished",
				zap.Int("withdrawals_escalated", escalated),
				zap.Int("payments_expired", expired),
				zap.Int64("idempotency_keys_purged", purged))
		}
		return errors.Join(errs...)
	})
}

// NewReconciliationWorker checks every wallet against its journal. Drift is
// reported by the service and never repaired here.
func NewReconciliationWorker(svc *service.ReconciliationService, interval time.Duration) *Worker {
	return New("reconciliation", interval, func(ctx context.Context) error {
		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		if !report.Balanced {
			zap.L().Warn("ledger drift detected", zap.Int("wallets", len(report.Drifts)))
		}
		return nil
	})
}
