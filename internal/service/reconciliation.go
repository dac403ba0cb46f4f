package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/liquifund/liquidity/internal/observability"
	"github.com/liquifund/liquidity/internal/repository"
	"go.uber.org/zap"
)

// ReconciliationService verifies that every wallet agrees with its entry
// journal and that the rental bucket matches the user's active rentals.
type ReconciliationService struct {
	store QueryStore
}

func NewReconciliationService(store QueryStore) *ReconciliationService {
	return &ReconciliationService{store: store}
}

// Drift describes one wallet that failed a check.
type Drift struct {
	UserID           uuid.UUID `json:"user_id"`
	Balance          int64     `json:"balance_cents"`
	RentalBalance    int64     `json:"rental_balance_cents"`
	EntriesAvailable int64     `json:"entries_available_cents"`
	EntriesRental    int64     `json:"entries_rental_cents"`
	ActiveRentals    int64     `json:"active_rentals_cents"`
	Checks           []string  `json:"failed_checks"`
}

type ReconciliationReport struct {
	Wallets       int64   `json:"wallets"`
	Balance       int64   `json:"balance_cents"`
	RentalBalance int64   `json:"rental_balance_cents"`
	Balanced      bool    `json:"balanced"`
	Drifts        []Drift `json:"drifts"`
}

// Run checks every wallet and reports the ones that drifted. Drift is logged
// and counted but never repaired automatically.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	queries := s.store.Queries()
	totals, err := queries.GetWalletTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load wallet totals: %w", err)
	}
	rows, err := queries.ListWalletDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("run wallet drift query: %w", err)
	}

	report := &ReconciliationReport{
		Wallets:       totals.Wallets,
		Balance:       totals.Balance,
		RentalBalance: totals.RentalBalance,
		Balanced:      len(rows) == 0,
		Drifts:        make([]Drift, 0, len(rows)),
	}
	for _, row := range rows {
		d := toDrift(row)
		for _, check := range d.Checks {
			observability.IncrementLedgerImbalance(check)
		}
		zap.L().Error("CRITICAL: wallet drift detected",
			zap.String("user_id", d.UserID.String()),
			zap.Strings("checks", d.Checks),
			zap.Int64("balance", d.Balance),
			zap.Int64("entries_available", d.EntriesAvailable),
			zap.Int64("rental_balance", d.RentalBalance),
			zap.Int64("entries_rental", d.EntriesRental),
			zap.Int64("active_rentals", d.ActiveRentals),
		)
		report.Drifts = append(report.Drifts, d)
	}

	if report.Balanced {
		zap.L().Info("ledger balanced", zap.Int64("wallets", totals.Wallets))
	}
	return report, nil
}

func toDrift(row repository.WalletDriftRow) Drift {
	d := Drift{
		UserID:           row.UserID,
		Balance:          row.Balance,
		RentalBalance:    row.RentalBalance,
		EntriesAvailable: row.EntriesAvailable,
		EntriesRental:    row.EntriesRental,
		ActiveRentals:    row.ActiveRentals,
	}
	if row.Balance != row.EntriesAvailable {
		d.Checks = append(d.Checks, "available_entries")
	}
	if row.RentalBalance != row.EntriesRental {
		d.Checks = append(d.Checks, "rental_entries")
	}
	if row.RentalBalance != row.ActiveRentals {
		d.Checks = append(d.Checks, "active_rentals")
	}
	return d
}
