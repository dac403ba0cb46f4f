package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liquifund/liquidity/internal/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, cleanup, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if migrate {
				applied, err := db.Migrate(ctx, a.Pool)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				a.Logger.Info("migrations applied", zap.Strings("files", applied))
			}
			return a.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			applied, err := db.Migrate(cmd.Context(), a.Pool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintln(out, "applied", name)
			}
			return nil
		},
	}
}

func completeRentalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete-rentals",
		Short: "Pay out every rental that has reached its end date",
		Long: `Completes matured rentals in batches, crediting principal times the
return multiplier to each owner's available balance. Safe to run while the
server is up; rentals are claimed with row locks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			batch := a.Config.WorkerBatchSize
			total := 0
			for {
				n, err := a.Services.Rentals.CompleteMatured(cmd.Context(), batch)
				total += n
				if err != nil {
					return fmt.Errorf("completed %d rentals before failing: %w", total, err)
				}
				if n < int(batch) {
					break
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %d rentals\n", total)
			return nil
		},
	}
}

func promoteAdminCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "promote-admin",
		Short: "Grant the admin role to an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.Services.Users.PromoteAdmin(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the account to promote")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check every wallet against its journal and active rentals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := a.Services.Reconciliation.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Balanced {
				return fmt.Errorf("ledger drift in %d wallets", len(report.Drifts))
			}
			return nil
		},
	}
}
