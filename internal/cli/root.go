// Package cli defines the liquidity command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/liquifund/liquidity/internal/app"
	"github.com/liquifund/liquidity/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand builds the command tree. Running the root command without a
// subcommand serves the API.
func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "liquidity",
		Short: "Liquidity card rental backend",
		Long: `Liquidity serves the card rental API and runs its background jobs.

Configuration is read from the environment (and a .env file when present).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := serveCmd()
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		migrateCmd(),
		completeRentalsCmd(),
		promoteAdminCmd(),
		reconcileCmd(),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(version string) error {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// bootstrap loads configuration, installs the global logger and connects the
// application. The returned cleanup must be called once the command is done.
func bootstrap(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	undo := zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		undo()
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, func() {
		a.Close()
		undo()
		_ = logger.Sync()
	}, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
