// Package cli holds the finledger command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/finledger/internal/app"
	"github.com/odyssey-erp/finledger/internal/platform/db"
)

var version = "0.1.0"

type runtime struct {
	cfg    *app.Config
	logger *slog.Logger
}

var rt runtime

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "finledger",
		Short: "Double-entry ledger, debt lifecycle and cashbox service",
		Long: `finledger keeps the general ledger, receivables and payables, installment
plans and the daily cashbox of a trading business.

Configuration is read from the environment (and an optional .env file).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			rt = runtime{cfg: cfg, logger: app.NewLogger(cfg)}
			return nil
		},
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newJobsCommand(), newTrialBalanceCommand())
	return root
}

// Execute runs the root command with a signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		logger := rt.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("command failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.New(ctx, rt.cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}
