package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/finledger/internal/app"
	"github.com/odyssey-erp/finledger/internal/observability"
	"github.com/odyssey-erp/finledger/internal/platform/cache"
	"github.com/odyssey-erp/finledger/internal/platform/db"
	"github.com/odyssey-erp/finledger/jobs"
	"github.com/odyssey-erp/finledger/migrations"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger := rt.cfg, rt.logger

	if cfg.MigrationsAuto {
		if err := db.Migrate(cfg.PGDSN, migrations.FS, db.Up, logger); err != nil {
			return err
		}
	}

	pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, overview cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	var inspector jobs.QueueInspector
	if redisClient != nil {
		ins := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer ins.Close()
		inspector = ins
	}

	metrics := observability.NewMetrics()
	services := app.NewServices(cfg, pool, redisClient, metrics, logger)
	params := services.RouterParams(cfg, pool, inspector)

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      app.NewRouter(params),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
