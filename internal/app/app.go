package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamr/backend/internal/config"
	"github.com/streamr/backend/internal/db"
	"github.com/streamr/backend/internal/handlers"
	"github.com/streamr/backend/internal/httpserver"
	"github.com/streamr/backend/internal/logging"
	"github.com/streamr/backend/internal/middleware"
)

const backfillTimeout = 30 * time.Minute

// Run bootstraps the streamr backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve or backfill")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "serve":
		return serve(ctx, cfg, logger)
	case "backfill":
		return backfill(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, svc.HTTP)
	srv := httpserver.New(cfg.AppPort, middleware.RequestLogger(logger)(mux))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.AppPort)
		return srv.Run(gctx)
	})

	if svc.Backfill != nil {
		if err := svc.Backfill.Start(gctx, cfg.Enrichment.BackfillSchedule); err != nil {
			return err
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		return svc.Close(shutdownCtx)
	})

	return g.Wait()
}

// backfill runs a single metadata sweep and waits for the resulting jobs.
func backfill(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	if svc.Backfill == nil {
		return errors.New("backfill requires an OMDb API key")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := svc.Close(shutdownCtx); err != nil {
			logger.Error("stop enrichment workers", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, backfillTimeout)
	defer cancel()

	enqueued, err := svc.Backfill.RunOnce(ctx)
	if err != nil {
		return err
	}
	if err := svc.Dispatcher.WaitIdle(ctx); err != nil {
		return fmt.Errorf("wait for enrichment jobs: %w", err)
	}

	logger.Info("backfill finished", "enqueued", enqueued)
	return nil
}
