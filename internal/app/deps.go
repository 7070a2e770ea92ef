package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/config"
	"github.com/streamr/backend/internal/db"
	"github.com/streamr/backend/internal/enrichment"
	"github.com/streamr/backend/internal/handlers"
	"github.com/streamr/backend/internal/middleware"
	"github.com/streamr/backend/internal/repositories"
	"github.com/streamr/backend/internal/security"
	"github.com/streamr/backend/internal/storage"
	"github.com/streamr/backend/internal/streams"
)

// services holds the long-lived components built at startup.
type services struct {
	HTTP handlers.Dependencies
	// Dispatcher and Backfill are nil when no OMDb API key is configured.
	Dispatcher *enrichment.Dispatcher
	Backfill   *enrichment.Backfill
}

// Close stops the background workers.
func (s *services) Close(ctx context.Context) error {
	var errs []error
	if s.Backfill != nil {
		errs = append(errs, s.Backfill.Stop(ctx))
	}
	if s.Dispatcher != nil {
		errs = append(errs, s.Dispatcher.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// buildDependencies wires together concrete implementations used by the HTTP handlers
// and the enrichment workers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (*services, error) {
	hasher, err := security.NewHasher(cfg.HasherParams())
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	movies := repositories.NewPostgresMovieRepository(pool)
	streamRepo := repositories.NewPostgresStreamRepository(pool)
	entryRepo := repositories.NewPostgresEntryRepository(pool)

	svc := &services{
		HTTP: handlers.Dependencies{
			DB:       pool,
			Users:    users,
			Hasher:   hasher,
			Tokens:   tokens,
			Identity: auth.NewIdentityResolver(tokens, users),
			Movies:   movies,
			Streams:  streams.NewService(streamRepo, entryRepo, movies),
			Stats:    repositories.NewPostgresStatsRepository(pool),
			Limiter:  middleware.NewKeyedRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst),
		},
	}

	if cfg.OMDb.APIKey == "" {
		logger.Warn("omdb api key not configured, metadata enrichment disabled")
		return svc, nil
	}

	omdb := enrichment.NewOMDbClient(enrichment.OMDbConfig{
		BaseURL: cfg.OMDb.BaseURL,
		APIKey:  cfg.OMDb.APIKey,
		Timeout: cfg.OMDb.Timeout,
	}, &http.Client{Timeout: cfg.OMDb.Timeout})
	titles := enrichment.NewCachingTitles(omdb, cfg.OMDb.CacheSize, cfg.OMDb.CacheTTL)

	var covers enrichment.CoverStorage
	if cfg.ObjectStore.Bucket != "" {
		store, err := storage.NewCoverStore(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("configure cover store: %w", err)
		}
		covers = store
	}

	svc.Dispatcher = enrichment.NewDispatcher(omdb, titles, movies, covers, enrichment.DispatcherConfig{
		QueueSize: cfg.Enrichment.QueueSize,
		Workers:   cfg.Enrichment.Workers,
	}, logger)
	svc.Backfill = enrichment.NewBackfill(movies, svc.Dispatcher, cfg.Enrichment.BackfillBatch, logger)
	svc.HTTP.Search = svc.Dispatcher

	return svc, nil
}
