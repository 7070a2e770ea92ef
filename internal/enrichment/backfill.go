package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/streamr/backend/internal/models"
)

// MissingMetadataLister finds movies that still need enrichment.
type MissingMetadataLister interface {
	ListMissingMetadata(ctx context.Context, limit int) ([]models.Movie, error)
}

// DetailsEnqueuer accepts details jobs.
type DetailsEnqueuer interface {
	EnqueueDetails(ctx context.Context, movieID string) error
}

// Backfill periodically sweeps movies lacking cover art or a duration and
// schedules details jobs for them.
type Backfill struct {
	movies  MissingMetadataLister
	jobs    DetailsEnqueuer
	batch   int
	logger  *slog.Logger
	cron    *cron.Cron
	running sync.Mutex
}

// NewBackfill constructs a Backfill that enqueues at most batch movies per sweep.
func NewBackfill(movies MissingMetadataLister, jobs DetailsEnqueuer, batch int, logger *slog.Logger) *Backfill {
	if batch <= 0 {
		batch = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfill{
		movies: movies,
		jobs:   jobs,
		batch:  batch,
		logger: logger,
	}
}

// RunOnce performs a single sweep and returns how many jobs were enqueued.
// Overlapping sweeps are skipped.
func (b *Backfill) RunOnce(ctx context.Context) (int, error) {
	if !b.running.TryLock() {
		b.logger.Info("backfill already running, skipping sweep")
		return 0, nil
	}
	defer b.running.Unlock()

	movies, err := b.movies.ListMissingMetadata(ctx, b.batch)
	if err != nil {
		return 0, fmt.Errorf("list movies missing metadata: %w", err)
	}

	var enqueued int
	for _, movie := range movies {
		if err := b.jobs.EnqueueDetails(ctx, movie.ID); err != nil {
			return enqueued, fmt.Errorf("enqueue details for %s: %w", movie.ID, err)
		}
		enqueued++
	}

	b.logger.Info("backfill sweep completed", "candidates", len(movies), "enqueued", enqueued)
	return enqueued, nil
}

// Start schedules sweeps using a standard cron expression or descriptor such as "@every 1h".
func (b *Backfill) Start(ctx context.Context, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := b.RunOnce(ctx); err != nil {
			b.logger.Error("backfill sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule backfill %q: %w", schedule, err)
	}

	b.cron = c
	c.Start()
	b.logger.Info("backfill scheduled", "schedule", schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (b *Backfill) Stop(ctx context.Context) error {
	if b.cron == nil {
		return nil
	}
	stopped := b.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
