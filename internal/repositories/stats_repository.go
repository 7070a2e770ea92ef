package repositories

import (
	"context"
	"fmt"

	"github.com/streamr/backend/internal/db"
	"github.com/streamr/backend/internal/models"
)

// PostgresStatsRepository reports catalogue-wide counts.
type PostgresStatsRepository struct {
	pool db.Pool
}

// NewPostgresStatsRepository constructs a stats repository backed by PostgreSQL.
func NewPostgresStatsRepository(pool db.Pool) *PostgresStatsRepository {
	return &PostgresStatsRepository{pool: pool}
}

// Counts returns the number of movies, streams and entries.
func (r *PostgresStatsRepository) Counts(ctx context.Context) (models.Stats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Stats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats models.Stats
	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT count(*) FROM movies),
            (SELECT count(*) FROM streams),
            (SELECT count(*) FROM entries)
    `).Scan(&stats.Movies, &stats.Streams, &stats.Entries)
	if err != nil {
		return models.Stats{}, fmt.Errorf("count catalogue: %w", err)
	}

	return stats, nil
}
