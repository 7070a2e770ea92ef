package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamr/backend/internal/db"
	"github.com/streamr/backend/internal/models"
)

// PostgresStreamRepository provides PostgreSQL-backed persistence for streams.
// Visibility changes and deletions update the parent movie's published-stream
// counter in the same transaction as the stream row.
type PostgresStreamRepository struct {
	pool db.Pool
}

// NewPostgresStreamRepository constructs a stream repository backed by PostgreSQL.
func NewPostgresStreamRepository(pool db.Pool) *PostgresStreamRepository {
	return &PostgresStreamRepository{pool: pool}
}

const streamColumns = `id, name, description, movie_id, creator_id, public, created_at`

func scanStream(row rowScanner) (models.Stream, error) {
	var stream models.Stream
	err := row.Scan(&stream.ID, &stream.Name, &stream.Description, &stream.MovieID, &stream.CreatorID, &stream.Public, &stream.CreatedAt)
	stream.CreatedAt = stream.CreatedAt.UTC()
	return stream, err
}

// Create stores a new stream. Streams always start private.
func (r *PostgresStreamRepository) Create(ctx context.Context, stream models.Stream) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO streams (id, name, description, movie_id, creator_id, public, created_at)
        VALUES ($1, $2, $3, $4, $5, false, $6)
    `, stream.ID, stream.Name, stream.Description, stream.MovieID, stream.CreatorID, stream.CreatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert stream: %w", err)
	}

	return nil
}

// FindByID fetches a stream by id.
func (r *PostgresStreamRepository) FindByID(ctx context.Context, id string) (models.Stream, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Stream{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	stream, err := scanStream(conn.QueryRow(ctx, `SELECT `+streamColumns+` FROM streams WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return models.Stream{}, ErrNotFound
		}
		return models.Stream{}, fmt.Errorf("select stream: %w", err)
	}
	return stream, nil
}

// Update replaces the stream's name and description.
func (r *PostgresStreamRepository) Update(ctx context.Context, stream models.Stream) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE streams
        SET name = $2, description = $3
        WHERE id = $1
    `, stream.ID, stream.Name, stream.Description)
	if err != nil {
		return fmt.Errorf("update stream: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetPublic flips the visibility flag when it differs from public and adjusts
// the movie counter by one in the same transaction. It reports whether the
// flag changed; a false result with a nil error means the stream already had
// the requested visibility.
func (r *PostgresStreamRepository) SetPublic(ctx context.Context, id string, public bool) (bool, error) {
	var changed bool
	err := db.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		changed = false

		var movieID string
		err := tx.QueryRow(ctx, `
            UPDATE streams
            SET public = $2
            WHERE id = $1 AND public <> $2
            RETURNING movie_id
        `, id, public).Scan(&movieID)
		if isNoRows(err) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM streams WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("check stream exists: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("update stream visibility: %w", err)
		}

		delta := -1
		if public {
			delta = 1
		}
		if err := adjustStreamCounter(ctx, tx, movieID, delta); err != nil {
			return err
		}

		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// Delete removes the stream and its entries, decrementing the movie counter if
// the stream was public, and returns the removed row.
func (r *PostgresStreamRepository) Delete(ctx context.Context, id string) (models.Stream, error) {
	var removed models.Stream
	err := db.RunInTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM entries WHERE stream_id = $1`, id); err != nil {
			return fmt.Errorf("delete stream entries: %w", err)
		}

		stream, err := scanStream(tx.QueryRow(ctx, `DELETE FROM streams WHERE id = $1 RETURNING `+streamColumns, id))
		if err != nil {
			if isNoRows(err) {
				return ErrNotFound
			}
			return fmt.Errorf("delete stream: %w", err)
		}

		if stream.Public {
			if err := adjustStreamCounter(ctx, tx, stream.MovieID, -1); err != nil {
				return err
			}
		}

		removed = stream
		return nil
	})
	if err != nil {
		return models.Stream{}, err
	}
	return removed, nil
}

func adjustStreamCounter(ctx context.Context, tx pgx.Tx, movieID string, delta int) error {
	tag, err := tx.Exec(ctx, `
        UPDATE movies
        SET number_of_streams = number_of_streams + $2
        WHERE id = $1
    `, movieID, delta)
	if err != nil {
		return fmt.Errorf("adjust movie stream counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListForMovie returns the movie's public streams plus any private streams
// created by viewerID.
func (r *PostgresStreamRepository) ListForMovie(ctx context.Context, movieID, viewerID string) ([]models.Stream, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+streamColumns+`
        FROM streams
        WHERE movie_id = $1 AND (public OR creator_id = $2)
        ORDER BY created_at DESC, id ASC
    `, movieID, viewerID)
	if err != nil {
		return nil, fmt.Errorf("query streams: %w", err)
	}
	defer rows.Close()

	streams := []models.Stream{}
	for rows.Next() {
		stream, err := scanStream(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stream: %w", err)
		}
		streams = append(streams, stream)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate streams: %w", err)
	}

	return streams, nil
}
