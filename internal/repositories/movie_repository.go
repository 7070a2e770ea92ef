package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamr/backend/internal/db"
	"github.com/streamr/backend/internal/models"
)

// MovieRepository defines data access for movies and their metadata.
type MovieRepository interface {
	Create(ctx context.Context, movie models.Movie) error
	FindByID(ctx context.Context, id string) (models.Movie, error)
	FindByExternalID(ctx context.Context, externalID string) (models.Movie, error)
	Search(ctx context.Context, query string, limit int) ([]models.Movie, error)
	ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	UpdateMetadata(ctx context.Context, id string, meta models.MovieMetadata) error
	ListMissingMetadata(ctx context.Context, limit int) ([]models.Movie, error)
}

// PostgresMovieRepository provides PostgreSQL-backed persistence for movies.
type PostgresMovieRepository struct {
	pool db.Pool
}

// NewPostgresMovieRepository constructs a movie repository backed by PostgreSQL.
func NewPostgresMovieRepository(pool db.Pool) *PostgresMovieRepository {
	return &PostgresMovieRepository{pool: pool}
}

const movieColumns = `id, external_id, title, category, year, cover_image, duration_seconds,
        imdb_rating, imdb_votes, metascore, number_of_streams, created_at`

func scanMovie(row rowScanner) (models.Movie, error) {
	var movie models.Movie
	err := row.Scan(
		&movie.ID, &movie.ExternalID, &movie.Title, &movie.Category, &movie.Year, &movie.CoverImage,
		&movie.DurationSeconds, &movie.IMDBRating, &movie.IMDBVotes, &movie.Metascore,
		&movie.NumberOfStreams, &movie.CreatedAt,
	)
	movie.CreatedAt = movie.CreatedAt.UTC()
	return movie, err
}

// Create persists a new movie. A duplicate external id yields ErrConflict.
func (r *PostgresMovieRepository) Create(ctx context.Context, movie models.Movie) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	category := movie.Category
	if category == "" {
		category = models.CategoryMovie
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO movies (id, external_id, title, category, year, cover_image, duration_seconds,
                            imdb_rating, imdb_votes, metascore, number_of_streams, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)
    `, movie.ID, movie.ExternalID, movie.Title, category, movie.Year, movie.CoverImage, movie.DurationSeconds,
		movie.IMDBRating, movie.IMDBVotes, movie.Metascore, movie.CreatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert movie: %w", err)
	}

	return nil
}

// FindByID fetches a movie by id.
func (r *PostgresMovieRepository) FindByID(ctx context.Context, id string) (models.Movie, error) {
	return r.findOne(ctx, "id", id)
}

// FindByExternalID fetches a movie by its namespaced external id.
func (r *PostgresMovieRepository) FindByExternalID(ctx context.Context, externalID string) (models.Movie, error) {
	return r.findOne(ctx, "external_id", externalID)
}

func (r *PostgresMovieRepository) findOne(ctx context.Context, column, value string) (models.Movie, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Movie{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	movie, err := scanMovie(conn.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies WHERE `+column+` = $1`, value))
	if err != nil {
		if isNoRows(err) {
			return models.Movie{}, ErrNotFound
		}
		return models.Movie{}, fmt.Errorf("select movie by %s: %w", column, err)
	}
	return movie, nil
}

// Search returns movies whose title contains query, most streamed first.
func (r *PostgresMovieRepository) Search(ctx context.Context, query string, limit int) ([]models.Movie, error) {
	if limit <= 0 {
		limit = 50
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	rows, err := conn.Query(ctx, `
        SELECT `+movieColumns+`
        FROM movies
        WHERE title ILIKE $1
        ORDER BY number_of_streams DESC, title ASC
        LIMIT $2
    `, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	movies := []models.Movie{}
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}

	return movies, nil
}

// ExistingExternalIDs reports which of the provided external ids are already stored.
func (r *PostgresMovieRepository) ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return existing, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT external_id FROM movies WHERE external_id = ANY($1)`, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("query external ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate external ids: %w", err)
	}

	return existing, nil
}

// UpdateMetadata applies enrichment results. Nil fields leave the stored value untouched.
func (r *PostgresMovieRepository) UpdateMetadata(ctx context.Context, id string, meta models.MovieMetadata) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE movies
        SET cover_image = COALESCE($2, cover_image),
            duration_seconds = COALESCE($3, duration_seconds),
            imdb_rating = COALESCE($4, imdb_rating),
            imdb_votes = COALESCE($5, imdb_votes),
            metascore = COALESCE($6, metascore)
        WHERE id = $1
    `, id, meta.CoverImage, meta.DurationSeconds, meta.IMDBRating, meta.IMDBVotes, meta.Metascore)
	if err != nil {
		return fmt.Errorf("update movie metadata: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListMissingMetadata returns movies that still lack cover art or a duration.
func (r *PostgresMovieRepository) ListMissingMetadata(ctx context.Context, limit int) ([]models.Movie, error) {
	if limit <= 0 {
		limit = 100
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+movieColumns+`
        FROM movies
        WHERE cover_image IS NULL OR duration_seconds IS NULL
        ORDER BY created_at ASC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query movies missing metadata: %w", err)
	}
	defer rows.Close()

	var movies []models.Movie
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movie: %w", err)
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies missing metadata: %w", err)
	}

	return movies, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ MovieRepository = (*PostgresMovieRepository)(nil)
