package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streamr/backend/internal/db"
	"github.com/streamr/backend/internal/models"
)

// PostgresEntryRepository provides PostgreSQL-backed persistence for stream entries.
type PostgresEntryRepository struct {
	pool db.Pool
}

// NewPostgresEntryRepository constructs an entry repository backed by PostgreSQL.
func NewPostgresEntryRepository(pool db.Pool) *PostgresEntryRepository {
	return &PostgresEntryRepository{pool: pool}
}

const entryColumns = `id, stream_id, entry_point_ms, title, content_type, content, created_at`

func scanEntry(row rowScanner) (models.Entry, error) {
	var (
		entry   models.Entry
		content []byte
	)
	err := row.Scan(&entry.ID, &entry.StreamID, &entry.EntryPointMS, &entry.Title, &entry.ContentType, &content, &entry.CreatedAt)
	entry.Content = json.RawMessage(content)
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, err
}

// Create stores a new entry. An unknown stream yields ErrNotFound.
func (r *PostgresEntryRepository) Create(ctx context.Context, entry models.Entry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO entries (id, stream_id, entry_point_ms, title, content_type, content, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, entry.ID, entry.StreamID, entry.EntryPointMS, entry.Title, entry.ContentType, string(entry.Content), entry.CreatedAt)
	if err != nil {
		if mapped := mapWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert entry: %w", err)
	}

	return nil
}

// FindByID fetches an entry by id.
func (r *PostgresEntryRepository) FindByID(ctx context.Context, id string) (models.Entry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Entry{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	entry, err := scanEntry(conn.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return models.Entry{}, ErrNotFound
		}
		return models.Entry{}, fmt.Errorf("select entry: %w", err)
	}
	return entry, nil
}

// Update replaces an entry's mutable fields.
func (r *PostgresEntryRepository) Update(ctx context.Context, entry models.Entry) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE entries
        SET entry_point_ms = $2, title = $3, content_type = $4, content = $5
        WHERE id = $1
    `, entry.ID, entry.EntryPointMS, entry.Title, entry.ContentType, string(entry.Content))
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes an entry.
func (r *PostgresEntryRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ListForStream returns a stream's entries ordered by their entry point.
func (r *PostgresEntryRepository) ListForStream(ctx context.Context, streamID string) ([]models.Entry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+entryColumns+`
        FROM entries
        WHERE stream_id = $1
        ORDER BY entry_point_ms ASC, created_at ASC
    `, streamID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	return entries, nil
}
