package handlers

import (
	"context"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/streams"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// PasswordHasher derives and checks password fingerprints.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, fingerprint string) bool
	DummyFingerprint() string
}

// TokenIssuer mints auth tokens for users.
type TokenIssuer interface {
	Issue(user models.User) (string, error)
}

// MovieStore captures the movie queries served over HTTP.
type MovieStore interface {
	FindByID(ctx context.Context, id string) (models.Movie, error)
	Search(ctx context.Context, query string, limit int) ([]models.Movie, error)
}

// SearchTrigger schedules an external catalogue search without blocking.
type SearchTrigger interface {
	TriggerSearch(ctx context.Context, query string)
}

// StatsStore reports catalogue sizes.
type StatsStore interface {
	Counts(ctx context.Context) (models.Stats, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StreamService applies ownership and visibility rules to streams and entries.
type StreamService interface {
	AuthorizeCreate(ctx context.Context, identity auth.Identity, movieID string) error
	AuthorizeStream(ctx context.Context, identity auth.Identity, id string) error
	AuthorizeEntry(ctx context.Context, identity auth.Identity, id string) error
	Create(ctx context.Context, identity auth.Identity, movieID string, in streams.StreamInput) (models.Stream, error)
	Get(ctx context.Context, identity auth.Identity, id string) (models.Stream, error)
	Update(ctx context.Context, identity auth.Identity, id string, in streams.StreamInput) (models.Stream, error)
	Publish(ctx context.Context, identity auth.Identity, id string) (models.Stream, error)
	Unpublish(ctx context.Context, identity auth.Identity, id string) (models.Stream, error)
	Delete(ctx context.Context, identity auth.Identity, id string) error
	ListForMovie(ctx context.Context, identity auth.Identity, movieID string) ([]models.Stream, error)
	ListEntries(ctx context.Context, identity auth.Identity, streamID string) ([]models.Entry, error)
	CreateEntry(ctx context.Context, identity auth.Identity, streamID string, in streams.EntryInput) (models.Entry, error)
	GetEntry(ctx context.Context, identity auth.Identity, id string) (models.Entry, error)
	UpdateEntry(ctx context.Context, identity auth.Identity, id string, in streams.EntryInput) (models.Entry, error)
	DeleteEntry(ctx context.Context, identity auth.Identity, id string) error
}
