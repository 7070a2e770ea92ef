// Package streams owns stream and entry lifecycles, including the
// private/public visibility state machine and its movie-level counter.
//
// Every guarded operation checks, in order: authentication, existence,
// ownership, then state. A caller who does not own a stream therefore never
// learns anything about its visibility.
package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/streamr/backend/internal/auth"
	"github.com/streamr/backend/internal/authz"
	"github.com/streamr/backend/internal/logging"
	"github.com/streamr/backend/internal/metrics"
	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/repositories"
)

// StreamStore persists streams. SetPublic and Delete must update the parent
// movie's published-stream counter in the same unit of work as the stream row.
type StreamStore interface {
	Create(ctx context.Context, stream models.Stream) error
	FindByID(ctx context.Context, id string) (models.Stream, error)
	Update(ctx context.Context, stream models.Stream) error
	// SetPublic flips the flag only if it currently differs from public and
	// reports whether it did.
	SetPublic(ctx context.Context, id string, public bool) (bool, error)
	// Delete removes the stream and its entries and returns the row as it was.
	Delete(ctx context.Context, id string) (models.Stream, error)
	ListForMovie(ctx context.Context, movieID, viewerID string) ([]models.Stream, error)
}

// EntryStore persists entries.
type EntryStore interface {
	Create(ctx context.Context, entry models.Entry) error
	FindByID(ctx context.Context, id string) (models.Entry, error)
	Update(ctx context.Context, entry models.Entry) error
	Delete(ctx context.Context, id string) error
	ListForStream(ctx context.Context, streamID string) ([]models.Entry, error)
}

// MovieLookup loads movies by id.
type MovieLookup interface {
	FindByID(ctx context.Context, id string) (models.Movie, error)
}

// Service implements stream and entry operations on behalf of an identity.
type Service struct {
	streams StreamStore
	entries EntryStore
	movies  MovieLookup
	now     func() time.Time
	newID   func() string
}

// NewService constructs a Service.
func NewService(streams StreamStore, entries EntryStore, movies MovieLookup) *Service {
	if streams == nil || entries == nil || movies == nil {
		panic("streams: service requires stream, entry and movie stores")
	}
	return &Service{
		streams: streams,
		entries: entries,
		movies:  movies,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// AuthorizeCreate reports whether the caller may add a stream under movieID.
// Handlers run it before reading the request body.
func (s *Service) AuthorizeCreate(ctx context.Context, identity auth.Identity, movieID string) error {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return err
	}
	if _, err := s.movies.FindByID(ctx, movieID); err != nil {
		return translate(err, "load movie")
	}
	return nil
}

// AuthorizeStream reports whether the caller owns the stream.
func (s *Service) AuthorizeStream(ctx context.Context, identity auth.Identity, id string) error {
	_, err := s.ownedStream(ctx, identity, id)
	return err
}

// AuthorizeEntry reports whether the caller owns the entry's parent stream.
func (s *Service) AuthorizeEntry(ctx context.Context, identity auth.Identity, id string) error {
	_, err := s.ownedEntry(ctx, identity, id)
	return err
}

// Create adds a private stream under movieID owned by the caller.
func (s *Service) Create(ctx context.Context, identity auth.Identity, movieID string, in StreamInput) (models.Stream, error) {
	if err := s.AuthorizeCreate(ctx, identity, movieID); err != nil {
		return models.Stream{}, err
	}
	if err := in.Validate(); err != nil {
		return models.Stream{}, err
	}

	stream := models.Stream{
		ID:          s.newID(),
		Name:        in.Name,
		Description: in.Description,
		MovieID:     movieID,
		CreatorID:   identity.UserID(),
		Public:      false,
		CreatedAt:   s.now(),
	}
	if err := s.streams.Create(ctx, stream); err != nil {
		return models.Stream{}, translate(err, "create stream")
	}

	logging.FromContext(ctx).Info("stream created", "streamId", stream.ID, "movieId", movieID)
	return stream, nil
}

// Get returns the stream if the caller may view it.
func (s *Service) Get(ctx context.Context, identity auth.Identity, id string) (models.Stream, error) {
	stream, err := s.loadStream(ctx, id)
	if err != nil {
		return models.Stream{}, err
	}
	if err := authz.RequireView(identity, stream); err != nil {
		return models.Stream{}, err
	}
	return stream, nil
}

// Update replaces the stream's name and description.
func (s *Service) Update(ctx context.Context, identity auth.Identity, id string, in StreamInput) (models.Stream, error) {
	stream, err := s.ownedStream(ctx, identity, id)
	if err != nil {
		return models.Stream{}, err
	}
	if err := in.Validate(); err != nil {
		return models.Stream{}, err
	}

	stream.Name = in.Name
	stream.Description = in.Description
	if err := s.streams.Update(ctx, stream); err != nil {
		return models.Stream{}, translate(err, "update stream")
	}
	return stream, nil
}

// Publish makes a private stream public and increments the movie counter.
func (s *Service) Publish(ctx context.Context, identity auth.Identity, id string) (models.Stream, error) {
	stream, err := s.transition(ctx, identity, id, true)
	metrics.RecordTransition("publish", outcome(err))
	return stream, err
}

// Unpublish makes a public stream private and decrements the movie counter.
func (s *Service) Unpublish(ctx context.Context, identity auth.Identity, id string) (models.Stream, error) {
	stream, err := s.transition(ctx, identity, id, false)
	metrics.RecordTransition("unpublish", outcome(err))
	return stream, err
}

func (s *Service) transition(ctx context.Context, identity auth.Identity, id string, public bool) (models.Stream, error) {
	stream, err := s.ownedStream(ctx, identity, id)
	if err != nil {
		return models.Stream{}, err
	}

	stateErr := ErrAlreadyPublic
	if !public {
		stateErr = ErrNotPublic
	}
	if stream.Public == public {
		return models.Stream{}, stateErr
	}

	changed, err := s.streams.SetPublic(ctx, id, public)
	if err != nil {
		return models.Stream{}, translate(err, "set stream visibility")
	}
	if !changed {
		// A concurrent request won the transition.
		return models.Stream{}, stateErr
	}

	stream.Public = public
	logging.FromContext(ctx).Info("stream visibility changed",
		slog.String("streamId", id),
		slog.String("movieId", stream.MovieID),
		slog.Bool("public", public),
	)
	return stream, nil
}

// Delete removes the stream and its entries. The movie counter is decremented
// only when the stream was public at deletion time.
func (s *Service) Delete(ctx context.Context, identity auth.Identity, id string) error {
	err := s.delete(ctx, identity, id)
	metrics.RecordTransition("delete", outcome(err))
	return err
}

func (s *Service) delete(ctx context.Context, identity auth.Identity, id string) error {
	if _, err := s.ownedStream(ctx, identity, id); err != nil {
		return err
	}

	removed, err := s.streams.Delete(ctx, id)
	if err != nil {
		return translate(err, "delete stream")
	}

	logging.FromContext(ctx).Info("stream deleted", "streamId", id, "movieId", removed.MovieID, "wasPublic", removed.Public)
	return nil
}

// ListForMovie returns the movie's public streams plus the caller's own private ones.
func (s *Service) ListForMovie(ctx context.Context, identity auth.Identity, movieID string) ([]models.Stream, error) {
	if _, err := s.movies.FindByID(ctx, movieID); err != nil {
		return nil, translate(err, "load movie")
	}

	streams, err := s.streams.ListForMovie(ctx, movieID, identity.UserID())
	if err != nil {
		return nil, translate(err, "list streams")
	}

	visible := streams[:0]
	for _, stream := range streams {
		if authz.CanView(identity, stream) == authz.ViewAllowed {
			visible = append(visible, stream)
		}
	}
	return visible, nil
}

// ListEntries returns the entries of a stream the caller may view.
func (s *Service) ListEntries(ctx context.Context, identity auth.Identity, streamID string) ([]models.Entry, error) {
	if _, err := s.Get(ctx, identity, streamID); err != nil {
		return nil, err
	}

	entries, err := s.entries.ListForStream(ctx, streamID)
	if err != nil {
		return nil, translate(err, "list entries")
	}
	return entries, nil
}

// CreateEntry adds an entry to a stream owned by the caller.
func (s *Service) CreateEntry(ctx context.Context, identity auth.Identity, streamID string, in EntryInput) (models.Entry, error) {
	if _, err := s.ownedStream(ctx, identity, streamID); err != nil {
		return models.Entry{}, err
	}
	if err := in.Validate(); err != nil {
		return models.Entry{}, err
	}

	entry := models.Entry{
		ID:           s.newID(),
		StreamID:     streamID,
		EntryPointMS: in.EntryPointMS,
		Title:        in.Title,
		ContentType:  in.ContentType,
		Content:      in.Content,
		CreatedAt:    s.now(),
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		return models.Entry{}, translate(err, "create entry")
	}
	return entry, nil
}

// GetEntry returns an entry whose parent stream the caller may view.
func (s *Service) GetEntry(ctx context.Context, identity auth.Identity, id string) (models.Entry, error) {
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return models.Entry{}, err
	}
	if _, err := s.Get(ctx, identity, entry.StreamID); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

// UpdateEntry replaces an entry's fields. Only the parent stream's creator may do so.
func (s *Service) UpdateEntry(ctx context.Context, identity auth.Identity, id string, in EntryInput) (models.Entry, error) {
	entry, err := s.ownedEntry(ctx, identity, id)
	if err != nil {
		return models.Entry{}, err
	}
	if err := in.Validate(); err != nil {
		return models.Entry{}, err
	}

	entry.EntryPointMS = in.EntryPointMS
	entry.Title = in.Title
	entry.ContentType = in.ContentType
	entry.Content = in.Content
	if err := s.entries.Update(ctx, entry); err != nil {
		return models.Entry{}, translate(err, "update entry")
	}
	return entry, nil
}

// DeleteEntry removes an entry. Only the parent stream's creator may do so.
func (s *Service) DeleteEntry(ctx context.Context, identity auth.Identity, id string) error {
	if _, err := s.ownedEntry(ctx, identity, id); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, id); err != nil {
		return translate(err, "delete entry")
	}
	return nil
}

func (s *Service) loadStream(ctx context.Context, id string) (models.Stream, error) {
	stream, err := s.streams.FindByID(ctx, id)
	if err != nil {
		return models.Stream{}, translate(err, "load stream")
	}
	return stream, nil
}

func (s *Service) loadEntry(ctx context.Context, id string) (models.Entry, error) {
	entry, err := s.entries.FindByID(ctx, id)
	if err != nil {
		return models.Entry{}, translate(err, "load entry")
	}
	return entry, nil
}

func (s *Service) ownedStream(ctx context.Context, identity auth.Identity, id string) (models.Stream, error) {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return models.Stream{}, err
	}
	stream, err := s.loadStream(ctx, id)
	if err != nil {
		return models.Stream{}, err
	}
	if err := authz.RequireOwner(identity, stream.CreatorID); err != nil {
		return models.Stream{}, err
	}
	return stream, nil
}

func (s *Service) ownedEntry(ctx context.Context, identity auth.Identity, id string) (models.Entry, error) {
	if err := authz.RequireAuthenticated(identity); err != nil {
		return models.Entry{}, err
	}
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return models.Entry{}, err
	}
	if _, err := s.ownedStream(ctx, identity, entry.StreamID); err != nil {
		return models.Entry{}, err
	}
	return entry, nil
}

func translate(err error, action string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", action, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, authz.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, authz.ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyPublic), errors.Is(err, ErrNotPublic):
		return "invalid_state"
	default:
		return "error"
	}
}
