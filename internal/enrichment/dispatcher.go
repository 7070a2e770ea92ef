package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/streamr/backend/internal/logging"
	"github.com/streamr/backend/internal/metrics"
	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/repositories"
)

const (
	jobSearch  = "search"
	jobDetails = "details"

	imdbPrefix = "imdb:"
)

// MovieStore persists the movies discovered and enriched by background jobs.
type MovieStore interface {
	Create(ctx context.Context, movie models.Movie) error
	FindByID(ctx context.Context, id string) (models.Movie, error)
	ExistingExternalIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	UpdateMetadata(ctx context.Context, id string, meta models.MovieMetadata) error
}

// CoverStorage mirrors cover art to durable storage and returns its public location.
type CoverStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// DispatcherConfig controls the concurrency characteristics of the dispatcher.
type DispatcherConfig struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Dispatcher runs search and details jobs on a bounded worker pool. Enqueueing
// never blocks a request: when the queue is full the job is dropped.
type Dispatcher struct {
	search SearchSource
	titles TitleSource
	movies MovieStore
	covers CoverStorage
	http   *http.Client
	logger *slog.Logger

	jobTimeout time.Duration
	newID      func() string

	jobs    chan job
	pending atomic.Int64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

type job struct {
	kind    string
	query   string
	movieID string
}

// NewDispatcher constructs and starts the worker pool. covers may be nil, in
// which case the OMDb poster URL is stored as-is.
func NewDispatcher(search SearchSource, titles TitleSource, movies MovieStore, covers CoverStorage, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.WithLogger(ctx, logger.With("component", "enrichment"))

	d := &Dispatcher{
		search:     search,
		titles:     titles,
		movies:     movies,
		covers:     covers,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		jobTimeout: cfg.JobTimeout,
		newID:      uuid.NewString,
		jobs:       make(chan job, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	return d
}

// TriggerSearch schedules an external search for query and returns immediately.
// Queries shorter than two characters are ignored.
func (d *Dispatcher) TriggerSearch(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return
	}
	if err := d.offer(job{kind: jobSearch, query: query}); err != nil {
		logging.FromContext(ctx).Warn("search trigger dropped", "query", query, "error", err)
	}
}

// EnqueueDetails schedules a metadata refresh for movieID, waiting for queue
// space until ctx is done.
func (d *Dispatcher) EnqueueDetails(ctx context.Context, movieID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return errDispatcherClosed
	default:
	}

	d.pending.Add(1)
	select {
	case <-ctx.Done():
		d.pending.Add(-1)
		return ctx.Err()
	case <-d.ctx.Done():
		d.pending.Add(-1)
		return errDispatcherClosed
	case d.jobs <- job{kind: jobDetails, movieID: movieID}:
		return nil
	}
}

func (d *Dispatcher) offer(j job) error {
	select {
	case <-d.ctx.Done():
		return errDispatcherClosed
	default:
	}

	d.pending.Add(1)
	select {
	case d.jobs <- j:
		return nil
	default:
		d.pending.Add(-1)
		metrics.EnrichmentQueueDropped.Inc()
		return ErrQueueFull
	}
}

// WaitIdle blocks until every accepted job, including jobs spawned by other
// jobs, has finished or ctx is done.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for d.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.ctx.Done():
			return errDispatcherClosed
		case <-ticker.C:
		}
	}
	return nil
}

// Shutdown stops accepting jobs, cancels in-flight jobs and waits for the workers to exit.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.once.Do(func() {
		d.cancel()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case j := <-d.jobs:
			d.handle(j)
			d.pending.Add(-1)
		}
	}
}

func (d *Dispatcher) handle(j job) {
	// Jobs outlive the request that triggered them but not the dispatcher.
	ctx, cancel := context.WithTimeout(d.ctx, d.jobTimeout)
	defer cancel()

	ctx, span := logging.StartSpan(ctx, "enrichment."+j.kind)
	defer span.End()

	var err error
	switch j.kind {
	case jobSearch:
		err = d.runSearch(ctx, j.query)
	case jobDetails:
		err = d.runDetails(ctx, j.movieID)
	default:
		err = fmt.Errorf("unknown job kind %q", j.kind)
	}

	metrics.RecordEnrichmentJob(j.kind, err)
	if err != nil {
		span.Fail(err)
		logging.FromContext(ctx).Warn("enrichment job failed", "kind", j.kind, "query", j.query, "movieId", j.movieID)
	}
}

func (d *Dispatcher) runSearch(ctx context.Context, query string) error {
	if d.search == nil || d.movies == nil {
		return ErrProviderUnavailable
	}

	results, err := d.search.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}

	candidates := make([]SearchResult, 0, len(results))
	externalIDs := make([]string, 0, len(results))
	for _, r := range results {
		if r.IMDbID == "" || (r.Type != models.CategoryMovie && r.Type != models.CategoryEpisode) {
			continue
		}
		candidates = append(candidates, r)
		externalIDs = append(externalIDs, imdbPrefix+r.IMDbID)
	}
	if len(candidates) == 0 {
		return nil
	}

	existing, err := d.movies.ExistingExternalIDs(ctx, externalIDs)
	if err != nil {
		return fmt.Errorf("load existing movies: %w", err)
	}

	var created int
	for _, r := range candidates {
		externalID := imdbPrefix + r.IMDbID
		if existing[externalID] {
			continue
		}
		existing[externalID] = true

		movie := models.Movie{
			ID:         d.newID(),
			ExternalID: externalID,
			Title:      r.Title,
			Category:   r.Type,
			CreatedAt:  time.Now().UTC(),
		}
		if year, ok := ParseYear(r.Year); ok {
			movie.Year = &year
		}

		if err := d.movies.Create(ctx, movie); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				continue
			}
			return fmt.Errorf("store movie %s: %w", externalID, err)
		}
		created++

		if err := d.offer(job{kind: jobDetails, movieID: movie.ID}); err != nil {
			logging.FromContext(ctx).Warn("details job dropped", "movieId", movie.ID, "error", err)
		}
	}

	logging.FromContext(ctx).Info("external search stored movies", "query", query, "results", len(results), "created", created)
	return nil
}

func (d *Dispatcher) runDetails(ctx context.Context, movieID string) error {
	if d.titles == nil || d.movies == nil {
		return ErrProviderUnavailable
	}

	movie, err := d.movies.FindByID(ctx, movieID)
	if err != nil {
		return fmt.Errorf("load movie: %w", err)
	}

	imdbID, ok := strings.CutPrefix(movie.ExternalID, imdbPrefix)
	if !ok {
		logging.FromContext(ctx).Info("skipping details for non-imdb movie", "movieId", movieID, "externalId", movie.ExternalID)
		return nil
	}

	details, err := d.titles.Title(ctx, imdbID)
	if err != nil {
		return fmt.Errorf("fetch title %s: %w", imdbID, err)
	}

	meta := metadataFromDetails(details)
	if meta.CoverImage != nil && d.covers != nil {
		location, err := d.mirrorCover(ctx, movie, *meta.CoverImage)
		if err != nil {
			logging.FromContext(ctx).Warn("cover mirroring failed, keeping upstream poster", "movieId", movieID, "error", err)
		} else {
			meta.CoverImage = &location
		}
	}

	if err := d.movies.UpdateMetadata(ctx, movieID, meta); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return nil
}

func (d *Dispatcher) mirrorCover(ctx context.Context, movie models.Movie, posterURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return "", fmt.Errorf("build poster request: %w", err)
	}

	res, err := d.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download poster: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download poster: unexpected status %d", res.StatusCode)
	}

	ext := path.Ext(req.URL.Path)
	if ext == "" {
		ext = ".jpg"
	}
	name := path.Join("covers", strings.ReplaceAll(movie.ExternalID, ":", "-")+ext)

	return d.covers.Save(ctx, name, io.LimitReader(res.Body, 10<<20))
}

func metadataFromDetails(details TitleDetails) models.MovieMetadata {
	var meta models.MovieMetadata
	if details.Poster != "" {
		poster := details.Poster
		meta.CoverImage = &poster
	}
	if seconds, ok := ParseRuntime(details.Runtime); ok {
		meta.DurationSeconds = &seconds
	}
	if rating, ok := parseRating(details.IMDbRating); ok {
		meta.IMDBRating = &rating
	}
	if votes, ok := ParseVotes(details.IMDbVotes); ok {
		meta.IMDBVotes = &votes
	}
	if score, ok := parseMetascore(details.Metascore); ok {
		meta.Metascore = &score
	}
	return meta
}
