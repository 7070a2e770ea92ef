package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/streamr/backend/internal/models"
	"github.com/streamr/backend/internal/repositories"
)

// memoryStore backs every store interface the handlers and stream service use.
type memoryStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	movies  map[string]models.Movie
	streams map[string]models.Stream
	entries map[string]models.Entry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:   map[string]models.User{},
		movies:  map[string]models.Movie{},
		streams: map[string]models.Stream{},
		entries: map[string]models.Entry{},
	}
}

func (s *memoryStore) addMovie(movie models.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[movie.ID] = movie
}

func (s *memoryStore) movie(id string) models.Movie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movies[id]
}

type memUsers struct{ s *memoryStore }

func (m memUsers) Create(_ context.Context, user models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	m.s.users[user.ID] = user
	return nil
}

func (m memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id })
}

func (m memUsers) FindByUsername(_ context.Context, username string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.Username == username })
}

func (m memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.Email == email })
}

func (m memUsers) find(match func(models.User) bool) (models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (m memUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.s.users[id] = u
	return nil
}

type memMovies struct{ s *memoryStore }

func (m memMovies) FindByID(_ context.Context, id string) (models.Movie, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	movie, ok := m.s.movies[id]
	if !ok {
		return models.Movie{}, repositories.ErrNotFound
	}
	return movie, nil
}

func (m memMovies) Search(_ context.Context, query string, limit int) ([]models.Movie, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Movie
	for _, movie := range m.s.movies {
		if strings.Contains(strings.ToLower(movie.Title), strings.ToLower(query)) {
			out = append(out, movie)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memStreams struct{ s *memoryStore }

func (m memStreams) Create(_ context.Context, stream models.Stream) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.streams[stream.ID] = stream
	return nil
}

func (m memStreams) FindByID(_ context.Context, id string) (models.Stream, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stream, ok := m.s.streams[id]
	if !ok {
		return models.Stream{}, repositories.ErrNotFound
	}
	return stream, nil
}

func (m memStreams) Update(_ context.Context, stream models.Stream) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	current, ok := m.s.streams[stream.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	current.Name = stream.Name
	current.Description = stream.Description
	m.s.streams[stream.ID] = current
	return nil
}

func (m memStreams) SetPublic(_ context.Context, id string, public bool) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stream, ok := m.s.streams[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if stream.Public == public {
		return false, nil
	}
	stream.Public = public
	m.s.streams[id] = stream

	movie := m.s.movies[stream.MovieID]
	if public {
		movie.NumberOfStreams++
	} else {
		movie.NumberOfStreams--
	}
	m.s.movies[movie.ID] = movie
	return true, nil
}

func (m memStreams) Delete(_ context.Context, id string) (models.Stream, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stream, ok := m.s.streams[id]
	if !ok {
		return models.Stream{}, repositories.ErrNotFound
	}
	delete(m.s.streams, id)
	for entryID, entry := range m.s.entries {
		if entry.StreamID == id {
			delete(m.s.entries, entryID)
		}
	}
	if stream.Public {
		movie := m.s.movies[stream.MovieID]
		movie.NumberOfStreams--
		m.s.movies[movie.ID] = movie
	}
	return stream, nil
}

func (m memStreams) ListForMovie(_ context.Context, movieID, viewerID string) ([]models.Stream, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Stream
	for _, stream := range m.s.streams {
		if stream.MovieID == movieID && (stream.Public || stream.CreatorID == viewerID) {
			out = append(out, stream)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memEntries struct{ s *memoryStore }

func (m memEntries) Create(_ context.Context, entry models.Entry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.entries[entry.ID] = entry
	return nil
}

func (m memEntries) FindByID(_ context.Context, id string) (models.Entry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	entry, ok := m.s.entries[id]
	if !ok {
		return models.Entry{}, repositories.ErrNotFound
	}
	return entry, nil
}

func (m memEntries) Update(_ context.Context, entry models.Entry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.entries[entry.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.s.entries[entry.ID] = entry
	return nil
}

func (m memEntries) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.entries[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.s.entries, id)
	return nil
}

func (m memEntries) ListForStream(_ context.Context, streamID string) ([]models.Entry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []models.Entry
	for _, entry := range m.s.entries {
		if entry.StreamID == streamID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryPointMS < out[j].EntryPointMS })
	return out, nil
}

type memStats struct{ s *memoryStore }

func (m memStats) Counts(context.Context) (models.Stats, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return models.Stats{Movies: len(m.s.movies), Streams: len(m.s.streams), Entries: len(m.s.entries)}, nil
}

type recordingSearch struct {
	mu      sync.Mutex
	queries []string
}

func (r *recordingSearch) TriggerSearch(_ context.Context, query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
}
