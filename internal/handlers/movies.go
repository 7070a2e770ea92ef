package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/streamr/backend/internal/auth"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// MovieHandler serves the movie catalogue.
type MovieHandler struct {
	Movies  MovieStore
	Streams StreamService
	Search  SearchTrigger
}

// List handles GET /movies?q=. A non-empty query also schedules an external
// search so later requests see newly discovered titles.
func (h MovieHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondMessage(ctx, w, http.StatusBadRequest, "limit must be a positive integer.")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	if query != "" && h.Search != nil {
		h.Search.TriggerSearch(ctx, query)
	}

	movies, err := h.Movies.Search(ctx, query, limit)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		resp = append(resp, newMovieResponse(m))
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]movieResponse{"movies": resp})
}

// Get handles GET /movies/{id} including the streams visible to the caller.
func (h MovieHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	movie, err := h.Movies.FindByID(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	visible, err := h.Streams.ListForMovie(ctx, auth.IdentityFromContext(ctx), id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	resp := newMovieResponse(movie)
	resp.Streams = newStreamResponses(visible)
	respondJSON(ctx, w, http.StatusOK, map[string]movieResponse{"movie": resp})
}
