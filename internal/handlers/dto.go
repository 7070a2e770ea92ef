package handlers

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/streamr/backend/internal/models"
)

type userResponse struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email,omitempty"`
	SignedUp *time.Time `json:"signup_date,omitempty"`
}

// newUserResponse includes personal details only when private is set.
func newUserResponse(user models.User, private bool) userResponse {
	resp := userResponse{ID: user.ID, Username: user.Username}
	if private {
		created := user.CreatedAt
		resp.Email = user.Email
		resp.SignedUp = &created
	}
	return resp
}

type movieResponse struct {
	ID              string           `json:"id"`
	ExternalID      string           `json:"external_id"`
	Title           string           `json:"title"`
	Category        string           `json:"category"`
	Year            *int             `json:"year"`
	CoverImage      *string          `json:"cover_img"`
	DurationSeconds *int             `json:"duration_in_s"`
	IMDBRating      float64          `json:"imdb_rating"`
	IMDBVotes       int              `json:"imdb_votes"`
	Metascore       int              `json:"metascore"`
	NumberOfStreams int              `json:"number_of_streams"`
	DatetimeAdded   time.Time        `json:"datetime_added"`
	Streams         []streamResponse `json:"streams,omitempty"`
}

func newMovieResponse(movie models.Movie) movieResponse {
	return movieResponse{
		ID:              movie.ID,
		ExternalID:      movie.ExternalID,
		Title:           movie.Title,
		Category:        movie.Category,
		Year:            movie.Year,
		CoverImage:      movie.CoverImage,
		DurationSeconds: movie.DurationSeconds,
		IMDBRating:      movie.IMDBRating,
		IMDBVotes:       movie.IMDBVotes,
		Metascore:       movie.Metascore,
		NumberOfStreams: movie.NumberOfStreams,
		DatetimeAdded:   movie.CreatedAt,
	}
}

type streamResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	MovieID     string    `json:"movie_id"`
	CreatorID   string    `json:"creator_id"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"created_at"`
}

func newStreamResponse(stream models.Stream) streamResponse {
	return streamResponse{
		ID:          stream.ID,
		Name:        stream.Name,
		Description: stream.Description,
		MovieID:     stream.MovieID,
		CreatorID:   stream.CreatorID,
		Public:      stream.Public,
		CreatedAt:   stream.CreatedAt,
	}
}

func newStreamResponses(list []models.Stream) []streamResponse {
	out := make([]streamResponse, 0, len(list))
	for _, s := range list {
		out = append(out, newStreamResponse(s))
	}
	return out
}

type entryResponse struct {
	ID           string          `json:"id"`
	StreamID     string          `json:"stream_id"`
	EntryPointMS int             `json:"entry_point_in_ms"`
	Title        string          `json:"title"`
	ContentType  string          `json:"content_type"`
	Content      json.RawMessage `json:"content"`
	CreatedAt    time.Time       `json:"created_at"`
}

func newEntryResponse(entry models.Entry) entryResponse {
	return entryResponse{
		ID:           entry.ID,
		StreamID:     entry.StreamID,
		EntryPointMS: entry.EntryPointMS,
		Title:        entry.Title,
		ContentType:  entry.ContentType,
		Content:      json.RawMessage(entry.Content),
		CreatedAt:    entry.CreatedAt,
	}
}
