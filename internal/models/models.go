package models

import (
	"encoding/json"
	"time"
)

// User represents an account on the streamr platform.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Movie is the anchor that streams attach to. Most of its metadata is filled
// in asynchronously from OMDb.
type Movie struct {
	ID string
	// ExternalID is namespaced by source, e.g. "imdb:tt0499549".
	ExternalID      string
	Title           string
	Category        string
	Year            *int
	CoverImage      *string
	DurationSeconds *int
	IMDBRating      float64
	IMDBVotes       int
	Metascore       int
	// NumberOfStreams counts published streams only.
	NumberOfStreams int
	CreatedAt       time.Time
}

const (
	CategoryMovie   = "movie"
	CategoryEpisode = "episode"
)

// MovieMetadata carries the optional fields enrichment jobs discover for a movie.
// Nil fields are left untouched.
type MovieMetadata struct {
	CoverImage      *string
	DurationSeconds *int
	IMDBRating      *float64
	IMDBVotes       *int
	Metascore       *int
}

// Stream is a themed commentary track on a movie.
type Stream struct {
	ID          string
	Name        string
	Description string
	MovieID     string
	CreatorID   string
	Public      bool
	CreatedAt   time.Time
}

// Entry is a single annotation shown EntryPointMS milliseconds into the movie.
type Entry struct {
	ID           string
	StreamID     string
	EntryPointMS int
	Title        string
	ContentType  string
	Content      json.RawMessage
	CreatedAt    time.Time
}

// Stats summarises the size of the catalogue.
type Stats struct {
	Movies  int
	Streams int
	Entries int
}
