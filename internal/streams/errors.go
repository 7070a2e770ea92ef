package streams

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the stream, entry or movie does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyPublic indicates a publish request for a stream that is already public.
	ErrAlreadyPublic = errors.New("stream is already public")
	// ErrNotPublic indicates an unpublish request for a stream that is private.
	ErrNotPublic = errors.New("stream is not public")
)

// ValidationError reports rejected input fields with a message per field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return strings.Join(parts, "; ")
}
