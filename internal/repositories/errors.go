package repositories

import "errors"

var (
	// ErrNotFound is returned when a row, or a row it must reference, is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write hits a unique constraint, e.g. a taken username.
	ErrConflict = errors.New("record conflict")
)
