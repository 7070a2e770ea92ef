package enrichment

import "errors"

var (
	// ErrProviderUnavailable indicates the metadata provider is not configured or is shedding load.
	ErrProviderUnavailable = errors.New("movie metadata provider unavailable")
	// ErrTitleNotFound indicates OMDb has no record for the requested id.
	ErrTitleNotFound = errors.New("title not found")
	// ErrQueueFull indicates a job was dropped because the worker queue was full.
	ErrQueueFull = errors.New("enrichment queue full")

	errDispatcherClosed = errors.New("enrichment dispatcher closed")
)
