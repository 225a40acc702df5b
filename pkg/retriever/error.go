package retriever

import "errors"

var (
	// ErrNotReady is returned by every operation on a Retriever that is not
	// loaded, or has been closed.
	ErrNotReady = errors.New("retriever not ready")

	// ErrNotFound is returned for an unknown record id.
	ErrNotFound = errors.New("record not found")

	// ErrSearchTimeout is returned with a partial result when a search runs
	// past its deadline.
	ErrSearchTimeout = errors.New("search timed out")

	// ErrCodecMismatch is returned by Load when the memory was built with a
	// different visual codec than the Retriever decodes with.
	ErrCodecMismatch = errors.New("codec does not match memory")

	// ErrAlreadyLoaded is returned by Load on a Retriever that is already ready.
	ErrAlreadyLoaded = errors.New("retriever already loaded")
)
