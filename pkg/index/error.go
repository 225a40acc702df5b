package index

import "errors"

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCorrupt is returned when persisted index artifacts fail validation.
	ErrCorrupt = errors.New("index corrupt")

	// ErrVideoMismatch is returned when an index does not describe the frame
	// container it is loaded against.
	ErrVideoMismatch = errors.New("index does not match frame container")

	// ErrFrozen is returned by Insert once the index has been frozen.
	ErrFrozen = errors.New("index is frozen")

	// ErrUnknownType is returned for an unsupported index type or metric.
	ErrUnknownType = errors.New("unknown index type")
)
