package container

import "errors"

var (
	// ErrCorrupt is returned when the container file is malformed.
	ErrCorrupt = errors.New("frame container corrupt")

	// ErrFrameRange is returned for a frame number outside [0, TotalFrames).
	ErrFrameRange = errors.New("frame number out of range")

	// ErrClosed is returned when using a closed Reader or Writer.
	ErrClosed = errors.New("frame container closed")
)
