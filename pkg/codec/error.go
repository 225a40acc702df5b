package codec

import "errors"

var (
	// ErrCapacity is returned when a payload exceeds the codec's capacity.
	ErrCapacity = errors.New("payload exceeds codec capacity")

	// ErrDecode is returned when a frame cannot be decoded.
	ErrDecode = errors.New("frame decode failed")
)
