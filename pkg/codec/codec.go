// Package codec defines the visual code boundary: payload bytes in, a
// single-frame image out, and back again.
package codec

import (
	"image"
	"image/draw"
)

// Codec renders payload bytes as a frame image and reads them back.
type Codec interface {
	// Encode renders payload as an image. It fails with ErrCapacity when
	// payload exceeds Capacity; it never truncates.
	Encode(payload []byte) (image.Image, error)

	// Decode reads the payload back from img. It fails with ErrDecode on
	// unreadable or corrupted input.
	Decode(img image.Image) ([]byte, error)

	// Capacity is the largest payload, in bytes, Encode accepts.
	Capacity() int

	// Name identifies the codec in persisted configuration.
	Name() string
}

// ToGray returns img as an 8-bit grayscale image, converting when needed.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}
