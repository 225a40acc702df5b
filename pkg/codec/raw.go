package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
)

const (
	// RawName is the persisted name of the raw codec.
	RawName = "raw"

	// DefaultRawWidth is the pixel width of raw frames.
	DefaultRawWidth = 256

	// DefaultRawCapacity is the default payload capacity of raw frames.
	DefaultRawCapacity = 64 * 1024

	rawHeaderSize = 8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Raw is a lossless codec that lays payload bytes out as grayscale pixels,
// row by row, behind a length and CRC32-C header. It is much faster than a
// visual code and is used where frames never leave the container.
type Raw struct {
	width    int
	capacity int
}

// NewRaw creates a Raw codec. Non-positive arguments select the defaults.
func NewRaw(width, capacity int) *Raw {
	if width <= 0 {
		width = DefaultRawWidth
	}
	if capacity <= 0 {
		capacity = DefaultRawCapacity
	}
	return &Raw{width: width, capacity: capacity}
}

// Name returns RawName.
func (r *Raw) Name() string { return RawName }

// Capacity returns the maximum payload size.
func (r *Raw) Capacity() int { return r.capacity }

// Encode writes payload into a grayscale image.
func (r *Raw) Encode(payload []byte) (image.Image, error) {
	if len(payload) > r.capacity {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrCapacity, len(payload), r.capacity)
	}

	total := rawHeaderSize + len(payload)
	height := (total + r.width - 1) / r.width
	img := image.NewGray(image.Rect(0, 0, r.width, height))

	binary.BigEndian.PutUint32(img.Pix[0:], uint32(len(payload)))
	binary.BigEndian.PutUint32(img.Pix[4:], crc32.Checksum(payload, castagnoli))
	copy(img.Pix[rawHeaderSize:], payload)

	return img, nil
}

// Decode reads the payload back and verifies its checksum.
func (r *Raw) Decode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrDecode)
	}

	g := ToGray(img)
	pix := packedPix(g)
	if len(pix) < rawHeaderSize {
		return nil, fmt.Errorf("%w: image too small", ErrDecode)
	}

	n := int(binary.BigEndian.Uint32(pix[0:]))
	sum := binary.BigEndian.Uint32(pix[4:])
	if n > r.capacity || rawHeaderSize+n > len(pix) {
		return nil, fmt.Errorf("%w: bad length %d", ErrDecode, n)
	}

	payload := make([]byte, n)
	copy(payload, pix[rawHeaderSize:rawHeaderSize+n])
	if crc32.Checksum(payload, castagnoli) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrDecode)
	}

	return payload, nil
}

// packedPix returns the pixel rows of g without stride padding.
func packedPix(g *image.Gray) []byte {
	b := g.Bounds()
	if g.Stride == b.Dx() {
		return g.Pix
	}
	out := make([]byte, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		out = append(out, row...)
	}
	return out
}

var _ Codec = (*Raw)(nil)
