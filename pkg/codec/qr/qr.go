// Package qr implements the visual codec with QR codes: skip2/go-qrcode
// renders frames and gozxing reads them back.
package qr

import (
	"fmt"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	goqrcode "github.com/skip2/go-qrcode"

	"github.com/papercomputeco/memvid/pkg/codec"
)

const (
	// Name is the persisted name of the QR codec.
	Name = "qr"

	// DefaultErrorCorrection is the default recovery level.
	DefaultErrorCorrection = "M"

	// DefaultBoxSize is the default pixel size of one QR module.
	DefaultBoxSize = 4
)

// byteCapacity is the byte-mode capacity of a version 40 symbol per level.
var byteCapacity = map[string]int{
	"L": 2953,
	"M": 2331,
	"Q": 1663,
	"H": 1273,
}

var recoveryLevels = map[string]goqrcode.RecoveryLevel{
	"L": goqrcode.Low,
	"M": goqrcode.Medium,
	"Q": goqrcode.High,
	"H": goqrcode.Highest,
}

// Config holds configuration for the QR codec.
type Config struct {
	// ErrorCorrection is one of L, M, Q, H. Defaults to DefaultErrorCorrection.
	ErrorCorrection string

	// BoxSize is the pixel size of one module. Defaults to DefaultBoxSize.
	BoxSize int

	// DisableBorder drops the quiet zone around the symbol.
	DisableBorder bool
}

// Codec renders payloads as QR code frames.
type Codec struct {
	level         goqrcode.RecoveryLevel
	capacity      int
	boxSize       int
	disableBorder bool
}

// New creates a QR codec.
func New(c Config) (*Codec, error) {
	ec := strings.ToUpper(c.ErrorCorrection)
	if ec == "" {
		ec = DefaultErrorCorrection
	}

	level, ok := recoveryLevels[ec]
	if !ok {
		return nil, fmt.Errorf("unknown QR error correction level %q (expected L, M, Q or H)", c.ErrorCorrection)
	}

	boxSize := c.BoxSize
	if boxSize <= 0 {
		boxSize = DefaultBoxSize
	}

	return &Codec{
		level:         level,
		capacity:      byteCapacity[ec],
		boxSize:       boxSize,
		disableBorder: c.DisableBorder,
	}, nil
}

// Name returns Name.
func (c *Codec) Name() string { return Name }

// Capacity returns the byte-mode capacity of the largest symbol at the
// configured recovery level.
func (c *Codec) Capacity() int { return c.capacity }

// Encode renders payload as a QR symbol.
func (c *Codec) Encode(payload []byte) (image.Image, error) {
	if len(payload) > c.capacity {
		return nil, fmt.Errorf("%w: %d bytes > %d", codec.ErrCapacity, len(payload), c.capacity)
	}

	q, err := goqrcode.New(string(payload), c.level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrCapacity, err)
	}
	q.DisableBorder = c.disableBorder

	// A negative size makes every module boxSize pixels wide.
	return codec.ToGray(q.Image(-c.boxSize)), nil
}

// Decode reads a QR symbol. It first assumes a clean, axis-aligned symbol and
// falls back to full detection.
func (c *Codec) Decode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", codec.ErrDecode)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrDecode, err)
	}

	reader := zxingqr.NewQRCodeReader()
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_PURE_BARCODE:  true,
		gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
	}

	res, err := reader.Decode(bmp, hints)
	if err != nil {
		delete(hints, gozxing.DecodeHintType_PURE_BARCODE)
		hints[gozxing.DecodeHintType_TRY_HARDER] = true

		res, err = reader.Decode(bmp, hints)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", codec.ErrDecode, err)
		}
	}

	return []byte(res.GetText()), nil
}

var _ codec.Codec = (*Codec)(nil)
