// Package codecutils is the visual codec utility package
package codecutils

import (
	"fmt"

	"github.com/papercomputeco/memvid/pkg/codec"
	"github.com/papercomputeco/memvid/pkg/codec/qr"
)

type NewCodecOpts struct {
	// Type is the codec name: "qr" or "raw".
	Type string

	ErrorCorrection string
	BoxSize         int
}

func NewCodec(o *NewCodecOpts) (codec.Codec, error) {
	switch o.Type {
	case qr.Name, "":
		return qr.New(qr.Config{
			ErrorCorrection: o.ErrorCorrection,
			BoxSize:         o.BoxSize,
		})
	case codec.RawName:
		return codec.NewRaw(0, 0), nil
	default:
		return nil, fmt.Errorf("unsupported codec type: %s", o.Type)
	}
}
