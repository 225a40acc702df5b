// Package container stores an ordered sequence of frames in a single file
// with random access by frame number.
//
// Layout:
//
//	header   magic "MVFC" | version u16 | compression u8 | reserved u8 | build id [16] | reserved [8]
//	frames   compressed grayscale pixel blocks, in append order
//	table    one entry per frame: offset u64 | length u32 | width u32 | height u32 | crc32c u32 | flags u32
//	footer   table offset u64 | frame count u64 | table crc32c u32 | magic "CFVM"
//
// All integers are little-endian. The CRC of a frame covers its uncompressed
// pixels. A frame whose block did not shrink under compression is stored
// uncompressed and flagged as such.
package container

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	formatVersion = 1

	headerSize = 32
	entrySize  = 28
	footerSize = 24
)

var (
	headerMagic = [4]byte{'M', 'V', 'F', 'C'}
	footerMagic = [4]byte{'C', 'F', 'V', 'M'}

	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

// Compression selects how frame pixels are compressed on disk.
type Compression uint8

const (
	// CompressionNone stores pixels as-is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fastest reads).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd (best ratio).
	CompressionZSTD Compression = 2
)

// String returns the configuration name of c.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd", "":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown container compression %q (expected zstd, lz4 or none)", s)
	}
}

type entry struct {
	offset uint64
	length uint32
	width  uint32
	height uint32
	crc    uint32
	flags  uint32
}

const flagStored uint32 = 1

func (e entry) put(b []byte) {
	binary.LittleEndian.PutUint64(b[0:], e.offset)
	binary.LittleEndian.PutUint32(b[8:], e.length)
	binary.LittleEndian.PutUint32(b[12:], e.width)
	binary.LittleEndian.PutUint32(b[16:], e.height)
	binary.LittleEndian.PutUint32(b[20:], e.crc)
	binary.LittleEndian.PutUint32(b[24:], e.flags)
}

func readEntry(b []byte) entry {
	return entry{
		offset: binary.LittleEndian.Uint64(b[0:]),
		length: binary.LittleEndian.Uint32(b[8:]),
		width:  binary.LittleEndian.Uint32(b[12:]),
		height: binary.LittleEndian.Uint32(b[16:]),
		crc:    binary.LittleEndian.Uint32(b[20:]),
		flags:  binary.LittleEndian.Uint32(b[24:]),
	}
}

var zstdEncoderPool sync.Pool

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

// compress returns the on-disk form of pix. stored reports that the block
// holds the pixels uncompressed.
func compress(pix []byte, c Compression) (block []byte, stored bool, err error) {
	switch c {
	case CompressionNone:
		return pix, true, nil

	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(pix)))
		n, err := lz4.CompressBlock(pix, buf, nil)
		if err != nil {
			return nil, false, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(pix) {
			return pix, true, nil
		}
		return buf[:n], false, nil

	case CompressionZSTD:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)
		out := enc.EncodeAll(pix, nil)
		if len(out) >= len(pix) {
			return pix, true, nil
		}
		return out, false, nil

	default:
		return nil, false, fmt.Errorf("unsupported compression %s", c)
	}
}

// decompress restores size bytes of pixels from block.
func decompress(block []byte, size int, c Compression, stored bool, dec *zstd.Decoder) ([]byte, error) {
	if stored || c == CompressionNone {
		if len(block) != size {
			return nil, fmt.Errorf("%w: stored block is %d bytes, want %d", ErrCorrupt, len(block), size)
		}
		return block, nil
	}

	switch c {
	case CompressionLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(block, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupt, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	case CompressionZSTD:
		out, err := dec.DecodeAll(block, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unsupported compression %s", ErrCorrupt, c)
	}
}
