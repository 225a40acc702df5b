package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Reader provides random access to the frames of a committed container.
// Get is safe for concurrent use.
type Reader struct {
	path        string
	file        *os.File
	compression Compression
	buildID     uuid.UUID
	entries     []entry
	zstd        *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

// Open reads the header and frame table of the container at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening container: %w", err)
	}

	r, err := newReader(path, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(path string, f *os.File) (*Reader, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container: %w", err)
	}
	size := st.Size()
	if size < headerSize+footerSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupt, size)
	}

	var hdr [headerSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorrupt, err)
	}
	if !bytes.Equal(hdr[0:4], headerMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(hdr[4:]); v != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	comp := Compression(hdr[6])
	if comp > CompressionZSTD {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, hdr[6])
	}
	buildID, err := uuid.FromBytes(hdr[8:24])
	if err != nil {
		return nil, fmt.Errorf("%w: build id: %v", ErrCorrupt, err)
	}

	var ftr [footerSize]byte
	if _, err := f.ReadAt(ftr[:], size-footerSize); err != nil {
		return nil, fmt.Errorf("%w: reading footer: %v", ErrCorrupt, err)
	}
	if !bytes.Equal(ftr[20:24], footerMagic[:]) {
		return nil, fmt.Errorf("%w: bad footer magic (incomplete write?)", ErrCorrupt)
	}
	tableOffset := binary.LittleEndian.Uint64(ftr[0:])
	count := binary.LittleEndian.Uint64(ftr[8:])
	tableCRC := binary.LittleEndian.Uint32(ftr[16:])

	tableEnd := uint64(size - footerSize)
	if tableOffset < headerSize || tableOffset > tableEnd || (tableEnd-tableOffset) != count*entrySize {
		return nil, fmt.Errorf("%w: frame table bounds", ErrCorrupt)
	}

	table := make([]byte, count*entrySize)
	if _, err := f.ReadAt(table, int64(tableOffset)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading frame table: %v", ErrCorrupt, err)
	}
	if crc32.Checksum(table, castagnoli) != tableCRC {
		return nil, fmt.Errorf("%w: frame table checksum", ErrCorrupt)
	}

	entries := make([]entry, count)
	dataEnd := tableOffset
	for i := range entries {
		e := readEntry(table[i*entrySize:])
		if e.offset < headerSize || e.offset+uint64(e.length) > dataEnd {
			return nil, fmt.Errorf("%w: frame %d outside data section", ErrCorrupt, i)
		}
		entries[i] = e
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &Reader{
		path:        path,
		file:        f,
		compression: comp,
		buildID:     buildID,
		entries:     entries,
		zstd:        dec,
	}, nil
}

// TotalFrames returns the number of frames in the container.
func (r *Reader) TotalFrames() int {
	return len(r.entries)
}

// BuildID returns the identifier written by the Writer that produced the file.
func (r *Reader) BuildID() string {
	return r.buildID.String()
}

// Compression returns the compression recorded in the header.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Path returns the file the Reader was opened from.
func (r *Reader) Path() string {
	return r.path
}

// Get returns frame n as a grayscale image.
func (r *Reader) Get(n int) (image.Image, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	if n < 0 || n >= len(r.entries) {
		return nil, fmt.Errorf("%w: %d (total %d)", ErrFrameRange, n, len(r.entries))
	}

	e := r.entries[n]
	block := make([]byte, e.length)
	if _, err := r.file.ReadAt(block, int64(e.offset)); err != nil {
		return nil, fmt.Errorf("%w: reading frame %d: %v", ErrCorrupt, n, err)
	}

	size := int(e.width) * int(e.height)
	pix, err := decompress(block, size, r.compression, e.flags&flagStored != 0, r.zstd)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", n, err)
	}
	if crc32.Checksum(pix, castagnoli) != e.crc {
		return nil, fmt.Errorf("%w: frame %d checksum", ErrCorrupt, n)
	}

	return &image.Gray{
		Pix:    pix,
		Stride: int(e.width),
		Rect:   image.Rect(0, 0, int(e.width), int(e.height)),
	}, nil
}

// Close releases the file handle. Further Get calls return ErrClosed.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.zstd.Close()
	return r.file.Close()
}
