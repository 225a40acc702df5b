package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/papercomputeco/memvid/pkg/codec"
	"github.com/papercomputeco/memvid/pkg/logger"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Compression applied to each frame. Defaults to CompressionZSTD.
	Compression Compression

	// BuildID identifies this container. A random one is generated when zero.
	BuildID uuid.UUID

	Logger *slog.Logger
}

// Writer appends frames to a temporary file next to its destination and
// publishes it with Commit. Writers are not safe for concurrent use; frames
// are numbered in Append order.
type Writer struct {
	path    string
	tmpPath string
	file    *os.File
	buf     *bufio.Writer

	compression Compression
	buildID     uuid.UUID
	logger      *slog.Logger

	offset   uint64
	entries  []entry
	finished bool
	closed   bool
}

// Create starts a new container destined for path.
func Create(path string, opts WriterOptions) (*Writer, error) {
	if opts.Compression > CompressionZSTD {
		return nil, fmt.Errorf("unsupported compression %s", opts.Compression)
	}
	if opts.BuildID == uuid.Nil {
		opts.BuildID = uuid.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating container directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp container: %w", err)
	}

	w := &Writer{
		path:        path,
		tmpPath:     f.Name(),
		file:        f,
		buf:         bufio.NewWriterSize(f, 1<<20),
		compression: opts.Compression,
		buildID:     opts.BuildID,
		logger:      opts.Logger,
	}

	var hdr [headerSize]byte
	copy(hdr[0:4], headerMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:], formatVersion)
	hdr[6] = byte(opts.Compression)
	copy(hdr[8:24], opts.BuildID[:])
	if err := w.write(hdr[:]); err != nil {
		_ = w.Abort()
		return nil, err
	}

	return w, nil
}

// Append writes img as the next frame and returns its frame number.
func (w *Writer) Append(img image.Image) (int, error) {
	if w.closed || w.finished {
		return 0, ErrClosed
	}

	gray := codec.ToGray(img)
	b := gray.Bounds()
	pix := packPixels(gray)

	block, stored, err := compress(pix, w.compression)
	if err != nil {
		return 0, err
	}

	e := entry{
		offset: w.offset,
		length: uint32(len(block)),
		width:  uint32(b.Dx()),
		height: uint32(b.Dy()),
		crc:    crc32.Checksum(pix, castagnoli),
	}
	if stored {
		e.flags |= flagStored
	}

	if err := w.write(block); err != nil {
		return 0, err
	}
	w.entries = append(w.entries, e)

	return len(w.entries) - 1, nil
}

// Frames returns the number of frames appended so far.
func (w *Writer) Frames() int {
	return len(w.entries)
}

// BuildID returns the identifier recorded in the container header.
func (w *Writer) BuildID() uuid.UUID {
	return w.buildID
}

// Path returns the destination path.
func (w *Writer) Path() string {
	return w.path
}

// Finish writes the frame table and footer and syncs the temp file. The
// container is not visible at its destination until Commit.
func (w *Writer) Finish() error {
	if w.closed {
		return ErrClosed
	}
	if w.finished {
		return nil
	}

	tableOffset := w.offset
	table := make([]byte, len(w.entries)*entrySize)
	for i, e := range w.entries {
		e.put(table[i*entrySize:])
	}
	if err := w.write(table); err != nil {
		return err
	}

	var ftr [footerSize]byte
	binary.LittleEndian.PutUint64(ftr[0:], tableOffset)
	binary.LittleEndian.PutUint64(ftr[8:], uint64(len(w.entries)))
	binary.LittleEndian.PutUint32(ftr[16:], crc32.Checksum(table, castagnoli))
	copy(ftr[20:24], footerMagic[:])
	if err := w.write(ftr[:]); err != nil {
		return err
	}

	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flushing container: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing container: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing container: %w", err)
	}

	w.finished = true
	w.logger.Debug("container finished",
		"path", w.path,
		"frames", len(w.entries),
		"bytes", w.offset,
		"compression", w.compression.String(),
	)
	return nil
}

// Commit finishes the container if needed and atomically renames it to its
// destination, replacing any previous file.
func (w *Writer) Commit() error {
	if w.closed {
		return ErrClosed
	}
	if err := w.Finish(); err != nil {
		return err
	}

	if err := os.Rename(w.tmpPath, w.path); err != nil {
		return fmt.Errorf("publishing container: %w", err)
	}
	w.closed = true
	syncDir(filepath.Dir(w.path))

	w.logger.Info("container committed", "path", w.path, "frames", len(w.entries), "build_id", w.buildID.String())
	return nil
}

// Abort discards the temp file. It is safe to call after Commit, in which case
// it does nothing.
func (w *Writer) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if !w.finished {
		if err := w.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(w.tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (w *Writer) write(p []byte) error {
	n, err := w.buf.Write(p)
	w.offset += uint64(n)
	if err != nil {
		return fmt.Errorf("writing container: %w", err)
	}
	return nil
}

// packPixels returns the image's pixels without row padding.
func packPixels(g *image.Gray) []byte {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if g.Stride == w && len(g.Pix) == w*h {
		return g.Pix
	}
	out := make([]byte, w*h)
	for y := range h {
		copy(out[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
	}
	return out
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
