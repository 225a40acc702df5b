package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Vector artifact layout (little-endian):
//
//	magic "MVIX" | version u16 | kind u8 | metric u8 | dim u32 | count u64 | nlist u32 | nprobe u32
//	record ids   count x u64
//	vectors      count x dim x f32
//	centroids    nlist x dim x f32              (ivf only)
//	lists        nlist x (len u32, len x u32)   (ivf only)
//	crc32c u32 over all preceding bytes

const (
	vecVersion    = 1
	vecHeaderSize = 28

	kindFlat uint8 = 1
	kindIVF  uint8 = 2
)

var (
	vecMagic   = [4]byte{'M', 'V', 'I', 'X'}
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

type vecHeader struct {
	kind   uint8
	metric Metric
	dim    int
	nlist  int
	nprobe int
}

type ivfLayout struct {
	centroids []float32
	lists     [][]int
}

func metricCode(m Metric) uint8 {
	if m == MetricL2 {
		return 2
	}
	return 1
}

func metricFromCode(c uint8) (Metric, error) {
	switch c {
	case 1:
		return MetricCosine, nil
	case 2:
		return MetricL2, nil
	default:
		return "", fmt.Errorf("%w: unknown metric code %d", ErrCorrupt, c)
	}
}

func writeVectors(w io.Writer, h vecHeader, keys []int, data []float32, layout *ivfLayout) error {
	crc := crc32.New(castagnoli)
	mw := io.MultiWriter(w, crc)

	var hdr [vecHeaderSize]byte
	copy(hdr[0:4], vecMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:], vecVersion)
	hdr[6] = h.kind
	hdr[7] = metricCode(h.metric)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(h.dim))
	binary.LittleEndian.PutUint64(hdr[12:], uint64(len(keys)))
	binary.LittleEndian.PutUint32(hdr[20:], uint32(h.nlist))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(h.nprobe))
	if _, err := mw.Write(hdr[:]); err != nil {
		return err
	}

	ids := make([]uint64, len(keys))
	for i, k := range keys {
		ids[i] = uint64(k)
	}
	if err := binary.Write(mw, binary.LittleEndian, ids); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, data); err != nil {
		return err
	}

	if h.kind == kindIVF && layout != nil {
		if err := binary.Write(mw, binary.LittleEndian, layout.centroids); err != nil {
			return err
		}
		for _, list := range layout.lists {
			members := make([]uint32, 0, len(list)+1)
			members = append(members, uint32(len(list)))
			for _, pos := range list {
				members = append(members, uint32(pos))
			}
			if err := binary.Write(mw, binary.LittleEndian, members); err != nil {
				return err
			}
		}
	}

	return binary.Write(w, binary.LittleEndian, crc.Sum32())
}

// decodeVectors parses a vector artifact and returns the backend it describes.
func decodeVectors(buf []byte) (backend, vecHeader, error) {
	var h vecHeader
	if len(buf) < vecHeaderSize+4 {
		return nil, h, fmt.Errorf("%w: vector file too small", ErrCorrupt)
	}

	body, trailer := buf[:len(buf)-4], buf[len(buf)-4:]
	if crc32.Checksum(body, castagnoli) != binary.LittleEndian.Uint32(trailer) {
		return nil, h, fmt.Errorf("%w: vector file checksum", ErrCorrupt)
	}
	if !bytes.Equal(body[0:4], vecMagic[:]) {
		return nil, h, fmt.Errorf("%w: bad vector file magic", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint16(body[4:]); v != vecVersion {
		return nil, h, fmt.Errorf("%w: unsupported vector file version %d", ErrCorrupt, v)
	}

	metric, err := metricFromCode(body[7])
	if err != nil {
		return nil, h, err
	}
	h = vecHeader{
		kind:   body[6],
		metric: metric,
		dim:    int(binary.LittleEndian.Uint32(body[8:])),
		nlist:  int(binary.LittleEndian.Uint32(body[20:])),
		nprobe: int(binary.LittleEndian.Uint32(body[24:])),
	}
	count := binary.LittleEndian.Uint64(body[12:])

	r := &sliceReader{buf: body[vecHeaderSize:]}
	if h.dim <= 0 || count > uint64(len(r.buf))/8 {
		return nil, h, fmt.Errorf("%w: vector file header", ErrCorrupt)
	}

	keys := make([]int, count)
	for i := range keys {
		keys[i] = int(r.u64())
	}
	data := r.f32s(int(count) * h.dim)
	if r.err != nil {
		return nil, h, r.err
	}

	switch h.kind {
	case kindFlat:
		if r.remaining() != 0 {
			return nil, h, fmt.Errorf("%w: trailing bytes in vector file", ErrCorrupt)
		}
		return &flat{dim: h.dim, metric: metric, keys: keys, data: data}, h, nil

	case kindIVF:
		x := &ivf{
			flat:   flat{dim: h.dim, metric: metric, keys: keys, data: data},
			nlist:  h.nlist,
			nprobe: h.nprobe,
		}
		x.centroids = r.f32s(h.nlist * h.dim)
		x.lists = make([][]int, h.nlist)
		seen := 0
		for c := range x.lists {
			n := int(r.u32())
			if r.err != nil || n > len(keys) {
				return nil, h, fmt.Errorf("%w: ivf list %d", ErrCorrupt, c)
			}
			list := make([]int, n)
			for i := range list {
				pos := int(r.u32())
				if pos >= len(keys) {
					return nil, h, fmt.Errorf("%w: ivf list %d member out of range", ErrCorrupt, c)
				}
				list[i] = pos
			}
			x.lists[c] = list
			seen += n
		}
		if r.err != nil {
			return nil, h, r.err
		}
		if seen != len(keys) || r.remaining() != 0 {
			return nil, h, fmt.Errorf("%w: ivf lists do not cover all vectors", ErrCorrupt)
		}
		return x, h, nil

	default:
		return nil, h, fmt.Errorf("%w: unknown vector file kind %d", ErrCorrupt, h.kind)
	}
}

type sliceReader struct {
	buf []byte
	err error
}

func (r *sliceReader) remaining() int { return len(r.buf) }

func (r *sliceReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.buf) {
		r.err = fmt.Errorf("%w: vector file truncated", ErrCorrupt)
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *sliceReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *sliceReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *sliceReader) f32s(n int) []float32 {
	b := r.take(n * 4)
	if b == nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
