package index

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/papercomputeco/memvid/pkg/logger"
)

const metadataVersion = 1

// FrameSource is the part of a frame container an index is checked against.
type FrameSource interface {
	TotalFrames() int
	BuildID() string
}

// ContainerInfo identifies the frame container an index is saved for.
type ContainerInfo struct {
	BuildID     string `json:"build_id"`
	TotalFrames int    `json:"total_frames"`

	// Codec names the visual codec the frames were rendered with.
	Codec string `json:"codec,omitempty"`
}

type embeddingDoc struct {
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension"`
}

type indexDoc struct {
	Type   Type   `json:"type"`
	Metric Metric `json:"metric"`
	NList  int    `json:"nlist,omitempty"`
	NProbe int    `json:"nprobe,omitempty"`
}

type configDoc struct {
	Embedding embeddingDoc `json:"embedding"`
	Index     indexDoc     `json:"index"`
}

type artifactDoc struct {
	File   string `json:"file"`
	Size   int64  `json:"size"`
	CRC32C string `json:"crc32c"`
}

type metadataDoc struct {
	Version        int           `json:"version"`
	CreatedAt      time.Time     `json:"created_at"`
	Metadata       []RecordInfo  `json:"metadata"`
	RecordToFrame  map[int]int   `json:"record_to_frame"`
	FrameToRecords map[int][]int `json:"frame_to_records"`
	Config         configDoc     `json:"config"`
	Vectors        artifactDoc   `json:"vectors"`
	Container      ContainerInfo `json:"container"`
}

// MetadataPath returns the metadata artifact path for base.
func MetadataPath(base string) string {
	return base + ".json"
}

// VectorPath returns the vector artifact path for base and index type t.
func VectorPath(base string, t Type) string {
	return base + t.artifactExt()
}

// Save freezes the index and writes <base>.json plus the vector artifact.
// Both files are staged under temp names first; nothing at base changes
// unless both were written.
func (m *Manager) Save(base string, c ContainerInfo) error {
	st, err := m.Stage(base, c)
	if err != nil {
		return err
	}
	return st.Publish()
}

// Staged is a saved index whose files still sit under temp names beside
// their final paths. Publish moves them into place; Discard removes them.
type Staged struct {
	base   string
	files  []stagedFile
	logger *slog.Logger
}

type stagedFile struct {
	tmp, path string
	published bool
}

// Stage freezes the index and writes both artifacts for base under temp
// names. The metadata already names the final vector artifact, so the pair
// is valid once published. Existing artifacts at base are not touched.
func (m *Manager) Stage(base string, c ContainerInfo) (*Staged, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.freezeLocked(); err != nil {
		return nil, err
	}
	if m.backend == nil {
		return nil, errors.New("cannot save an empty index")
	}
	if err := m.checkFrames(c.TotalFrames); err != nil {
		return nil, err
	}

	vecPath := VectorPath(base, m.cfg.Type)
	metaPath := MetadataPath(base)
	for _, p := range []string{vecPath, metaPath} {
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			return nil, fmt.Errorf("index artifact %s is a directory", p)
		}
	}

	st := &Staged{base: base, logger: m.logger}

	var vecTmp string
	var err error
	if streamed(m.backend) {
		vecTmp, err = stageWrite(vecPath, func(w io.Writer) error {
			return m.backend.persist(w, "")
		})
	} else {
		vecTmp, err = stageFile(vecPath, func(tmp string) error {
			return m.backend.persist(nil, tmp)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("writing vector artifact: %w", err)
	}
	st.files = append(st.files, stagedFile{tmp: vecTmp, path: vecPath})

	size, sum, err := fileChecksum(vecTmp)
	if err != nil {
		st.Discard()
		return nil, err
	}

	doc := metadataDoc{
		Version:   metadataVersion,
		CreatedAt: time.Now().UTC(),
		Metadata:  make([]RecordInfo, 0, len(m.order)),
		Config: configDoc{
			Embedding: embeddingDoc{Model: m.cfg.Model, Dimension: m.cfg.Dimension},
			Index:     indexDoc{Type: m.cfg.Type, Metric: m.cfg.Metric},
		},
		Vectors: artifactDoc{
			File:   filepath.Base(vecPath),
			Size:   size,
			CRC32C: fmt.Sprintf("%08x", sum),
		},
		Container:      c,
		RecordToFrame:  make(map[int]int, len(m.records)),
		FrameToRecords: make(map[int][]int, len(m.frames)),
	}
	if m.cfg.Type == TypeIVF {
		doc.Config.Index.NList = m.cfg.NList
		doc.Config.Index.NProbe = m.cfg.NProbe
	}

	ids := slices.Clone(m.order)
	slices.Sort(ids)
	for _, id := range ids {
		r := m.records[id]
		doc.Metadata = append(doc.Metadata, *r)
		doc.RecordToFrame[id] = r.Frame
	}
	for f, ids := range m.frames {
		doc.FrameToRecords[f] = ids
	}

	metaTmp, err := stageWrite(metaPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	})
	if err != nil {
		st.Discard()
		return nil, fmt.Errorf("writing index metadata: %w", err)
	}
	st.files = append(st.files, stagedFile{tmp: metaTmp, path: metaPath})
	m.container = c

	m.logger.Debug("index staged",
		"base", base,
		"type", string(m.cfg.Type),
		"records", len(m.records),
		"frames", len(m.frames),
	)
	return st, nil
}

// Publish renames the staged files into place, vector artifact first, so a
// crash never leaves metadata pointing at a missing artifact. If a rename
// fails, files already published by this call are removed along with the
// remaining temps.
func (s *Staged) Publish() error {
	for i := range s.files {
		f := &s.files[i]
		if err := os.Rename(f.tmp, f.path); err != nil {
			s.unpublish()
			s.Discard()
			return fmt.Errorf("publishing %s: %w", f.path, err)
		}
		f.published = true
	}
	syncDir(filepath.Dir(s.base))

	s.logger.Info("index saved", "base", s.base)
	return nil
}

// Discard removes any staged files that were not published.
func (s *Staged) Discard() {
	for _, f := range s.files {
		if !f.published {
			_ = os.Remove(f.tmp)
		}
	}
}

func (s *Staged) unpublish() {
	for i := range s.files {
		f := &s.files[i]
		if f.published {
			_ = os.Remove(f.path)
			f.published = false
		}
	}
}

// checkFrames verifies that frames 0..total-1 are each referenced.
func (m *Manager) checkFrames(total int) error {
	if len(m.frames) != total {
		return fmt.Errorf("%w: index refers to %d frames, container has %d", ErrVideoMismatch, len(m.frames), total)
	}
	for f, ids := range m.frames {
		if len(ids) == 0 {
			return fmt.Errorf("frame %d holds no records", f)
		}
	}
	return nil
}

// LoadOptions configures Load.
type LoadOptions struct {
	// NProbe overrides the persisted IVF nprobe when positive.
	NProbe int

	Logger *slog.Logger
}

// Load reads the artifacts written by Save and validates them. When src is
// non-nil the index must describe exactly that container.
func Load(base string, src FrameSource, opts LoadOptions) (*Manager, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	raw, err := os.ReadFile(MetadataPath(base))
	if err != nil {
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}
	var doc metadataDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata: %v", ErrCorrupt, err)
	}
	if doc.Version != metadataVersion {
		return nil, fmt.Errorf("%w: unsupported metadata version %d", ErrCorrupt, doc.Version)
	}

	t, err := ParseType(string(doc.Config.Index.Type))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	metric, err := ParseMetric(string(doc.Config.Index.Metric))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	dim := doc.Config.Embedding.Dimension
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrCorrupt, dim)
	}

	frames, err := denseFrames(doc.FrameToRecords)
	if err != nil {
		return nil, err
	}

	vecPath := filepath.Join(filepath.Dir(base), doc.Vectors.File)
	if doc.Vectors.File != filepath.Base(VectorPath(base, t)) {
		return nil, fmt.Errorf("%w: vector artifact %q does not belong to %s", ErrCorrupt, doc.Vectors.File, base)
	}
	size, sum, err := fileChecksum(vecPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if size != doc.Vectors.Size || fmt.Sprintf("%08x", sum) != doc.Vectors.CRC32C {
		return nil, fmt.Errorf("%w: vector artifact checksum mismatch", ErrCorrupt)
	}

	var b backend
	switch t {
	case TypeSQLiteVec:
		b, err = openSQLiteVecFile(vecPath, dim, metric, opts.Logger)
	default:
		var buf []byte
		buf, err = os.ReadFile(vecPath)
		if err == nil {
			var h vecHeader
			b, h, err = decodeVectors(buf)
			if err == nil && (h.dim != dim || h.metric != metric ||
				(t == TypeIVF) != (h.kind == kindIVF)) {
				err = fmt.Errorf("%w: vector artifact header disagrees with metadata", ErrCorrupt)
			}
		}
	}
	if err != nil {
		if b != nil {
			_ = b.close()
		}
		return nil, err
	}

	if x, ok := b.(*ivf); ok && opts.NProbe > 0 {
		x.nprobe = opts.NProbe
	}

	m := &Manager{
		cfg: Config{
			Type:      t,
			Metric:    metric,
			Dimension: dim,
			NList:     doc.Config.Index.NList,
			NProbe:    doc.Config.Index.NProbe,
			Model:     doc.Config.Embedding.Model,
			Logger:    opts.Logger,
		},
		backend:   b,
		logger:    opts.Logger,
		records:   make(map[int]*RecordInfo, len(doc.Metadata)),
		frames:    frames,
		container: doc.Container,
		frozen:    true,
	}
	if opts.NProbe > 0 {
		m.cfg.NProbe = opts.NProbe
	}

	if err := m.validate(doc); err != nil {
		_ = b.close()
		return nil, err
	}

	if src != nil {
		if src.TotalFrames() != len(m.frames) {
			_ = b.close()
			return nil, fmt.Errorf("%w: index refers to %d frames, container has %d",
				ErrVideoMismatch, len(m.frames), src.TotalFrames())
		}
		if doc.Container.BuildID != "" && src.BuildID() != doc.Container.BuildID {
			_ = b.close()
			return nil, fmt.Errorf("%w: index built for container %s, got %s",
				ErrVideoMismatch, doc.Container.BuildID, src.BuildID())
		}
	}

	m.logger.Debug("index loaded", "base", base, "type", string(t), "records", len(m.records), "frames", len(m.frames))
	return m, nil
}

// denseFrames turns frame_to_records into a slice, requiring frame numbers
// 0..n-1 with no gaps.
func denseFrames(byFrame map[int][]int) ([][]int, error) {
	frames := make([][]int, len(byFrame))
	for f, ids := range byFrame {
		if f < 0 || f >= len(frames) {
			return nil, fmt.Errorf("%w: frame numbers are not dense (found %d of %d)", ErrCorrupt, f, len(frames))
		}
		frames[f] = ids
	}
	return frames, nil
}

// validate checks that record_to_frame and frame_to_records are exact
// inverses, agree with the per-record metadata, and that the vector artifact
// holds exactly the indexed records.
func (m *Manager) validate(doc metadataDoc) error {
	if len(doc.RecordToFrame) != len(doc.Metadata) {
		return fmt.Errorf("%w: record_to_frame has %d entries, metadata has %d",
			ErrCorrupt, len(doc.RecordToFrame), len(doc.Metadata))
	}

	for i := range doc.Metadata {
		r := doc.Metadata[i]
		if _, dup := m.records[r.ID]; dup {
			return fmt.Errorf("%w: duplicate record %d", ErrCorrupt, r.ID)
		}
		if f, ok := doc.RecordToFrame[r.ID]; !ok || f != r.Frame {
			return fmt.Errorf("%w: record_to_frame disagrees with metadata for record %d", ErrCorrupt, r.ID)
		}
		if r.Frame < 0 || r.Frame >= len(m.frames) {
			return fmt.Errorf("%w: record %d maps to frame %d of %d", ErrCorrupt, r.ID, r.Frame, len(m.frames))
		}
		if !slices.Contains(m.frames[r.Frame], r.ID) {
			return fmt.Errorf("%w: frame %d does not list record %d", ErrCorrupt, r.Frame, r.ID)
		}
		m.records[r.ID] = &r
		m.order = append(m.order, r.ID)
	}

	listed := 0
	for f, ids := range m.frames {
		if len(ids) == 0 {
			return fmt.Errorf("%w: frame %d holds no records", ErrCorrupt, f)
		}
		for _, id := range ids {
			r, ok := m.records[id]
			if !ok || r.Frame != f {
				return fmt.Errorf("%w: frame %d lists record %d which maps elsewhere", ErrCorrupt, f, id)
			}
		}
		listed += len(ids)
	}
	if listed != len(m.records) {
		return fmt.Errorf("%w: frames list %d records, metadata has %d", ErrCorrupt, listed, len(m.records))
	}

	ids, err := m.backend.ids()
	if err != nil {
		return err
	}
	if len(ids) != len(m.records) {
		return fmt.Errorf("%w: vector artifact has %d vectors, metadata has %d records", ErrCorrupt, len(ids), len(m.records))
	}
	for _, id := range ids {
		if _, ok := m.records[id]; !ok {
			return fmt.Errorf("%w: vector for unknown record %d", ErrCorrupt, id)
		}
	}
	return nil
}

// stageWrite streams to a temp file beside path, syncs it, and returns the
// temp name.
func stageWrite(path string, write func(io.Writer) error) (string, error) {
	return stageFile(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		buf := bufio.NewWriterSize(f, 256*1024)
		if err := write(buf); err != nil {
			f.Close()
			return err
		}
		if err := buf.Flush(); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// stageFile reserves a temp name beside path and lets create produce the
// file there. The temp file is removed if create fails.
func stageFile(path string, create func(tmp string) error) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	f.Close()
	if err := os.Remove(tmp); err != nil {
		return "", err
	}

	if err := create(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

func fileChecksum(path string) (int64, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	h := crc32.New(castagnoli)
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, err
	}
	return n, h.Sum32(), nil
}
