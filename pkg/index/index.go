// Package index maps records to embeddings and to the frames that hold them,
// answers nearest-neighbor queries, and persists both as a pair of artifacts
// next to the frame container.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/record"
)

const (
	// DefaultNList is the number of IVF partitions.
	DefaultNList = 100

	// DefaultNProbe is the number of IVF partitions scanned per query.
	DefaultNProbe = 8
)

// ErrInvalidTopK is returned for a non-positive result count.
var ErrInvalidTopK = errors.New("top_k must be positive")

// Config configures a Manager.
type Config struct {
	Type   Type
	Metric Metric

	// Dimension of every vector. When zero it is taken from the first Insert.
	Dimension int

	NList  int
	NProbe int

	// Model names the embedding model, recorded for provenance.
	Model string

	Logger *slog.Logger
}

// Entry is one record handed to Insert.
type Entry struct {
	RecordID    int
	FrameNumber int
	Embedding   []float32

	Preview   string
	CharCount int
	WordCount int
	Metadata  record.Metadata
}

// RecordInfo is what the index knows about a record without decoding its frame.
type RecordInfo struct {
	ID        int             `json:"record_id"`
	Frame     int             `json:"frame_number"`
	Preview   string          `json:"text_preview"`
	CharCount int             `json:"char_count"`
	WordCount int             `json:"word_count"`
	Metadata  record.Metadata `json:"metadata,omitempty"`
}

// Stats summarizes an index.
type Stats struct {
	Type        Type   `json:"type"`
	Metric      Metric `json:"metric"`
	Dimension   int    `json:"dimension"`
	Model       string `json:"model,omitempty"`
	Records     int    `json:"records"`
	TotalFrames int    `json:"total_frames"`
	Frozen      bool   `json:"frozen"`
	Codec       string `json:"codec,omitempty"`
}

// Manager is the index. Inserts must complete before Freeze; after Freeze
// (and for every loaded Manager) all methods are safe for concurrent use.
type Manager struct {
	mu sync.RWMutex

	cfg     Config
	backend backend
	logger  *slog.Logger

	records map[int]*RecordInfo
	order   []int
	frames  [][]int

	// container is set once the index is saved or loaded.
	container ContainerInfo

	frozen bool
}

// New returns an empty Manager.
func New(c Config) (*Manager, error) {
	t, err := ParseType(string(c.Type))
	if err != nil {
		return nil, err
	}
	m, err := ParseMetric(string(c.Metric))
	if err != nil {
		return nil, err
	}
	c.Type, c.Metric = t, m
	if c.NList <= 0 {
		c.NList = DefaultNList
	}
	if c.NProbe <= 0 {
		c.NProbe = DefaultNProbe
	}
	if c.Dimension < 0 {
		return nil, fmt.Errorf("%w: negative dimension %d", ErrDimensionMismatch, c.Dimension)
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	mgr := &Manager{
		cfg:     c,
		logger:  c.Logger,
		records: make(map[int]*RecordInfo),
	}
	if c.Dimension > 0 {
		if err := mgr.initBackend(); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

func (m *Manager) initBackend() error {
	var err error
	switch m.cfg.Type {
	case TypeFlat:
		m.backend = newFlat(m.cfg.Dimension, m.cfg.Metric)
	case TypeIVF:
		m.backend = newIVF(m.cfg.Dimension, m.cfg.Metric, m.cfg.NList, m.cfg.NProbe)
	case TypeSQLiteVec:
		m.backend, err = newSQLiteVec(m.cfg.Dimension, m.cfg.Metric, m.logger)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, m.cfg.Type)
	}
	return err
}

func (m *Manager) prepare(v []float32) []float32 {
	if m.cfg.Metric == MetricCosine {
		return normalize(v)
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Insert adds a record's embedding and frame assignment.
func (m *Manager) Insert(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.frozen {
		return ErrFrozen
	}
	if e.RecordID < 0 || e.FrameNumber < 0 {
		return fmt.Errorf("negative record id %d or frame %d", e.RecordID, e.FrameNumber)
	}
	if _, ok := m.records[e.RecordID]; ok {
		return fmt.Errorf("record %d already indexed", e.RecordID)
	}
	if len(e.Embedding) == 0 {
		return fmt.Errorf("%w: empty embedding for record %d", ErrDimensionMismatch, e.RecordID)
	}
	if !finite(e.Embedding) {
		return fmt.Errorf("embedding for record %d contains NaN or Inf", e.RecordID)
	}

	if m.backend == nil {
		m.cfg.Dimension = len(e.Embedding)
		if err := m.initBackend(); err != nil {
			return err
		}
	}
	if len(e.Embedding) != m.cfg.Dimension {
		return fmt.Errorf("%w: record %d has %d dimensions, index has %d",
			ErrDimensionMismatch, e.RecordID, len(e.Embedding), m.cfg.Dimension)
	}

	if err := m.backend.add(e.RecordID, m.prepare(e.Embedding)); err != nil {
		return err
	}

	m.records[e.RecordID] = &RecordInfo{
		ID:        e.RecordID,
		Frame:     e.FrameNumber,
		Preview:   e.Preview,
		CharCount: e.CharCount,
		WordCount: e.WordCount,
		Metadata:  e.Metadata.Clone(),
	}
	m.order = append(m.order, e.RecordID)
	for len(m.frames) <= e.FrameNumber {
		m.frames = append(m.frames, nil)
	}
	m.frames[e.FrameNumber] = append(m.frames[e.FrameNumber], e.RecordID)
	return nil
}

// Freeze trains the backend and rejects further inserts. It is idempotent.
func (m *Manager) Freeze() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freezeLocked()
}

func (m *Manager) freezeLocked() error {
	if m.frozen {
		return nil
	}
	if m.backend != nil {
		if err := m.backend.train(); err != nil {
			return fmt.Errorf("training %s index: %w", m.cfg.Type, err)
		}
	}
	m.frozen = true
	m.logger.Debug("index frozen", "type", string(m.cfg.Type), "records", len(m.records), "frames", len(m.frames))
	return nil
}

// Search returns up to topK records ordered by score descending, ties broken
// by ascending record id.
func (m *Manager) Search(ctx context.Context, query []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopK, topK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.backend == nil || m.backend.len() == 0 {
		return []Hit{}, nil
	}
	if len(query) != m.cfg.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			ErrDimensionMismatch, len(query), m.cfg.Dimension)
	}

	hits, err := m.backend.search(ctx, m.prepare(query), topK)
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// FrameOf returns the frame holding record id.
func (m *Manager) FrameOf(id int) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return 0, false
	}
	return r.Frame, true
}

// RecordsIn returns the ids stored in frame, in ascending order of insertion.
func (m *Manager) RecordsIn(frame int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if frame < 0 || frame >= len(m.frames) {
		return nil
	}
	out := make([]int, len(m.frames[frame]))
	copy(out, m.frames[frame])
	return out
}

// Record returns the stored information for id.
func (m *Manager) Record(id int) (RecordInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return RecordInfo{}, false
	}
	out := *r
	out.Metadata = r.Metadata.Clone()
	return out, true
}

// Len returns the number of indexed records.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// TotalFrames returns the number of frames the index refers to.
func (m *Manager) TotalFrames() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.frames)
}

// Dimension returns the vector dimension, or zero before the first Insert.
func (m *Manager) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Dimension
}

// Stats summarizes the index.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Type:        m.cfg.Type,
		Metric:      m.cfg.Metric,
		Dimension:   m.cfg.Dimension,
		Model:       m.cfg.Model,
		Records:     len(m.records),
		TotalFrames: len(m.frames),
		Frozen:      m.frozen,
		Codec:       m.container.Codec,
	}
}

// Close releases backend resources.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return nil
	}
	err := m.backend.close()
	m.backend = nil
	return err
}
