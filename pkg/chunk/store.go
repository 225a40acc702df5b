// Package chunk owns the ingestion-time collection of records and assigns
// their stable identifiers.
package chunk

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/record"
)

// Stats summarizes the records held by a Store.
type Stats struct {
	TotalRecords int     `json:"total_records"`
	TotalChars   int     `json:"total_chars"`
	TotalWords   int     `json:"total_words"`
	AvgChars     float64 `json:"avg_chars"`
}

// Store collects records prior to build. IDs are assigned densely and
// monotonically starting at 0 and never change once assigned.
type Store struct {
	mu      sync.RWMutex
	records []record.Record
	chars   int
	words   int
	logger  *slog.Logger
}

// NewStore creates an empty Store. A nil logger discards output.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{logger: log}
}

// AddRecord appends text with the next id.
func (s *Store) AddRecord(text string, md record.Metadata) (int, error) {
	if err := validateRecord(text, md); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendLocked(text, md), nil
}

// AddRecords appends every text in order. Validation happens up front so a
// rejected batch adds nothing.
func (s *Store) AddRecords(texts []string) ([]int, error) {
	for i, text := range texts {
		if err := validateRecord(text, nil); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, len(texts))
	for i, text := range texts {
		ids[i] = s.appendLocked(text, nil)
	}

	s.logger.Debug("added records",
		"count", len(texts),
		"total", len(s.records),
	)

	return ids, nil
}

// AddText splits text with Split and appends every chunk with a copy of md.
func (s *Store) AddText(text string, size, overlap int, md record.Metadata) ([]int, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrIngest)
	}
	if err := md.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIngest, err)
	}

	chunks, err := Split(text, size, overlap)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, len(chunks))
	for i, c := range chunks {
		ids[i] = s.appendLocked(c, md)
	}

	s.logger.Debug("added text",
		"chunks", len(chunks),
		"chunk_size", size,
		"overlap", overlap,
		"total", len(s.records),
	)

	return ids, nil
}

// Records returns a snapshot of all records in id order.
func (s *Store) Records() []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]record.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stats returns aggregate counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalRecords: len(s.records),
		TotalChars:   s.chars,
		TotalWords:   s.words,
	}
	if st.TotalRecords > 0 {
		st.AvgChars = float64(st.TotalChars) / float64(st.TotalRecords)
	}
	return st
}

// Reset drops every record. IDs restart at 0.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.chars = 0
	s.words = 0
}

func (s *Store) appendLocked(text string, md record.Metadata) int {
	id := len(s.records)
	r := record.New(id, text, md)
	s.records = append(s.records, r)
	s.chars += r.CharCount
	s.words += r.WordCount
	return id
}

func validateRecord(text string, md record.Metadata) error {
	if text == "" {
		return fmt.Errorf("%w: empty text", ErrIngest)
	}
	if err := md.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrIngest, err)
	}
	return nil
}
