// Package record holds the data model shared by ingestion, build, and retrieval:
// records, their ordered metadata, and the payload rendered into a frame.
package record

import (
	"strings"
	"unicode/utf8"
)

// PreviewLength is the number of runes kept in a record's text preview.
const PreviewLength = 100

// Record is a single logical text record.
type Record struct {
	// ID is assigned densely and monotonically from 0 at ingestion time.
	ID int

	// Text is the record body, stored byte-exact in its frame.
	Text string

	// Metadata is an ordered string to scalar mapping.
	Metadata Metadata

	CharCount int
	WordCount int
}

// New creates a Record and computes its character and word counts.
func New(id int, text string, md Metadata) Record {
	return Record{
		ID:        id,
		Text:      text,
		Metadata:  md.Clone(),
		CharCount: utf8.RuneCountInString(text),
		WordCount: len(strings.Fields(text)),
	}
}

// Payload returns the frame payload form of the record.
func (r Record) Payload() Payload {
	return Payload{
		ID:       r.ID,
		Text:     r.Text,
		Metadata: r.Metadata,
	}
}

// Preview returns the first n runes of text.
func Preview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}

	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

// Frame describes which records a single frame holds.
type Frame struct {
	Number    int
	RecordIDs []int
}
