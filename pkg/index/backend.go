package index

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Type selects the vector search backend.
type Type string

const (
	// TypeFlat is an exact brute-force scan.
	TypeFlat Type = "flat"

	// TypeIVF partitions vectors with k-means and scans the nearest lists.
	TypeIVF Type = "ivf"

	// TypeSQLiteVec stores vectors in a sqlite-vec vec0 table.
	TypeSQLiteVec Type = "sqlite-vec"
)

// ParseType maps a configuration name to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "flat":
		return TypeFlat, nil
	case "ivf":
		return TypeIVF, nil
	case "sqlite-vec", "sqlitevec":
		return TypeSQLiteVec, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// artifactExt returns the file extension of the vector artifact for t.
func (t Type) artifactExt() string {
	if t == TypeSQLiteVec {
		return ".db"
	}
	return ".vec"
}

// backend is a vector store keyed by record id. Vectors handed to add are
// already normalized for the metric.
type backend interface {
	add(id int, v []float32) error

	// train prepares the backend for search after the last add.
	train() error

	search(ctx context.Context, q []float32, k int) ([]Hit, error)

	len() int

	// ids returns the stored record ids in insertion order.
	ids() ([]int, error)

	// persist writes the artifact to path. Implementations that stream write
	// through w; others ignore w and write path directly.
	persist(w io.Writer, path string) error

	close() error
}

// streamed reports whether b persists through an io.Writer.
func streamed(b backend) bool {
	_, ok := b.(*sqliteVec)
	return !ok
}
