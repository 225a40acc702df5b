package dotdir

import (
	"path/filepath"
)

const (
	// MemoryName is the base name of the default memory artifacts.
	MemoryName = "memory"

	containerExt = ".mvf"
	indexSuffix  = "_index"
)

// MemoryPaths holds the artifact locations of one memory.
type MemoryPaths struct {
	// Container is the frame container file.
	Container string

	// IndexBase is the base path of the index artifacts.
	IndexBase string
}

// DefaultMemory returns the paths of the default memory inside dir.
func DefaultMemory(dir string) MemoryPaths {
	return PathsFor(filepath.Join(dir, MemoryName))
}

// PathsFor derives artifact paths from a base path such as "docs/memory":
// "docs/memory.mvf" and "docs/memory_index". A trailing container
// extension on base is ignored.
func PathsFor(base string) MemoryPaths {
	base = trimExt(base)
	return MemoryPaths{
		Container: base + containerExt,
		IndexBase: base + indexSuffix,
	}
}

func trimExt(base string) string {
	if filepath.Ext(base) == containerExt {
		return base[:len(base)-len(containerExt)]
	}
	return base
}
