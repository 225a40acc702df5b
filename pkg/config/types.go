package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent memvid configuration stored as config.toml
// in the .memvid/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Index     IndexConfig     `toml:"index"`
	Codec     CodecConfig     `toml:"codec"`
	Container ContainerConfig `toml:"container"`
	Build     BuildConfig     `toml:"build"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	API       APIConfig       `toml:"api"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions int    `toml:"dimensions,omitempty"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Type   string `toml:"type,omitempty"`
	Metric string `toml:"metric,omitempty"`
	NList  int    `toml:"nlist,omitempty"`
	NProbe int    `toml:"nprobe,omitempty"`
}

// CodecConfig selects and tunes the visual codec.
type CodecConfig struct {
	Type            string `toml:"type,omitempty"`
	ErrorCorrection string `toml:"error_correction,omitempty"`
	BoxSize         int    `toml:"box_size,omitempty"`
}

// ContainerConfig holds frame container settings.
type ContainerConfig struct {
	Compression string `toml:"compression,omitempty"`
}

// BuildConfig holds ingestion and build settings.
type BuildConfig struct {
	ChunkSize       int `toml:"chunk_size,omitempty"`
	Overlap         int `toml:"overlap"`
	RecordsPerFrame int `toml:"records_per_frame,omitempty"`
	Workers         int `toml:"workers,omitempty"`
	QueueSize       int `toml:"queue_size,omitempty"`
}

// RetrievalConfig holds query-time settings. Durations use Go syntax ("30s").
type RetrievalConfig struct {
	TopK           int    `toml:"top_k,omitempty"`
	MaxWorkers     int    `toml:"max_workers,omitempty"`
	CacheSize      int    `toml:"cache_size,omitempty"`
	NegativeTTL    string `toml:"negative_ttl,omitempty"`
	Timeout        string `toml:"timeout,omitempty"`
	PrefetchFrames int    `toml:"prefetch_frames,omitempty"`
}

// APIConfig holds query server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = n
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"embedding.provider":   stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": intKey("embedding.dimensions", func(c *Config) *int { return &c.Embedding.Dimensions }),

	"index.type":   stringKey(func(c *Config) *string { return &c.Index.Type }),
	"index.metric": stringKey(func(c *Config) *string { return &c.Index.Metric }),
	"index.nlist":  intKey("index.nlist", func(c *Config) *int { return &c.Index.NList }),
	"index.nprobe": intKey("index.nprobe", func(c *Config) *int { return &c.Index.NProbe }),

	"codec.type":             stringKey(func(c *Config) *string { return &c.Codec.Type }),
	"codec.error_correction": stringKey(func(c *Config) *string { return &c.Codec.ErrorCorrection }),
	"codec.box_size":         intKey("codec.box_size", func(c *Config) *int { return &c.Codec.BoxSize }),

	"container.compression": stringKey(func(c *Config) *string { return &c.Container.Compression }),

	"build.chunk_size":        intKey("build.chunk_size", func(c *Config) *int { return &c.Build.ChunkSize }),
	"build.overlap":           intKey("build.overlap", func(c *Config) *int { return &c.Build.Overlap }),
	"build.records_per_frame": intKey("build.records_per_frame", func(c *Config) *int { return &c.Build.RecordsPerFrame }),
	"build.workers":           intKey("build.workers", func(c *Config) *int { return &c.Build.Workers }),
	"build.queue_size":        intKey("build.queue_size", func(c *Config) *int { return &c.Build.QueueSize }),

	"retrieval.top_k":           intKey("retrieval.top_k", func(c *Config) *int { return &c.Retrieval.TopK }),
	"retrieval.max_workers":     intKey("retrieval.max_workers", func(c *Config) *int { return &c.Retrieval.MaxWorkers }),
	"retrieval.cache_size":      intKey("retrieval.cache_size", func(c *Config) *int { return &c.Retrieval.CacheSize }),
	"retrieval.negative_ttl":    durationKey("retrieval.negative_ttl", func(c *Config) *string { return &c.Retrieval.NegativeTTL }),
	"retrieval.timeout":         durationKey("retrieval.timeout", func(c *Config) *string { return &c.Retrieval.Timeout }),
	"retrieval.prefetch_frames": intKey("retrieval.prefetch_frames", func(c *Config) *int { return &c.Retrieval.PrefetchFrames }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"index.type",
	"index.metric",
	"index.nlist",
	"index.nprobe",
	"codec.type",
	"codec.error_correction",
	"codec.box_size",
	"container.compression",
	"build.chunk_size",
	"build.overlap",
	"build.records_per_frame",
	"build.workers",
	"build.queue_size",
	"retrieval.top_k",
	"retrieval.max_workers",
	"retrieval.cache_size",
	"retrieval.negative_ttl",
	"retrieval.timeout",
	"retrieval.prefetch_frames",
	"api.listen",
}
