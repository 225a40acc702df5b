package config

import (
	"log/slog"
	"time"

	"github.com/papercomputeco/memvid/pkg/builder"
	"github.com/papercomputeco/memvid/pkg/codec/qr"
	codecutils "github.com/papercomputeco/memvid/pkg/codec/utils"
	"github.com/papercomputeco/memvid/pkg/container"
	embeddingutils "github.com/papercomputeco/memvid/pkg/embeddings/utils"
	"github.com/papercomputeco/memvid/pkg/index"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

// The conversions below assume cfg has passed Validate; unparsable values
// fall back to the zero value, which each component treats as its default.

// IndexConfig returns the index settings for a build.
func (cfg *Config) IndexConfig(log *slog.Logger) index.Config {
	t, _ := index.ParseType(cfg.Index.Type)
	m, _ := index.ParseMetric(cfg.Index.Metric)
	return index.Config{
		Type:      t,
		Metric:    m,
		Dimension: cfg.Embedding.Dimensions,
		NList:     cfg.Index.NList,
		NProbe:    cfg.Index.NProbe,
		Logger:    log,
	}
}

// BuilderConfig returns the builder settings, including the index settings.
func (cfg *Config) BuilderConfig(log *slog.Logger) builder.Config {
	comp, _ := container.ParseCompression(cfg.Container.Compression)
	return builder.Config{
		ChunkSize:       cfg.Build.ChunkSize,
		Overlap:         cfg.Build.Overlap,
		RecordsPerFrame: cfg.Build.RecordsPerFrame,
		Workers:         cfg.Build.Workers,
		QueueSize:       cfg.Build.QueueSize,
		Compression:     comp,
		Index:           cfg.IndexConfig(log),
		Logger:          log,
	}
}

// RetrieverConfig returns the query-time settings.
func (cfg *Config) RetrieverConfig(log *slog.Logger) retriever.Config {
	ttl, _ := time.ParseDuration(cfg.Retrieval.NegativeTTL)
	timeout, _ := time.ParseDuration(cfg.Retrieval.Timeout)

	c := retriever.Config{
		TopK:           cfg.Retrieval.TopK,
		MaxWorkers:     cfg.Retrieval.MaxWorkers,
		CacheSize:      cfg.Retrieval.CacheSize,
		NegativeTTL:    ttl,
		Timeout:        timeout,
		PrefetchFrames: cfg.Retrieval.PrefetchFrames,
		NProbe:         cfg.Index.NProbe,
		Logger:         log,
	}
	// a configured zero means "none" rather than "default"
	if c.CacheSize == 0 {
		c.CacheSize = -1
	}
	if c.NegativeTTL == 0 {
		c.NegativeTTL = -1
	}
	if c.Timeout == 0 {
		c.Timeout = -1
	}
	return c
}

// QRConfig returns the QR codec settings.
func (cfg *Config) QRConfig() qr.Config {
	return qr.Config{
		ErrorCorrection: cfg.Codec.ErrorCorrection,
		BoxSize:         cfg.Codec.BoxSize,
	}
}

// CodecOpts returns the options for codecutils.NewCodec.
func (cfg *Config) CodecOpts() *codecutils.NewCodecOpts {
	return &codecutils.NewCodecOpts{
		Type:            cfg.Codec.Type,
		ErrorCorrection: cfg.Codec.ErrorCorrection,
		BoxSize:         cfg.Codec.BoxSize,
	}
}

// EmbedderOpts returns the options for embeddingutils.NewEmbedder.
func (cfg *Config) EmbedderOpts() *embeddingutils.NewEmbedderOpts {
	return &embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
	}
}
