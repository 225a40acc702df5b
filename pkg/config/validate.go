package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/memvid/pkg/container"
	"github.com/papercomputeco/memvid/pkg/index"
)

var (
	embeddingProviders = []string{"hash", "ollama", "openai"}
	codecTypes         = []string{"qr", "raw"}
	errorCorrections   = []string{"L", "M", "Q", "H"}
)

// Validate reports every out-of-range or unknown value in cfg. The returned
// error wraps ErrInvalid.
func (cfg *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains(embeddingProviders, cfg.Embedding.Provider),
		"embedding.provider %q must be one of %s", cfg.Embedding.Provider, strings.Join(embeddingProviders, ", "))
	check(cfg.Embedding.Dimensions > 0, "embedding.dimensions must be positive")

	if _, err := index.ParseType(cfg.Index.Type); err != nil {
		errs = append(errs, fmt.Errorf("index.type: %w", err))
	}
	if _, err := index.ParseMetric(cfg.Index.Metric); err != nil {
		errs = append(errs, fmt.Errorf("index.metric: %w", err))
	}
	check(cfg.Index.NList > 0, "index.nlist must be positive")
	check(cfg.Index.NProbe > 0, "index.nprobe must be positive")

	check(slices.Contains(codecTypes, cfg.Codec.Type),
		"codec.type %q must be one of %s", cfg.Codec.Type, strings.Join(codecTypes, ", "))
	check(slices.Contains(errorCorrections, strings.ToUpper(cfg.Codec.ErrorCorrection)),
		"codec.error_correction %q must be one of %s", cfg.Codec.ErrorCorrection, strings.Join(errorCorrections, ", "))
	check(cfg.Codec.BoxSize > 0, "codec.box_size must be positive")

	if _, err := container.ParseCompression(cfg.Container.Compression); err != nil {
		errs = append(errs, fmt.Errorf("container.compression: %w", err))
	}

	check(cfg.Build.ChunkSize > 0, "build.chunk_size must be positive")
	check(cfg.Build.Overlap >= 0 && cfg.Build.Overlap < cfg.Build.ChunkSize,
		"build.overlap must be in [0, chunk_size)")
	check(cfg.Build.RecordsPerFrame > 0, "build.records_per_frame must be positive")
	check(cfg.Build.Workers > 0, "build.workers must be positive")
	check(cfg.Build.QueueSize > 0, "build.queue_size must be positive")

	check(cfg.Retrieval.TopK > 0, "retrieval.top_k must be positive")
	check(cfg.Retrieval.MaxWorkers > 0, "retrieval.max_workers must be positive")
	check(cfg.Retrieval.PrefetchFrames > 0, "retrieval.prefetch_frames must be positive")
	for key, v := range map[string]string{
		"retrieval.negative_ttl": cfg.Retrieval.NegativeTTL,
		"retrieval.timeout":      cfg.Retrieval.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	check(cfg.API.Listen != "", "api.listen must not be empty")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
