package config

const (
	defaultEmbeddingProvider   = "hash"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "all-MiniLM-L6-v2"
	defaultEmbeddingDimensions = 384

	defaultIndexType   = "flat"
	defaultIndexMetric = "cosine"
	defaultNList       = 100
	defaultNProbe      = 8

	defaultCodecType       = "qr"
	defaultErrorCorrection = "M"
	defaultBoxSize         = 4

	defaultCompression = "zstd"

	defaultChunkSize       = 500
	defaultOverlap         = 50
	defaultRecordsPerFrame = 1
	defaultBuildWorkers    = 4
	defaultQueueSize       = 64

	defaultTopK           = 5
	defaultMaxWorkers     = 4
	defaultCacheSize      = 1000
	defaultNegativeTTL    = "30s"
	defaultTimeout        = "10s"
	defaultPrefetchFrames = 50

	defaultAPIListen = ":8081"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Index: IndexConfig{
			Type:   defaultIndexType,
			Metric: defaultIndexMetric,
			NList:  defaultNList,
			NProbe: defaultNProbe,
		},
		Codec: CodecConfig{
			Type:            defaultCodecType,
			ErrorCorrection: defaultErrorCorrection,
			BoxSize:         defaultBoxSize,
		},
		Container: ContainerConfig{
			Compression: defaultCompression,
		},
		Build: BuildConfig{
			ChunkSize:       defaultChunkSize,
			Overlap:         defaultOverlap,
			RecordsPerFrame: defaultRecordsPerFrame,
			Workers:         defaultBuildWorkers,
			QueueSize:       defaultQueueSize,
		},
		Retrieval: RetrievalConfig{
			TopK:           defaultTopK,
			MaxWorkers:     defaultMaxWorkers,
			CacheSize:      defaultCacheSize,
			NegativeTTL:    defaultNegativeTTL,
			Timeout:        defaultTimeout,
			PrefetchFrames: defaultPrefetchFrames,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
