package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --embedding-provider
// on "memvid build", "memvid search" and "memvid serve").
type Flag struct {
	// Name is the long flag name (e.g. "top-k").
	Name string

	// Shorthand is the one-letter short flag (e.g. "k"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "retrieval.top_k").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagEmbeddingProv  = "embedding-provider"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
	FlagEmbeddingDims  = "embedding-dimensions"
	FlagIndexType      = "index-type"
	FlagIndexMetric    = "metric"
	FlagNList          = "nlist"
	FlagNProbe         = "nprobe"
	FlagCodec          = "codec"
	FlagCompression    = "compression"
	FlagChunkSize      = "chunk-size"
	FlagOverlap        = "overlap"
	FlagPerFrame       = "records-per-frame"
	FlagBuildWorkers   = "build-workers"
	FlagTopK           = "top-k"
	FlagMaxWorkers     = "max-workers"
	FlagCacheSize      = "cache-size"
	FlagTimeout        = "timeout"
	FlagListen         = "listen"
)

// Flags is the registry shared by every memvid command.
var Flags = FlagSet{
	FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (hash, ollama, openai)"},
	FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	FlagEmbeddingDims:  {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	FlagIndexType:      {Name: "index-type", ViperKey: "index.type", Description: "Index type (flat, ivf, sqlite-vec)"},
	FlagIndexMetric:    {Name: "metric", ViperKey: "index.metric", Description: "Similarity metric (cosine, l2)"},
	FlagNList:          {Name: "nlist", ViperKey: "index.nlist", Description: "Number of IVF clusters"},
	FlagNProbe:         {Name: "nprobe", ViperKey: "index.nprobe", Description: "Number of IVF clusters probed per query"},
	FlagCodec:          {Name: "codec", ViperKey: "codec.type", Description: "Visual codec (qr, raw)"},
	FlagCompression:    {Name: "compression", ViperKey: "container.compression", Description: "Frame compression (zstd, lz4, none)"},
	FlagChunkSize:      {Name: "chunk-size", ViperKey: "build.chunk_size", Description: "Chunk size in characters"},
	FlagOverlap:        {Name: "overlap", ViperKey: "build.overlap", Description: "Characters shared by consecutive chunks"},
	FlagPerFrame:       {Name: "records-per-frame", ViperKey: "build.records_per_frame", Description: "Records stored in each frame"},
	FlagBuildWorkers:   {Name: "workers", Shorthand: "w", ViperKey: "build.workers", Description: "Concurrent render workers"},
	FlagTopK:           {Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k", Description: "Number of results to return"},
	FlagMaxWorkers:     {Name: "max-workers", ViperKey: "retrieval.max_workers", Description: "Concurrent frame decodes"},
	FlagCacheSize:      {Name: "cache-size", ViperKey: "retrieval.cache_size", Description: "Decoded frames kept in memory"},
	FlagTimeout:        {Name: "timeout", ViperKey: "retrieval.timeout", Description: "Search timeout (e.g. 10s)"},
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the query server to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
