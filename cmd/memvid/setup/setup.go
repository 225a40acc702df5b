// Package setup resolves configuration, logging, and memory paths shared by
// the memvid commands.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/pkg/builder"
	"github.com/papercomputeco/memvid/pkg/codec"
	codecutils "github.com/papercomputeco/memvid/pkg/codec/utils"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/dotdir"
	"github.com/papercomputeco/memvid/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/memvid/pkg/embeddings/utils"
	"github.com/papercomputeco/memvid/pkg/logger"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

// ErrNoMemory is returned when no memory path is given and no .memvid/
// directory exists to hold the default one.
var ErrNoMemory = errors.New("no memory found: pass --memory or run memvid init")

// Env is the resolved environment of one command invocation.
type Env struct {
	Config *config.Config
	Logger *slog.Logger

	// Dir is the resolved .memvid/ directory, or "" when there is none.
	Dir string
}

// Load resolves configuration through flags, MEMVID_* env, config.toml and
// defaults. flagKeys are the config.Flags registry keys cmd registered.
func Load(cmd *cobra.Command, flagKeys []string, extraLogs ...io.Writer) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}

	return &Env{
		Config: cfg,
		Logger: NewLogger(debug, extraLogs...),
		Dir:    dir,
	}, nil
}

// NewLogger returns the pretty stderr logger, fanned out as JSON to any
// extra writers.
func NewLogger(debug bool, extra ...io.Writer) *slog.Logger {
	pretty := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(os.Stderr),
	)
	if len(extra) == 0 {
		return pretty
	}
	return logger.Multi(pretty, logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriters(extra...),
		logger.WithAttrs("app", "memvid"),
	))
}

// Paths returns the artifact paths for memory, or the default memory in the
// .memvid/ directory when memory is empty.
func (e *Env) Paths(memory string) (dotdir.MemoryPaths, error) {
	if memory != "" {
		return dotdir.PathsFor(memory), nil
	}
	if e.Dir == "" {
		return dotdir.MemoryPaths{}, ErrNoMemory
	}
	return dotdir.DefaultMemory(e.Dir), nil
}

// Embedder creates the configured embedding provider.
func (e *Env) Embedder() (embeddings.Embedder, error) {
	emb, err := embeddingutils.NewEmbedder(e.Config.EmbedderOpts())
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return emb, nil
}

// Codec creates the configured visual codec.
func (e *Env) Codec() (codec.Codec, error) {
	c, err := codecutils.NewCodec(e.Config.CodecOpts())
	if err != nil {
		return nil, fmt.Errorf("creating codec: %w", err)
	}
	return c, nil
}

// Builder creates a Builder wired to the configured embedder and codec. The
// caller closes the returned embedder.
func (e *Env) Builder() (*builder.Builder, embeddings.Embedder, error) {
	emb, err := e.Embedder()
	if err != nil {
		return nil, nil, err
	}
	c, err := e.Codec()
	if err != nil {
		_ = emb.Close()
		return nil, nil, err
	}
	return builder.New(emb, c, e.Config.BuilderConfig(e.Logger)), emb, nil
}

// Open loads the memory at paths into a ready Retriever. Closing the
// Retriever does not close the embedder; the caller closes both.
func (e *Env) Open(ctx context.Context, paths dotdir.MemoryPaths) (*retriever.Retriever, embeddings.Embedder, error) {
	emb, err := e.Embedder()
	if err != nil {
		return nil, nil, err
	}
	c, err := e.Codec()
	if err != nil {
		_ = emb.Close()
		return nil, nil, err
	}

	r, err := retriever.Open(ctx, paths.Container, paths.IndexBase, emb, c, e.Config.RetrieverConfig(e.Logger))
	if err != nil {
		_ = emb.Close()
		return nil, nil, fmt.Errorf("opening memory %s: %w", paths.Container, err)
	}
	return r, emb, nil
}
