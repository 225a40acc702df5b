// Package servecmder provides the serve command, which exposes a memory over
// REST and MCP.
package servecmder

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/memvid/api"
	"github.com/papercomputeco/memvid/api/mcp"
	"github.com/papercomputeco/memvid/cmd/memvid/setup"
	"github.com/papercomputeco/memvid/pkg/config"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

const serveLongDesc string = `Run the memvid query server.

Loads a memory once and serves it over HTTP:
  GET  /ping                 Health check
  GET  /v1/search?query=...  Ranked search (top_k, timeout)
  GET  /v1/records/:id       Single record
  GET  /v1/stats             Memory statistics
  POST /mcp                  MCP streamable HTTP (search, get_record tools)

Examples:
  memvid serve
  memvid serve --listen :9000 --memory book
  memvid serve --no-mcp --log-file memvid.log`

const serveShortDesc string = "Run the memvid query server"

var serveFlags = []string{
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCodec,
	config.FlagMaxWorkers,
	config.FlagCacheSize,
	config.FlagTimeout,
	config.FlagListen,
}

type ServeCommander struct {
	memory  string
	logFile string
	noMCP   bool

	provider, target, model, codec, timeout, listen string
	dims, maxWorkers, cacheSize                     int
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var extra []io.Writer
			if cmder.logFile != "" {
				f, err := os.OpenFile(cmder.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				extra = append(extra, f)
			}

			env, err := setup.Load(cmd, serveFlags, extra...)
			if err != nil {
				return err
			}
			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().StringVarP(&cmder.memory, "memory", "m", "", "Memory path (default: .memvid/memory)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the /mcp endpoint")
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.model)
	config.AddIntFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dims)
	config.AddStringFlag(cmd, config.Flags, config.FlagCodec, &cmder.codec)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxWorkers, &cmder.maxWorkers)
	config.AddIntFlag(cmd, config.Flags, config.FlagCacheSize, &cmder.cacheSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)

	return cmd
}

func (c *ServeCommander) run(cmd *cobra.Command, env *setup.Env) error {
	log := env.Logger

	paths, err := env.Paths(c.memory)
	if err != nil {
		return err
	}

	r, emb, err := env.Open(cmd.Context(), paths)
	if err != nil {
		return err
	}
	defer emb.Close()
	defer r.Close()

	st, err := r.Stats()
	if err != nil {
		return err
	}
	log.Info("memory loaded",
		"container", paths.Container,
		"records", st.TotalRecords,
		"frames", st.TotalFrames,
		"build_id", st.BuildID,
	)

	if n := env.Config.Retrieval.PrefetchFrames; n > 0 {
		c.warm(cmd, env, r, min(n, st.TotalFrames))
	}

	apiConfig := api.Config{
		ListenAddr: env.Config.API.Listen,
		Memory:     r,
	}
	if !c.noMCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Memory: r,
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}
		apiConfig.MCPHandler = mcpServer.Handler()
	}

	apiServer, err := api.NewServer(apiConfig, log)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
	case <-cmd.Context().Done():
		log.Info("context done, shutting down")
	}

	return apiServer.Shutdown()
}

// warm decodes the first n frames so early queries hit the cache.
func (c *ServeCommander) warm(cmd *cobra.Command, env *setup.Env, r *retriever.Retriever, n int) {
	frames := make([]int, n)
	for i := range frames {
		frames[i] = i
	}
	got, err := r.Prefetch(cmd.Context(), frames)
	if err != nil {
		env.Logger.Warn("prefetch failed", "error", err)
		return
	}
	env.Logger.Debug("prefetched frames", "frames", got)
}
