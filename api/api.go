package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memvid/api/search"
	"github.com/papercomputeco/memvid/pkg/logger"
)

// Server is the API server for querying a memory.
type Server struct {
	config   Config
	searcher *search.Searcher
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The memory is injected so the same
// loaded retriever can be shared with the MCP server.
func NewServer(config Config, log *slog.Logger) (*Server, error) {
	if config.Memory == nil {
		return nil, errors.New("memory is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		searcher: search.NewSearcher(config.Memory, log),
		logger:   log,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/search", s.handleSearchEndpoint)
	app.Get("/v1/records/:id", s.handleGetRecord)
	app.Get("/v1/stats", s.handleStats)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"mcp", s.config.MCPHandler != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
