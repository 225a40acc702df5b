// Package api provides an HTTP query server over a loaded memory.
package api

import (
	"net/http"

	"github.com/papercomputeco/memvid/api/search"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Memory answers searches and record lookups
	Memory search.Memory

	// MCPHandler, when set, is mounted at /mcp
	MCPHandler http.Handler
}
