package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/memvid/api/search"
	"github.com/papercomputeco/memvid/pkg/codec"
	"github.com/papercomputeco/memvid/pkg/retriever"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - top_k (optional, default 5): number of results to return
//   - timeout (optional): Go duration bounding the search, e.g. "500ms"
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	in := search.Input{Query: query}

	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		in.TopK = parsed
	}

	if timeoutStr := c.Query("timeout"); timeoutStr != "" {
		parsed, err := time.ParseDuration(timeoutStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "timeout must be a positive duration",
			})
		}
		in.TimeoutMS = max(parsed.Milliseconds(), 1)
	}

	output, err := s.searcher.Search(c.UserContext(), in)
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(output)
}

// handleGetRecord returns a single record by id.
func (s *Server) handleGetRecord(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id must be a non-negative integer"})
	}

	rec, err := s.searcher.Record(c.UserContext(), id)
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(rec)
}

// handleStats returns retriever statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.searcher.Stats()
	if err != nil {
		return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
	}
	return c.JSON(stats)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, retriever.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, retriever.ErrNotReady):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, retriever.ErrSearchTimeout):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, codec.ErrDecode):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
