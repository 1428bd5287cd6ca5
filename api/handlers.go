package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/storage"
)

// errorResponse is the JSON body returned for API-level failures.
type errorResponse struct {
	Error string `json:"error"`
}

// listResponse wraps the stream listing with its count.
type listResponse struct {
	Count   int                     `json:"count"`
	Streams []*storage.StreamRecord `json:"streams"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListStreams returns stored stream records, most recent first.
// The optional "limit" query parameter caps the result.
func (s *Server) handleListStreams(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "limit must not be negative"})
	}

	records, err := s.storer.ListStreams(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list streams", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to list streams"})
	}

	if records == nil {
		records = []*storage.StreamRecord{}
	}

	return c.JSON(listResponse{
		Count:   len(records),
		Streams: records,
	})
}

// handleGetStream returns a single stream transcript by id, events included.
func (s *Server) handleGetStream(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "id parameter required"})
	}

	record, err := s.storer.GetStream(c.Context(), id)
	if err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "stream not found"})
		}
		s.logger.Error("failed to get stream", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to get stream"})
	}

	return c.JSON(record)
}

// handleDeleteStream removes a stream transcript by id.
func (s *Server) handleDeleteStream(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "id parameter required"})
	}

	if err := s.storer.DeleteStream(c.Context(), id); err != nil {
		var notFound storage.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "stream not found"})
		}
		s.logger.Error("failed to delete stream", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to delete stream"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
