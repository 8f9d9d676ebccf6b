package routes

import (
	"encoding/json"
	"net/http"

	"github.com/reporover/backend/internal/queue"
	"github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// IngestHandler accepts a pre-scanned repository payload and queues it for
// asynchronous ingestion by the in-process consumer.
func IngestHandler(c echo.Context) error {
	type ingestRequest struct {
		Repository    string           `json:"repository" validate:"required"`
		Clear         bool             `json:"clear"`
		Entities      []map[string]any `json:"entities"`
		Relationships []map[string]any `json:"relationships"`
		Documents     []map[string]any `json:"documents"`
	}

	type ingestResponse struct {
		Message string `json:"message"`
	}

	data := new(ingestRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}

	msg := queue.IngestMsg{
		Repository:    data.Repository,
		Clear:         data.Clear,
		Entities:      data.Entities,
		Relationships: data.Relationships,
		Documents:     data.Documents,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal ingest message", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	ch := c.(*middleware.AppContext).App.Queue
	if err := queue.PublishFIFO(ch, queue.IngestQueue, body); err != nil {
		logger.Error("Failed to publish to ingest_queue", "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, ingestResponse{
		Message: "Ingestion queued",
	})
}
