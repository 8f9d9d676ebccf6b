package routes

import (
	"net/http"

	"github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// DeleteMemoryHandler empties all three stores. Meant to precede a fresh
// ingestion; must not run while an ingestion is in flight.
func DeleteMemoryHandler(c echo.Context) error {
	type deleteResponse struct {
		Message string `json:"message"`
	}

	ctx := c.Request().Context()
	knowledge := c.(*middleware.AppContext).App.Knowledge

	if err := knowledge.ClearAll(ctx); err != nil {
		logger.Error("Failed to clear stores", "err", err)
		return c.JSON(http.StatusInternalServerError, deleteResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, deleteResponse{
		Message: "All stores cleared",
	})
}
