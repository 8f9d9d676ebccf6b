package routes

import (
	"net/http"

	"github.com/reporover/backend/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

// GetWorkflowsHandler lists the names of the loaded workflow definitions.
func GetWorkflowsHandler(c echo.Context) error {
	type workflowsResponse struct {
		Workflows []string `json:"workflows"`
	}

	registry := c.(*middleware.AppContext).App.Workflows
	return c.JSON(http.StatusOK, workflowsResponse{
		Workflows: registry.List(),
	})
}
