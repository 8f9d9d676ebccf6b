package server

import (
	"github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Ingestion routes
	apiRoutes.POST("/ingest", routes.IngestHandler)
	apiRoutes.DELETE("/memory", routes.DeleteMemoryHandler)

	// Query routes
	apiRoutes.POST("/query", routes.QueryHandler)

	// Entity routes
	apiRoutes.GET("/entities", routes.GetEntitiesHandler)
	apiRoutes.GET("/entities/:id", routes.GetEntityHandler)

	// Episodic memory routes
	apiRoutes.GET("/interactions", routes.GetInteractionsHandler)

	// Workflow routes
	apiRoutes.GET("/workflows", routes.GetWorkflowsHandler)
}
