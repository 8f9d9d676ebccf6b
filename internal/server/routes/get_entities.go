package routes

import (
	"net/http"

	"github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetEntitiesHandler lists stored entities, optionally filtered by type.
func GetEntitiesHandler(c echo.Context) error {
	type entitiesResponse struct {
		Message  string          `json:"message"`
		Entities []common.Entity `json:"entities"`
	}

	ctx := c.Request().Context()
	knowledge := c.(*middleware.AppContext).App.Knowledge

	var entities []common.Entity
	var err error
	if entityType := c.QueryParam("type"); entityType != "" {
		entities, err = knowledge.FindEntitiesByType(ctx, entityType)
	} else {
		entities, err = knowledge.GetAllEntities(ctx)
	}
	if err != nil {
		logger.Error("Failed to list entities", "err", err)
		return c.JSON(http.StatusInternalServerError, entitiesResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, entitiesResponse{
		Message:  "OK",
		Entities: entities,
	})
}

// GetEntityHandler fetches one entity by its unique ID, together with its
// graph neighborhood.
func GetEntityHandler(c echo.Context) error {
	type entityResponse struct {
		Message string         `json:"message"`
		Entity  *common.Entity `json:"entity,omitempty"`
		Callers []string       `json:"callers,omitempty"`
		Callees []string       `json:"callees,omitempty"`
	}

	id := c.Param("id")
	ctx := c.Request().Context()
	knowledge := c.(*middleware.AppContext).App.Knowledge

	entity, err := knowledge.GetEntity(ctx, id)
	if err != nil {
		logger.Error("Failed to get entity", "id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, entityResponse{
			Message: "Internal server error",
		})
	}
	if entity == nil {
		return c.JSON(http.StatusNotFound, entityResponse{
			Message: "Entity not found",
		})
	}

	return c.JSON(http.StatusOK, entityResponse{
		Message: "OK",
		Entity:  entity,
		Callers: knowledge.FindCallers(id),
		Callees: knowledge.FindCallees(id),
	})
}
