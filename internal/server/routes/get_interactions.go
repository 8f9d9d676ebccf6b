package routes

import (
	"net/http"
	"strconv"

	"github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GetInteractionsHandler lists recent episodic log entries, newest first,
// optionally filtered by agent name.
func GetInteractionsHandler(c echo.Context) error {
	type interactionsResponse struct {
		Message      string               `json:"message"`
		Interactions []common.Interaction `json:"interactions"`
	}

	app := c.(*middleware.AppContext).App
	if app.Interactions == nil {
		return c.JSON(http.StatusOK, interactionsResponse{
			Message:      "OK",
			Interactions: []common.Interaction{},
		})
	}

	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	ctx := c.Request().Context()
	var interactions []common.Interaction
	var err error
	if agent := c.QueryParam("agent"); agent != "" {
		interactions, err = app.Interactions.InteractionsByAgent(ctx, agent, limit)
	} else {
		interactions, err = app.Interactions.RecentInteractions(ctx, limit)
	}
	if err != nil {
		logger.Error("Failed to list interactions", "err", err)
		return c.JSON(http.StatusInternalServerError, interactionsResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, interactionsResponse{
		Message:      "OK",
		Interactions: interactions,
	})
}
