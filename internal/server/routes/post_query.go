package routes

import (
	"net/http"

	"github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/pkg/common"
	"github.com/reporover/backend/pkg/logger"

	"github.com/labstack/echo/v4"
)

// QueryHandler answers a question about the ingested repository by running
// the query workflow synchronously.
func QueryHandler(c echo.Context) error {
	type queryRequest struct {
		Question string `json:"question" validate:"required"`
	}

	type queryResponse struct {
		Message string `json:"message"`
		Answer  string `json:"answer,omitempty"`
	}

	data := new(queryRequest)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, queryResponse{
			Message: "Invalid request body",
		})
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App
	engine := app.Engine

	result, err := engine.Execute(ctx, "query", map[string]any{
		"question": data.Question,
	})
	if err != nil {
		logger.Error("[Query] Workflow failed", "err", err)
		return c.JSON(http.StatusInternalServerError, queryResponse{
			Message: "Internal server error",
		})
	}

	answer := ""
	if stepResult, ok := result["answer"].(map[string]any); ok {
		answer, _ = stepResult["answer"].(string)
	}
	if answer == "" {
		return c.JSON(http.StatusInternalServerError, queryResponse{
			Message: "No answer produced",
		})
	}

	if app.Interactions != nil {
		for _, interaction := range []common.Interaction{
			{AgentName: "query_api", Type: common.InteractionUserRequest, Content: data.Question},
			{AgentName: "query_api", Type: common.InteractionAgentResponse, Content: answer},
		} {
			if err := app.Interactions.AddInteraction(ctx, interaction); err != nil {
				logger.Warn("[Query] Interaction log write failed", "err", err)
			}
		}
	}

	return c.JSON(http.StatusOK, queryResponse{
		Message: "OK",
		Answer:  answer,
	})
}
