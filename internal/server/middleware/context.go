package middleware

import (
	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"

	"github.com/reporover/backend/pkg/store"
	"github.com/reporover/backend/pkg/workflow"
)

type AppUser struct {
	UserID string
	Role   string
}

// App holds the process-wide collaborators handlers need: the knowledge
// store, the episodic log, the workflow engine and registry, the ingest
// queue channel, and auth material. Constructed once at startup, never
// mutated.
type App struct {
	Knowledge    *store.KnowledgeStore
	Engine       *workflow.Engine
	Workflows    *workflow.Registry
	Interactions store.InteractionStore
	Queue        *amqp091.Channel
	Key          *keyfunc.Keyfunc
	MasterAPIKey string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
