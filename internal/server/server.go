package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reporover/backend/internal/queue"
	mid "github.com/reporover/backend/internal/server/middleware"
	"github.com/reporover/backend/internal/util"
	"github.com/reporover/backend/pkg/agents"
	"github.com/reporover/backend/pkg/ai"
	oai "github.com/reporover/backend/pkg/ai/ollama"
	gai "github.com/reporover/backend/pkg/ai/openai"
	"github.com/reporover/backend/pkg/logger"
	"github.com/reporover/backend/pkg/store"
	"github.com/reporover/backend/pkg/store/memgraph"
	pgxstore "github.com/reporover/backend/pkg/store/pgx"
	"github.com/reporover/backend/pkg/store/sqlite"
	"github.com/reporover/backend/pkg/workflow"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	RunMigrations()

	conn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	aiClient := NewAIClientFromEnv()

	entities, err := sqlite.NewEntityStore(util.GetEnvString("ENTITY_DB_PATH", "entities.db"))
	if err != nil {
		logger.Fatal("Failed to open entity store", "err", err)
	}
	defer entities.Close()

	graph := memgraph.NewGraph()
	vectors := pgxstore.NewIndexWithConnection(conn, aiClient)
	knowledge := store.NewKnowledgeStore(entities, graph, vectors)

	interactions, err := sqlite.NewInteractionLog(util.GetEnvString("EPISODIC_DB_PATH", "episodic.db"))
	if err != nil {
		logger.Fatal("Failed to open interaction log", "err", err)
	}
	defer interactions.Close()

	workflows, err := workflow.LoadRegistry(util.GetEnvString("WORKFLOW_DIR", "workflows"))
	if err != nil {
		logger.Fatal("Failed to load workflows", "err", err)
	}
	engine := workflow.NewEngine(workflows, NewAgentRegistry(knowledge, aiClient, interactions))

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// Ingestion runs in-process: the graph and entity stores are process
	// memory, so the consumer has to share them with the query handlers.
	if err := queue.StartConsumer(ctx, que, engine, knowledge); err != nil {
		logger.Fatal("Failed to start ingest consumer", "err", err)
	}

	app := &mid.App{
		Knowledge:    knowledge,
		Engine:       engine,
		Workflows:    workflows,
		Interactions: interactions,
		Queue:        ch,
		Key:          &k,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("256M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// RunMigrations applies the pending schema migrations for the vector index.
func RunMigrations() {
	migrationsDir := util.GetEnvString("MIGRATIONS_DIR", "migrations")
	m, err := migrate.New("file://"+migrationsDir, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Failed to init migrations", "err", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

// NewAIClientFromEnv builds the AI client selected by AI_ADAPTER.
func NewAIClientFromEnv() ai.Client {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewClient(oai.NewClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewClient(gai.NewClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
	}
}

// NewAgentRegistry registers the specialist agents every deployment runs
// with.
func NewAgentRegistry(knowledge *store.KnowledgeStore, aiClient ai.Client, episodic store.InteractionStore) *agents.Registry {
	registry := agents.NewRegistry()
	registry.Register(agents.NewIngestor(knowledge))
	registry.Register(agents.NewAnnotator(knowledge, aiClient, episodic, int(util.GetEnvNumeric("AI_PARALLEL_REQ", 4))))
	registry.Register(agents.NewRetriever(knowledge))
	registry.Register(agents.NewEntityLookup(knowledge))
	registry.Register(agents.NewGraphQuery(knowledge))
	registry.Register(agents.NewSynthesizer(aiClient))
	return registry
}
