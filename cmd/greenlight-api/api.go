// Package main provides the Greenlight API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/verdantlabs/greenlight/pkg/approval"
	"github.com/verdantlabs/greenlight/pkg/eventbus"
	"github.com/verdantlabs/greenlight/pkg/execution"
	"github.com/verdantlabs/greenlight/pkg/extraction"
	"github.com/verdantlabs/greenlight/pkg/oracle"
	"github.com/verdantlabs/greenlight/pkg/persistence"
	"github.com/verdantlabs/greenlight/pkg/registry"
	"github.com/verdantlabs/greenlight/pkg/store"
	"github.com/verdantlabs/greenlight/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	oracleURL   string
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	oracleURL string,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		oracleURL:   oracleURL,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	oracleClient := oracle.NewHTTPOracle(a.oracleURL)

	workflowStore := store.NewStore(a.persistence, a.eventBus, a.logger)
	orchestrator := extraction.NewOrchestrator(oracleClient, workflowStore, a.logger)
	gateway := approval.NewGateway(workflowStore, oracleClient, a.eventBus, a.logger)
	engine := execution.NewEngine(workflowStore, oracleClient, a.registry, a.eventBus, a.logger, execution.Config{Tracer: a.tracer})

	handlers := web.NewAPIHandlers(workflowStore, orchestrator, gateway, engine, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Greenlight API")
	})

	handlers.RegisterRoutes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
