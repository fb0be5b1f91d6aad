package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/cobrex/cobrex/pkg/engine"
	"github.com/cobrex/cobrex/pkg/flow"
	"github.com/cobrex/cobrex/pkg/persistence"
)

// NewApp builds the fiber application with every route mounted.
func NewApp(persist persistence.Persistence, eng *engine.Engine) *fiber.App {
	flowService := flow.NewService(persist)
	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := NewAPIHandlers(flowService, eng, persist, validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cobrex API")
	})

	f := app.Group("/flows")
	f.Get("/", handlers.GetFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Put("/:id", handlers.UpdateFlow)
	f.Delete("/:id", handlers.DeleteFlow)
	f.Post("/:id/activate", handlers.ActivateFlow)
	f.Post("/:id/deactivate", handlers.DeactivateFlow)
	f.Post("/:id/executions", handlers.StartExecution)

	d := app.Group("/debtors")
	d.Get("/", handlers.GetDebtors)
	d.Post("/", handlers.CreateDebtor)
	d.Get("/:id", handlers.GetDebtor)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/resume", handlers.ResumeExecution)

	app.Get("/health", handlers.HealthCheck)

	return app
}
