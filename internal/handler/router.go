package handler

import (
	"time"

	"github.com/arturoeanton/go-english-tutor/internal/middleware"
	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/service"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Deps are the services behind the REST API.
type Deps struct {
	Tutor     *service.TutorService
	Progress  *service.ProgressService
	Knowledge *service.KnowledgeService
	Store     port.ProgressStore
	Jobs      *JobTracker
}

// AppConfig holds the HTTP-facing settings.
type AppConfig struct {
	Name        string
	FrontendURL string
	AccessLog   bool
}

// NewApp builds the fiber application with every route under /api/v1.
func NewApp(cfg AppConfig, deps Deps) *fiber.App {
	if deps.Jobs == nil {
		deps.Jobs = NewJobTracker()
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.Name,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(fiberlogger.New())
	}
	if cfg.FrontendURL != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: []string{cfg.FrontendURL},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.UserHeader},
			AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		}))
	}
	app.Use(middleware.AuditMiddleware(deps.Store))

	api := app.Group("/api/v1")

	api.Get("/health", func(c fiber.Ctx) error {
		body := fiber.Map{
			"status":   "healthy",
			"app":      cfg.Name,
			"version":  Version,
			"sessions": len(deps.Tutor.Sessions().List()),
		}
		if stats, err := deps.Knowledge.Stats(c.Context()); err == nil {
			body["documents"] = stats.Total
		} else {
			body["status"] = "degraded"
			body["index_error"] = err.Error()
		}
		return c.JSON(body)
	})

	NewSessionHandler(deps.Tutor.Sessions()).Register(api)
	NewChatHandler(deps.Tutor).Register(api)
	NewProgressHandler(deps.Progress).Register(api)
	NewKnowledgeHandler(deps.Knowledge, deps.Jobs, deps.Store).Register(api)
	NewJobsHandler(deps.Jobs).Register(api)
	NewAuditHandler(deps.Store).Register(api)

	return app
}
