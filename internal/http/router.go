package http

import (
	"time"

	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/http/handlers"
	"github.com/bizmarket/backend/internal/metrics"
	"github.com/bizmarket/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RouterDeps carries what SetupRouter wires. Redis and WSHub may be nil:
// rate limiting and the websocket endpoint are then left out.
type RouterDeps struct {
	Config *config.Config
	Log    *zap.Logger
	Redis  *redis.Client
	Admins middleware.AdminChecker

	Escrow    *handlers.EscrowHandler
	Webhook   *handlers.WebhookHandler
	Fee       *handlers.FeeHandler
	Migration *handlers.MigrationHandler
	User      *handlers.UserHandler
	WSHub     *handlers.WSHub
}

func SetupRouter(app *fiber.App, d RouterDeps) {
	cfg, log := d.Config, d.Log

	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api/v1")

	// Provider callback, authenticated by the per-escrow secret.
	webhook := []fiber.Handler{}
	if d.Redis != nil {
		webhook = append(webhook, middleware.RateLimitMiddleware(d.Redis, "webhook", cfg.WebhookRateLimit, time.Minute))
	}
	webhook = append(webhook, d.Webhook.EscrowWebhook)
	api.Post("/escrow/webhook", webhook...)

	if d.Redis != nil {
		api.Use(middleware.RateLimitMiddleware(d.Redis, "api", cfg.APIRateLimit, time.Minute))
	}

	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/task-categories", metaHandler.GetTaskCategories)
	api.Get("/meta/escrow-statuses", metaHandler.GetEscrowStatuses)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", d.User.GetMe)
	protected.Post("/me/ping", d.User.Ping)

	// Escrow
	protected.Post("/escrow", d.Escrow.CreateEscrow)
	protected.Get("/escrow", d.Escrow.ListEscrows)
	protected.Get("/escrow/:id", d.Escrow.GetEscrow)
	protected.Patch("/escrow/:id/status", d.Escrow.UpdateStatus)
	protected.Get("/escrow/:id/events", d.Escrow.GetEvents)
	protected.Get("/escrow/:id/provider-credentials", middleware.AdminMiddleware(d.Admins, log), d.Webhook.ProviderCredentials)

	// Fees
	protected.Post("/fees/invoice/generate", d.Fee.GenerateInvoice)
	protected.Post("/fees/transfer", middleware.AdminMiddleware(d.Admins, log), d.Fee.MarkTransferred)

	// Migration checklist
	protected.Get("/migration/escrow/:escrowId", d.Migration.GetChecklist)
	protected.Post("/migration/escrow/:escrowId", d.Migration.CreateChecklist)
	protected.Post("/migration/:checklistId/tasks", d.Migration.AddTask)
	protected.Post("/migration/tasks/:taskId/confirm", d.Migration.ConfirmTask)

	// WebSocket
	if d.WSHub != nil {
		app.Use("/ws", handlers.WSUpgradeMiddleware())
		app.Get("/ws", websocket.New(d.WSHub.HandleWS))
	}
}
