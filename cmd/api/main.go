package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bizmarket/backend/internal/apperr"
	"github.com/bizmarket/backend/internal/config"
	"github.com/bizmarket/backend/internal/db"
	"github.com/bizmarket/backend/internal/events"
	apphttp "github.com/bizmarket/backend/internal/http"
	"github.com/bizmarket/backend/internal/http/dto"
	"github.com/bizmarket/backend/internal/http/handlers"
	"github.com/bizmarket/backend/internal/metrics"
	"github.com/bizmarket/backend/internal/rbac"
	"github.com/bizmarket/backend/internal/repositories"
	"github.com/bizmarket/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}
	go metrics.StartPoolStatsCollector(ctx, pool, 15*time.Second)

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	listingRepo := repositories.NewListingRepo(pool)
	loiRepo := repositories.NewLOIRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	checklistRepo := repositories.NewChecklistRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	admins := rbac.NewAdminChecker(cfg, userRepo)
	escrowService := services.NewEscrowService(escrowRepo, listingRepo, loiRepo, userRepo, auditRepo, publisher, cfg, log)
	webhookService := services.NewWebhookService(escrowRepo, admins, auditRepo, publisher, log)
	feeService := services.NewFeeService(escrowRepo, admins, auditRepo, publisher, cfg, log)
	migrationService := services.NewMigrationService(escrowRepo, checklistRepo, escrowService, auditRepo, publisher, log)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			msg := err.Error()
			if code >= fiber.StatusInternalServerError {
				log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
				msg = apperr.Message(apperr.ErrInternal)
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: msg, Code: "http_error"})
		},
	})

	apphttp.SetupRouter(app, apphttp.RouterDeps{
		Config:    cfg,
		Log:       log,
		Redis:     rdb,
		Admins:    admins,
		Escrow:    handlers.NewEscrowHandler(escrowService, log),
		Webhook:   handlers.NewWebhookHandler(webhookService, log),
		Fee:       handlers.NewFeeHandler(feeService, log),
		Migration: handlers.NewMigrationHandler(migrationService, log),
		User:      handlers.NewUserHandler(userRepo, log),
		WSHub:     wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
