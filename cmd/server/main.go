package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marminbh/billing-gateway/internal/audit"
	"github.com/marminbh/billing-gateway/internal/config"
	"github.com/marminbh/billing-gateway/internal/database"
	"github.com/marminbh/billing-gateway/internal/handlers"
	"github.com/marminbh/billing-gateway/internal/logger"
	"github.com/marminbh/billing-gateway/internal/notifier"
	"github.com/marminbh/billing-gateway/internal/rabbitmq"
	"github.com/marminbh/billing-gateway/internal/routes"
	"github.com/marminbh/billing-gateway/internal/supabase"
)

func main() {
	// Load configuration. Missing webhook secrets do not fail startup:
	// the handler reports them per request as a configuration fault.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.Init(cfg.LogLevel)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync(log)

	if err := cfg.ValidateWebhook(); err != nil {
		log.Warn("Webhook configuration incomplete, requests will fail with 500",
			zap.Error(err),
		)
	}

	// Optional: audit database
	var db *gorm.DB
	var recorder handlers.EventRecorder
	if cfg.AuditDB != nil {
		db, err = database.Connect(cfg.AuditDB, log)
		if err != nil {
			log.Fatal("Failed to connect to audit database", zap.Error(err))
		}
		defer func() {
			if err := database.Close(db, log); err != nil {
				log.Error("Error closing audit database", zap.Error(err))
			}
		}()

		if err := database.RunMigrations(cfg.AuditDB, log); err != nil {
			log.Fatal("Failed to run audit migrations", zap.Error(err))
		}

		recorder = audit.NewRecorder(db, log)
	}

	// Optional: RabbitMQ notifier
	var rmq *rabbitmq.Connection
	var activationNotifier handlers.ActivationNotifier
	if cfg.RabbitMQ != nil {
		rmq = rabbitmq.NewConnection(cfg.RabbitMQ, log)
		if err := rmq.Connect(); err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rmq.Close()

		activationNotifier = notifier.New(rmq, cfg.RabbitMQ, log)
	}

	store := supabase.NewClient(&cfg.Supabase, log)

	webhookHandler := handlers.NewWebhookHandler(cfg, store, recorder, activationNotifier, log)
	healthHandler := handlers.NewHealthHandler(db, rmq)

	app := fiber.New(fiber.Config{
		AppName:      "Billing Gateway",
		ServerHeader: "Fiber",
		ErrorHandler: handlers.ErrorHandler(log),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(handlers.CORS())

	routes.SetupRoutes(app, webhookHandler, healthHandler)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		log.Info("Server starting",
			zap.String("address", addr),
		)
		if err := app.Listen(addr); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
