package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/oarthurdev/utm-n8n-facebook/internal/auth"
	"github.com/oarthurdev/utm-n8n-facebook/internal/config"
	"github.com/oarthurdev/utm-n8n-facebook/internal/database"
	"github.com/oarthurdev/utm-n8n-facebook/internal/facebook"
	"github.com/oarthurdev/utm-n8n-facebook/internal/handlers"
	"github.com/oarthurdev/utm-n8n-facebook/internal/kommo"
	"github.com/oarthurdev/utm-n8n-facebook/internal/logger"
	"github.com/oarthurdev/utm-n8n-facebook/internal/middleware"
	"github.com/oarthurdev/utm-n8n-facebook/internal/n8n"
	"github.com/oarthurdev/utm-n8n-facebook/internal/pipeline"
	"github.com/oarthurdev/utm-n8n-facebook/internal/queue"
	"github.com/oarthurdev/utm-n8n-facebook/internal/routes"
	"github.com/oarthurdev/utm-n8n-facebook/internal/storage"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, log); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := database.RunMigrations(&cfg.Database, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Connect to RabbitMQ when a broker is configured
	var publisher *queue.Publisher
	var notifier pipeline.Notifier
	if cfg.RabbitMQ.Enabled() {
		publisher = queue.NewPublisher(&cfg.RabbitMQ, log)
		if err := publisher.Connect(); err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer publisher.Close()
		notifier = publisher
	}

	store := storage.NewGormStore(db)
	kommoClient := kommo.NewClient(store, log)
	facebookClient := facebook.NewClient(store, log)
	registry := n8n.NewRegistry(store, log, cfg.N8N.WorkflowsDir)
	pipe := pipeline.New(store, facebookClient, notifier, log)
	authService := auth.NewService(store)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "UTM N8N Facebook Service",
		ServerHeader: "Fiber",
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Subdomain",
	}))

	// Setup routes
	routes.SetupRoutes(app, &routes.Handlers{
		Health:    handlers.NewHealthHandler(db, publisher),
		Auth:      handlers.NewAuthHandler(authService, log),
		Kommo:     handlers.NewKommoHandler(store, kommoClient, pipe, log),
		Facebook:  handlers.NewFacebookHandler(facebookClient, pipe, log),
		N8N:       handlers.NewN8NHandler(registry, log),
		Dashboard: handlers.NewDashboardHandler(store, kommoClient, facebookClient, registry, log),
	}, middleware.ExtractCompany(store, log))

	// Background retry sweep; disabled when the interval is zero so that
	// production can drive the sweep from cron instead.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	if cfg.Sweep.Interval > 0 {
		go runSweep(sweepCtx, pipe, cfg.Sweep.Interval, log)
	}

	// Start server in a goroutine
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
	stopSweep()
	if err := app.Shutdown(); err != nil {
		log.Error("Error during server shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

func runSweep(ctx context.Context, pipe *pipeline.Pipeline, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := pipe.SweepUnsent(ctx)
			if err != nil {
				log.Error("Background sweep failed", zap.Error(err))
				continue
			}
			if result.Processed > 0 {
				log.Info("Background sweep completed",
					zap.Int("processed", result.Processed),
					zap.Int("success", result.Success),
					zap.Int("failed", result.Failed),
				)
			}
		}
	}
}
