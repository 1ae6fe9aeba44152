package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"inkwell/internal/ai"
	"inkwell/internal/api"
	"inkwell/internal/billing"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/stripe"
	"inkwell/internal/telemetry"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	cfg := config.NewConfig()

	// Set up telemetry and the logger backed by it
	tel, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	logger := tel.Logger()

	// Set up Postgres connection
	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.DSN()); err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return err
	}
	defer db.Close()

	// Customer lookups hit Stripe, so resolved account ids are cached in
	// Redis when one is configured and in process memory otherwise.
	var resolverCache billing.Cache
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		resolverCache = cache.NewRedis(logger, redisClient, "billing:customer", 24*time.Hour)
	} else {
		resolverCache = cache.NewMemory()
	}

	stripeClient := stripe.NewClient(logger, cfg.Stripe)

	resolver := billing.NewResolver(logger, stripeClient, resolverCache, cfg.Billing.OperationTimeout)
	reconciler := billing.NewReconciler(logger, resolver, &db, cfg.Billing.OperationTimeout)
	dispatcher := billing.NewDispatcher(logger, reconciler)

	aiService := ai.NewService(logger, cfg.AI)

	// Set up Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	app.Use(middleware.Logger(logger))

	handler := api.NewHandler(logger, &db, stripeClient, dispatcher, aiService, tel, cfg.Stripe.WebhookSecret)
	handler.RegisterRoutes(app)

	healthHandler := api.NewHealthHandler(logger, &db)
	healthHandler.RegisterRoutes(app)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	go func() {
		logger.Info("Starting HTTP server...", "addr", addr)
		if err := app.Listen(addr); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Failed to shutdown server cleanly", "error", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
