package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"inkwell/internal/database"
)

type HealthHandler struct {
	logger *slog.Logger
	db     *database.Database
}

func NewHealthHandler(logger *slog.Logger, db *database.Database) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		db:     db,
	}
}

func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", h.Healthy)
}

func (h *HealthHandler) Healthy(c *fiber.Ctx) error {
	ctx := c.Context()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "Health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
		})
	}

	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
