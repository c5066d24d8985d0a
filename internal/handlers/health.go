package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/oarthurdev/utm-n8n-facebook/internal/database"
	"github.com/oarthurdev/utm-n8n-facebook/internal/queue"
)

// HealthHandler reports readiness of the service's dependencies.
type HealthHandler struct {
	DB    *gorm.DB
	Queue *queue.Publisher // nil when the broker is not configured
}

// NewHealthHandler creates a health handler with dependencies.
func NewHealthHandler(db *gorm.DB, publisher *queue.Publisher) *HealthHandler {
	return &HealthHandler{DB: db, Queue: publisher}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if err := database.HealthCheck(ctx, h.DB); err != nil {
		services["database"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	if h.Queue != nil {
		if h.Queue.IsHealthy() {
			services["rabbitmq"] = "healthy"
		} else {
			services["rabbitmq"] = "unhealthy: connection closed"
			status = "unhealthy"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if status == "unhealthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}
