package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/marminbh/billing-gateway/internal/database"
	"github.com/marminbh/billing-gateway/internal/rabbitmq"
)

// HealthHandler reports service health. The audit DB and RabbitMQ checks
// only run when those subsystems are enabled.
type HealthHandler struct {
	db  *gorm.DB
	rmq *rabbitmq.Connection
}

// NewHealthHandler creates a health handler; db and rmq may be nil when the
// corresponding subsystem is disabled.
func NewHealthHandler(db *gorm.DB, rmq *rabbitmq.Connection) *HealthHandler {
	return &HealthHandler{
		db:  db,
		rmq: rmq,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck handles the health check endpoint
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	if h.db != nil {
		if err := database.HealthCheck(ctx, h.db); err != nil {
			services["audit_db"] = "unhealthy: " + err.Error()
			status = "unhealthy"
		} else {
			services["audit_db"] = "healthy"
		}
	}

	if h.rmq != nil {
		if h.rmq.IsHealthy() {
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
