package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/marminbh/billing-gateway/internal/handlers"
)

// SetupRoutes configures all application routes with dependencies
func SetupRoutes(app *fiber.App, webhookHandler *handlers.WebhookHandler, healthHandler *handlers.HealthHandler) {
	// Health check endpoint
	app.Get("/health", healthHandler.HealthCheck)

	// Stripe webhook endpoint. Registered for all methods: the handler
	// itself answers OPTIONS with 200 and everything but POST with 405.
	app.All("/webhooks/stripe", webhookHandler.HandleStripeWebhook)
}
