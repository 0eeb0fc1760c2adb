package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ErrorHandler is the single outer error boundary. Anything a handler
// returns without mapping to a response itself, including panics recovered
// by the recover middleware, becomes a 500 "Unhandled error" JSON response.
// The process never crashes on a bad request.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// CORS headers may not be set yet if the fault happened before
		// the middleware chain completed.
		c.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Set("Access-Control-Allow-Methods", corsAllowMethods)

		// Fiber's own errors (404 for unknown routes, etc.) keep their code.
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiberErr.Message,
			})
		}

		logger.Error("Unhandled error in request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Unhandled error",
			"details": err.Error(),
		})
	}
}
