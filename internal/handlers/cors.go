package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// CORS header values for the webhook surface. Webhooks are server-to-server,
// the headers are kept on every response (success and failure alike) so any
// browser-based caller can always read the body.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type, stripe-signature"
	corsAllowMethods = "POST, OPTIONS"
)

// CORS sets the gateway's CORS headers on every response. Fiber's cors
// middleware answers preflight with 204, but the contract here is OPTIONS →
// 200, so the headers are set by hand and OPTIONS falls through to the
// route handler.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		c.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Set("Access-Control-Allow-Methods", corsAllowMethods)
		return c.Next()
	}
}
