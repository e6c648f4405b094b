package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates the gateway token from the `token` query
// param. EventSource cannot set an Authorization header, so SSE routes skip
// GatewayAuthMiddleware and authenticate here instead.
//
// Usage:
//
//	app.Get("/ceremonies/:id/events", middleware.SSEAuthMiddleware(), notifyService.StreamCeremonyEventsSSE)
func SSEAuthMiddleware() fiber.Handler {
	expectedToken := os.Getenv("DRAFT_SERVICE_TOKEN")

	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			log.Printf("[SSEAuth] ❌ Missing token query param for %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		if token != expectedToken {
			log.Printf("[SSEAuth] ❌ Invalid token for %s (prefix: %.10s...)", c.Path(), token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		if userID := strings.TrimSpace(c.Query("user_id")); userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}
