// training-arena-system/middleware/sse_auth.go
package middleware

import (
	"log"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware validates `token` and `participant_id` from query
// params. EventSource can't set headers, so the event stream carries
// the gateway token on the query string instead.
//
// Usage:
//
//	app.Get("/training/events", middleware.SSEAuthMiddleware(), hub.StreamEvents)
func SSEAuthMiddleware() func(*fiber.Ctx) error {
	expectedToken := os.Getenv("TRAINING_SERVICE_TOKEN")

	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		participantID := strings.TrimSpace(c.Query("participant_id"))

		if token == "" || participantID == "" {
			log.Printf("[SSEAuth] ❌ Missing query params on %s (token empty=%t, participant empty=%t)",
				c.Path(), token == "", participantID == "")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing token or participant_id in query",
			})
		}

		if expectedToken == "" || token != expectedToken {
			log.Printf("[SSEAuth] ❌ Invalid token for participant %s (prefix: %.10s...)", participantID, token)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		// Attach to Fiber context (like UserContextMiddleware, but from query)
		c.Locals("user_id", participantID)

		return c.Next()
	}
}
