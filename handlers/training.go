package handlers

import (
	"training-arena-system/middleware"
	"training-arena-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTrainingRoutes(app *fiber.App, api *services.TrainingAPI, hub *services.NotificationHub) {
	// 🔓 Public health probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"active_sessions": api.Arena.ActiveSessionCount(),
			"queue_length":    api.Queue.Len(),
		})
	})

	// 🔐 Authenticated routes (identity comes from the Gateway headers)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/training/request", api.RequestSession)
	secured.Delete("/training/request", api.CancelRequest)
	secured.Post("/training/action", api.SubmitAction)
	secured.Get("/training/stats", api.GetStats)
	secured.Get("/training/session", api.GetSession)

	// SSE stream — EventSource can't set headers, so identity rides on
	// query params instead of the user-context middleware.
	app.Get("/training/events", middleware.SSEAuthMiddleware(), hub.StreamEvents)
}
