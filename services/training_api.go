// services/training_api.go
package services

import (
	"errors"
	"log"

	"training-arena-system/models"

	"github.com/gofiber/fiber/v2"
)

// TrainingAPI adapts the queue/arena/metrics services to HTTP. Every
// domain error maps to a status here; nothing below this layer knows
// about Fiber.
type TrainingAPI struct {
	Queue   *QueueService
	Arena   *ArenaService
	Metrics *MetricsService
}

func NewTrainingAPI(queue *QueueService, arena *ArenaService, metrics *MetricsService) *TrainingAPI {
	return &TrainingAPI{Queue: queue, Arena: arena, Metrics: metrics}
}

// RequestSession handles POST /training/request.
func (api *TrainingAPI) RequestSession(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	var prefs models.Preferences
	if err := c.BodyParser(&prefs); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	outcome, err := api.Queue.RequestSession(participantID, prefs)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(200).JSON(outcome)
}

// SubmitAction handles POST /training/action.
func (api *TrainingAPI) SubmitAction(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	var action models.CombatAction
	if err := c.BodyParser(&action); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}

	result, err := api.Arena.SubmitAction(participantID, &action)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(200).JSON(result)
}

// CancelRequest handles DELETE /training/request.
func (api *TrainingAPI) CancelRequest(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)
	removed := api.Queue.CancelRequest(participantID)
	return c.Status(200).JSON(fiber.Map{"removed": removed})
}

// GetStats handles GET /training/stats.
func (api *TrainingAPI) GetStats(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	profile, err := api.Metrics.GetProfile(participantID)
	if err != nil {
		log.Printf("DB Error fetching profile %s: %v", participantID, err)
		return c.Status(500).JSON(fiber.Map{"error": "database error"})
	}

	response := fiber.Map{
		"skill_level":       profile.SkillLevel(), // nil-safe, defaults to 1
		"sessions_played":   int64(0),
		"in_active_session": api.Arena.HasActiveSession(participantID),
	}
	if profile != nil {
		response["sessions_played"] = profile.SessionsPlayed
		response["overall_skill"] = profile.OverallSkill
		response["accuracy_average"] = profile.AccuracyAverage
		response["timing_score"] = profile.TimingScore
	}
	if position := api.Queue.Position(participantID); position > 0 {
		response["queue_position"] = position
	}
	return c.Status(200).JSON(response)
}

// GetSession handles GET /training/session.
func (api *TrainingAPI) GetSession(c *fiber.Ctx) error {
	participantID := c.Locals("user_id").(string)

	snapshot, err := api.Arena.Snapshot(participantID)
	if err != nil {
		return respondDomainError(c, err)
	}
	return c.Status(200).JSON(snapshot)
}

// respondDomainError maps the recoverable error taxonomy to HTTP.
func respondDomainError(c *fiber.Ctx, err error) error {
	status := 500
	switch {
	case errors.Is(err, models.ErrAlreadyQueued),
		errors.Is(err, models.ErrAlreadyInSession),
		errors.Is(err, models.ErrSessionNotActive),
		errors.Is(err, models.ErrAbilityOnCooldown):
		status = 409
	case errors.Is(err, models.ErrCapacityExceeded):
		status = 503
	case errors.Is(err, models.ErrNoActiveSession):
		status = 404
	case errors.Is(err, models.ErrActionRateLimited):
		status = 429
	case errors.Is(err, models.ErrInvalidAction):
		status = 400
	case errors.Is(err, models.ErrConsentRequired):
		status = 403
	default:
		log.Printf("Unexpected training error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
