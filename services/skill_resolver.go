package services

import (
	"log"

	"training-arena-system/models"
)

// ProfileSource loads a participant's skill profile; the metrics
// service is the production implementation.
type ProfileSource interface {
	GetProfile(participantID string) (*models.SkillProfile, error)
}

// SkillResolver picks the skill level a participant queues with: the
// skill profile when one exists, otherwise the stat provider's level.
type SkillResolver struct {
	Profiles ProfileSource
	Stats    StatProvider
}

func (r *SkillResolver) SkillLevelFor(participantID string) int {
	profile, err := r.Profiles.GetProfile(participantID)
	if err != nil {
		log.Printf("⚠️  [QUEUE] Profile lookup failed for %s, falling back to provider level: %v", participantID, err)
	}
	if profile != nil && profile.SessionsPlayed > 0 {
		return profile.SkillLevel()
	}
	return r.Stats.GetCombatStats(participantID).Level
}
