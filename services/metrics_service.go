// services/metrics_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"training-arena-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MetricsService is the only writer of SkillProfile rows. Session
// finalization is serialized per participant by the one-active-session
// invariant, so the per-participant running averages never race.
type MetricsService struct {
	DB *gorm.DB
}

func NewMetricsService(db *gorm.DB) *MetricsService {
	return &MetricsService{DB: db}
}

// ParticipantMetrics is one participant's slice of a finished session.
type ParticipantMetrics struct {
	Actions         int
	Hits            int
	HitRate         float64
	Experience      int
	DistinctActions int
	ActionsPerMin   float64
	Strategy        float64 // distinct action types used / 4
}

// SessionMetrics summarizes one finished session.
type SessionMetrics struct {
	Duration     time.Duration
	TotalActions int
	Participants map[string]ParticipantMetrics
}

// ComputeSessionMetrics walks the action log once. Pure — no DB.
func ComputeSessionMetrics(session *models.TrainingSession) SessionMetrics {
	duration := session.EndedAt.Sub(session.StartedAt)
	if duration < 0 {
		duration = 0
	}

	metrics := SessionMetrics{
		Duration:     duration,
		TotalActions: len(session.ActionLog),
		Participants: make(map[string]ParticipantMetrics, 2),
	}

	perTypes := make(map[string]map[models.ActionType]bool, 2)
	per := make(map[string]*ParticipantMetrics, 2)
	for _, pid := range session.ParticipantIDs {
		per[pid] = &ParticipantMetrics{}
		perTypes[pid] = make(map[models.ActionType]bool)
	}

	for _, action := range session.ActionLog {
		m, ok := per[action.ActorID]
		if !ok {
			continue
		}
		m.Actions++
		if action.Hit {
			m.Hits++
		}
		m.Experience += action.Experience
		perTypes[action.ActorID][action.Type] = true
	}

	minutes := duration.Minutes()
	for pid, m := range per {
		if m.Actions > 0 {
			m.HitRate = float64(m.Hits) / float64(m.Actions)
		}
		m.DistinctActions = len(perTypes[pid])
		m.Strategy = float64(m.DistinctActions) / 4
		if minutes > 0 {
			m.ActionsPerMin = float64(m.Actions) / minutes
		}
		metrics.Participants[pid] = *m
	}
	return metrics
}

// FoldProfile applies one session's metrics to a profile with the
// running-average update. Pure — no DB.
func FoldProfile(profile *models.SkillProfile, m ParticipantMetrics, endedAt time.Time) {
	profile.AccuracyAverage = (profile.AccuracyAverage + m.HitRate) / 2
	profile.TimingScore = profile.TimingScore + m.ActionsPerMin/100
	if profile.TimingScore > 1 {
		profile.TimingScore = 1
	}
	profile.OverallSkill = 0.4*profile.AccuracyAverage + 0.3*profile.TimingScore + 0.3*m.Strategy
	profile.SessionsPlayed++
	profile.LastSessionAt = &endedAt
}

// RecordSession folds a finished session into both participants'
// profiles, writes the durable SessionRecord and bumps the global
// counters — one transaction, called from the arena's finalize path.
func (s *MetricsService) RecordSession(session *models.TrainingSession) {
	metrics := ComputeSessionMetrics(session)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for _, pid := range session.ParticipantIDs {
			profile, err := ensureProfileTx(tx, pid)
			if err != nil {
				return err
			}
			FoldProfile(profile, metrics.Participants[pid], session.EndedAt)
			if err := tx.Save(profile).Error; err != nil {
				return err
			}
		}

		first, second := session.ParticipantIDs[0], session.ParticipantIDs[1]
		record := models.SessionRecord{
			ID:           uuid.NewString(),
			SessionID:    session.ID,
			ParticipantA: first,
			ParticipantB: second,
			WinnerID:     session.WinnerID,
			Mode:         session.Preferences.Mode,
			EndReason:    session.EndReason,
			StartedAt:    session.StartedAt,
			EndedAt:      session.EndedAt,
			DurationSec:  int(metrics.Duration.Seconds()),
			TotalActions: metrics.TotalActions,
			HitRateA:     metrics.Participants[first].HitRate,
			HitRateB:     metrics.Participants[second].HitRate,
			ExperienceA:  metrics.Participants[first].Experience,
			ExperienceB:  metrics.Participants[second].Experience,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		return bumpArenaStatsTx(tx, session, metrics)
	})
	if err != nil {
		// Durable metrics are best-effort: the session itself already
		// transitioned and released its participants.
		log.Printf("❌ [METRICS] Failed to record session %s: %v", session.ID, err)
		return
	}

	log.Printf("🎯 [METRICS] Session %s recorded: %d actions over %.0fs", session.ID, metrics.TotalActions, metrics.Duration.Seconds())
}

func ensureProfileTx(tx *gorm.DB, participantID string) (*models.SkillProfile, error) {
	var profile models.SkillProfile
	err := tx.Where("participant_id = ?", participantID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.SkillProfile{
			ID:            uuid.NewString(),
			ParticipantID: participantID,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return nil, err
		}
		return &profile, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func bumpArenaStatsTx(tx *gorm.DB, session *models.TrainingSession, metrics SessionMetrics) error {
	stats, err := ensureArenaStatsTx(tx)
	if err != nil {
		return err
	}

	stats.TotalActions += int64(metrics.TotalActions)
	if session.Status == models.SessionExpired {
		stats.SessionsExpired++
	} else {
		stats.SessionsCompleted++
	}
	return tx.Save(stats).Error
}

func ensureArenaStatsTx(tx *gorm.DB) (*models.ArenaStats, error) {
	var stats models.ArenaStats
	err := tx.Where("id = ?", 1).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.ArenaStats{ID: 1}
		if err := tx.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// RecordMatch bumps the matches-made counter the moment a pairing
// produces a session, independent of how the session later ends.
func (s *MetricsService) RecordMatch() {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		stats, err := ensureArenaStatsTx(tx)
		if err != nil {
			return err
		}
		stats.MatchesMade++
		return tx.Save(stats).Error
	})
	if err != nil {
		log.Printf("❌ [METRICS] Failed to record match: %v", err)
	}
}

// SetArchiveURL backfills the record's archive link once the async
// upload finishes.
func (s *MetricsService) SetArchiveURL(sessionID, url string) {
	err := s.DB.Model(&models.SessionRecord{}).
		Where("session_id = ?", sessionID).
		Update("archive_url", url).Error
	if err != nil {
		log.Printf("❌ [METRICS] Failed to set archive url for session %s: %v", sessionID, err)
	}
}

// RecordQueueExpiries bumps the global queue-expiry counter after a
// sweep drops entries. Best-effort, same as RecordSession.
func (s *MetricsService) RecordQueueExpiries(count int) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		stats, err := ensureArenaStatsTx(tx)
		if err != nil {
			return err
		}
		stats.QueueExpiries += int64(count)
		return tx.Save(stats).Error
	})
	if err != nil {
		log.Printf("❌ [METRICS] Failed to record %d queue expiries: %v", count, err)
	}
}

// GetProfile returns the participant's profile, or nil when none
// exists yet (no completed sessions).
func (s *MetricsService) GetProfile(participantID string) (*models.SkillProfile, error) {
	var profile models.SkillProfile
	err := s.DB.Where("participant_id = ?", participantID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile for %s: %w", participantID, err)
	}
	return &profile, nil
}
