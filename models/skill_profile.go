package models

import (
	"time"

	"gorm.io/gorm"
)

// SkillProfile is a participant's persistent, slowly-updated
// proficiency estimate (denormalized for fast reads by the matchmaker).
// Created lazily on the first completed session; only the metrics
// aggregator ever writes it.
type SkillProfile struct {
	ID            string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ParticipantID string `gorm:"uniqueIndex;not null" json:"participant_id"` // links to profile service

	// Running averages, all in [0, 1]
	OverallSkill    float64 `json:"overall_skill" gorm:"default:0"`
	AccuracyAverage float64 `json:"accuracy_average" gorm:"default:0"`
	TimingScore     float64 `json:"timing_score" gorm:"default:0"`

	SessionsPlayed int64      `json:"sessions_played" gorm:"default:0"`
	LastSessionAt  *time.Time `json:"last_session_at,omitempty"`

	Timestamps
}

// SkillLevel buckets OverallSkill into the 1–10 ladder the matchmaker
// compares. New participants (no sessions yet) land on level 1.
func (p *SkillProfile) SkillLevel() int {
	if p == nil || p.SessionsPlayed == 0 {
		return 1
	}
	level := 1 + int(p.OverallSkill*9+0.5)
	if level < 1 {
		level = 1
	}
	if level > 10 {
		level = 10
	}
	return level
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
